package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"classchat/internal/auth"
	"classchat/internal/config"
	"classchat/internal/database"
	"classchat/internal/handlers"
	"classchat/internal/models"
	"classchat/internal/services"
	"classchat/internal/websocket"
	"classchat/pkg/logger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Configure(cfg.Env, cfg.LogLevel)

	ctx := context.Background()

	// Initialize message store
	db := openStore(ctx, cfg)
	defer db.Close()

	// Optional user cache
	var users database.UserRepository = db
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		users = database.NewCachedUsers(db, redisClient, cfg.Redis.UserCacheTTL)
		logger.Info("User cache enabled (ttl %s)", cfg.Redis.UserCacheTTL)
	}

	// Initialize services
	authService := auth.NewService(users, cfg.JWT)
	messageService := services.NewMessageService(db, cfg.Database.StoreTimeout)

	// Initialize realtime layer
	registry := websocket.NewRegistry()
	protocol := websocket.NewProtocol(registry, messageService)

	// Initialize handlers
	wsHandlers := handlers.NewWebSocketHandlers(authService, protocol, cfg.Server, cfg.WebSocket)
	healthHandlers := handlers.NewHealthHandlers(db, redisClient, registry)

	router := setupRoutes(cfg, wsHandlers, healthHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server started on %s (env %s, store %s)", cfg.Server.Port, cfg.Env, cfg.Database.Driver)
		logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
	// Hijacked websocket connections are not tracked by http.Server.
	protocol.Shutdown()

	logger.Info("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) database.Database {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		db, err := database.NewMongoDB(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
		if err != nil {
			logger.Fatal("Failed to connect to mongodb: %v", err)
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			logger.Fatal("Failed to create mongodb indexes: %v", err)
		}
		logger.Info("Connected to MongoDB database %s", cfg.Database.MongoDatabase)
		return db

	case config.DriverMemory:
		db := database.NewMemoryDB()
		seedDemoUsers(db)
		logger.Warn("Using in-memory store, messages are lost on restart")
		return db

	default:
		db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database: %v", err)
		}
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database: %v", err)
		}
		logger.Info("Connected to PostgreSQL")
		return db
	}
}

// seedDemoUsers gives the in-memory store accounts to mint tokens for.
func seedDemoUsers(db *database.MemoryDB) {
	for _, u := range []*models.User{
		{ID: "student-1", Username: "alice", FullName: "Alice Rahman", Role: models.RoleStudent, ClassLevel: "SSC"},
		{ID: "student-2", Username: "bob", FullName: "Bob Karim", Role: models.RoleStudent, ClassLevel: "SSC"},
		{ID: "teacher-1", Username: "carol", FullName: "Carol Haque", Role: models.RoleTeacher},
		{ID: "admin-1", Username: "admin", FullName: "Administrator", Role: models.RoleAdmin},
	} {
		db.PutUser(u)
	}
}

func setupRoutes(cfg *config.Config, wsHandlers *handlers.WebSocketHandlers, healthHandlers *handlers.HealthHandlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(handlers.RequestLogger(logger.GlobalLogger.Zerolog()))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", healthHandlers.Health)
	r.Get("/ws", wsHandlers.HandleWebSocket)

	return r
}
