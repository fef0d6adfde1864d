package handlers

import (
	"context"
	"net/http"
	"strings"

	"classchat/internal/auth"
	"classchat/internal/config"
	"classchat/internal/metrics"
	ws "classchat/internal/websocket"
	"classchat/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	protocol    *ws.Protocol
	serverCfg   config.ServerConfig
	wsCfg       config.WebSocketConfig
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, protocol *ws.Protocol, serverCfg config.ServerConfig, wsCfg config.WebSocketConfig) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		protocol:    protocol,
		serverCfg:   serverCfg,
		wsCfg:       wsCfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: serverCfg.AuthTimeout,
			CheckOrigin:      originChecker(serverCfg.AllowedOrigins),
		},
	}
}

// HandleWebSocket verifies the credential before upgrading. A refused
// connection gets a bare 401 and is never admitted.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := tokenFromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), h.serverCfg.AuthTimeout)
	user, err := h.authService.Verify(ctx, tokenStr)
	cancel()
	if err != nil {
		metrics.AuthFailures.Inc()
		logger.Warn("Refusing websocket from %s: %v", r.RemoteAddr, err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(conn, user, h.wsCfg)
	go h.protocol.Serve(client)
}

// tokenFromRequest reads the credential from the token query parameter,
// falling back to an Authorization bearer header.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
