package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"classchat/internal/config"
	"classchat/internal/database"
	"classchat/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for every credential that does not resolve
// to a known user. The wrapped cause is for logs only.
var ErrUnauthenticated = errors.New("unauthenticated")

// Claims carries the account id under the same claim name the web client's
// login endpoint issues.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

type Service struct {
	users     database.UserRepository
	secret    []byte
	expiresIn time.Duration
}

func NewService(users database.UserRepository, cfg config.JWTConfig) *Service {
	return &Service{
		users:     users,
		secret:    cfg.Secret,
		expiresIn: cfg.ExpiresIn,
	}
}

// Verify resolves a bearer credential to the user it was issued for.
func (s *Service) Verify(ctx context.Context, tokenString string) (*models.User, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s: %v", ErrUnauthenticated, claims.UserID, err)
	}
	return user, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("invalid user ID in token")
	}
	return claims, nil
}

// GenerateToken mints a token for userID that Verify accepts.
func (s *Service) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
