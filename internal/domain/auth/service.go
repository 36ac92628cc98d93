package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

// TokenService issues and validates bearer tokens carrying an Actor.
type TokenService interface {
	Issue(ctx context.Context, actor Actor) (string, error)
	ValidateToken(ctx context.Context, token string) (Claims, error)
}

type service struct {
	cfg    Config
	logger *slog.Logger
}

// NewService constructs a TokenService instance.
func NewService(cfg Config, logger *slog.Logger) TokenService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &service{
		cfg:    cfg,
		logger: logger.With("component", "auth.service"),
	}
}

// Issue signs a token for the actor. Used by the maintenance CLI and tests;
// interactive sign-in is handled by the identity collaborator.
func (s *service) Issue(_ context.Context, actor Actor) (string, error) {
	if actor.UserID <= 0 {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "user id must be positive", nil)
	}
	if !actor.Role.Valid() {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "unknown role", nil)
	}
	now := time.Now()
	claims := tokenClaims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.UserID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap("auth_error", "failed to sign token", err)
	}
	return signed, nil
}

func (s *service) ValidateToken(_ context.Context, token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, "token missing", nil)
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, "token invalid", nil)
	}
	if claims.ExpiresAt == nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, "token missing expiry", nil)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, "token subject invalid", err)
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, "token role invalid", nil)
	}
	return Claims{
		Actor:     Actor{UserID: userID, Role: role},
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}
