// Package service: AuthService validates the access tokens issued by the
// external auth provider and, in dev mode, issues its own.
package service

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

const tokenIssuer = "caixa-api"

// AuthService validates HS256 access tokens. With an empty secret it is
// disabled and every request is trusted.
type AuthService struct {
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// Enabled reports whether a signing secret is configured.
func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}
