package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Token validation (middleware)
// ============================================================

// JWTClaims represents the claims in access tokens. Subject is the user ID.
type JWTClaims struct {
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	if !s.Enabled() {
		return nil, &domain.ErrUnauthorized{Message: "authentication is not configured"}
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	if claims.Type != "" && claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	if claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "token has no subject"}
	}

	return claims, nil
}

// ============================================================
// Dev token: POST /v1/dev/token
// ============================================================

// IssueDevToken signs an access token for req.UserID.
func (s *AuthService) IssueDevToken(ctx context.Context, req *domain.DevTokenRequest) (*domain.DevTokenResponse, error) {
	_, span := authTracer.Start(ctx, "AuthService.IssueDevToken")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", req.UserID))

	if req.UserID == "" {
		return nil, &domain.ErrValidation{Field: "userId", Message: "is required"}
	}
	if !s.Enabled() {
		return nil, &domain.ErrValidation{Field: "JWT_SECRET", Message: "is not configured"}
	}

	token, err := s.signAccessToken(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("DEV: access token issued", zap.String("user_id", req.UserID))
	return &domain.DevTokenResponse{
		AccessToken: token,
		ExpiresIn:   int(s.accessTTL.Seconds()),
	}, nil
}

func (s *AuthService) signAccessToken(userID string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
