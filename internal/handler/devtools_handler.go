package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dev Tools Handlers
// ============================================================

func devSeedHandler(devSvc *service.DevToolsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/seed")
		defer span.End()

		var req domain.DevSeedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		// With auth on, a token may only seed its own user.
		if subject := UserIDFromContext(ctx); subject != "" && subject != req.UserID {
			handleServiceError(w, &domain.ErrForbidden{Action: "seed another user's data"}, logger)
			return
		}

		resp, err := devSvc.Seed(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func devTokenHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/token")
		defer span.End()

		var req domain.DevTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.IssueDevToken(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
