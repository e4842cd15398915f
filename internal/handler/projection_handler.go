package handler

import (
	"net/http"

	"github.com/boddenberg/caixa-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Projection Handlers
// ============================================================

func referenceRateHandler(projSvc *service.ProjectionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/rates/cdi")
		defer span.End()

		writeJSON(w, http.StatusOK, projSvc.ReferenceRate(ctx))
	}
}

func monthlyReportHandler(projSvc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/months/{month}/report")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		month, err := monthParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		span.SetAttributes(attribute.String("user.id", userID), attribute.String("month", month.String()))

		report, err := projSvc.MonthlyReport(ctx, userID, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func monthlyDuesHandler(projSvc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/months/{month}/dues")
		defer span.End()

		month, err := monthParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}

		dues, err := projSvc.MonthlyDues(ctx, chi.URLParam(r, "userId"), month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dues)
	}
}

func accountMonthHandler(projSvc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/accounts/{accountId}/months/{month}")
		defer span.End()

		month, err := monthParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		out, err := projSvc.AccountMonth(ctx, chi.URLParam(r, "userId"), accountID, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func cardInvoiceHandler(projSvc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/cards/{cardId}/invoices/{month}")
		defer span.End()

		month, err := monthParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}

		inv, err := projSvc.CardInvoice(ctx, chi.URLParam(r, "userId"), chi.URLParam(r, "cardId"), month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func pocketYieldsHandler(projSvc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/pockets/yield")
		defer span.End()

		yields, err := projSvc.PocketYields(ctx, chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"pockets": yields,
			"total":   len(yields),
		})
	}
}

func pocketYieldHandler(projSvc *service.ProjectionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/pockets/{pocketId}/yield")
		defer span.End()

		y, err := projSvc.PocketYield(ctx, chi.URLParam(r, "userId"), chi.URLParam(r, "pocketId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, y)
	}
}

func pendingRemindersHandler(reminderSvc *service.DueReminderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/reminders")
		defer span.End()

		reminders, err := reminderSvc.Pending(ctx, chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"reminders": reminders,
			"total":     len(reminders),
		})
	}
}
