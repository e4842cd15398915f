package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/observability"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/caixa-bfa-go/internal/port"
	"github.com/boddenberg/caixa-bfa-go/internal/projection"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var reminderTracer = otel.Tracer("service/reminders")

// ReminderRun summarizes one pass of the reminder worker.
type ReminderRun struct {
	Users     int
	Published int
	Failed    int
}

// DueReminderService publishes a reminder for every unpaid installment
// falling due within the next horizonDays.
type DueReminderService struct {
	store       port.FinanceStore
	projections *ProjectionService
	publisher   port.DueReminderPublisher
	bulkhead    *resilience.Bulkhead
	horizonDays int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewDueReminderService creates the reminder service. At most maxConcurrency
// users are processed at once.
func NewDueReminderService(
	store port.FinanceStore,
	projections *ProjectionService,
	publisher port.DueReminderPublisher,
	maxConcurrency, horizonDays int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *DueReminderService {
	if horizonDays < 0 {
		horizonDays = 0
	}
	return &DueReminderService{
		store:       store,
		projections: projections,
		publisher:   publisher,
		bulkhead:    resilience.NewBulkhead(maxConcurrency),
		horizonDays: horizonDays,
		metrics:     metrics,
		logger:      logger,
	}
}

// Run processes every known user. Failures of one user do not stop the
// others; they are joined into the returned error.
func (s *DueReminderService) Run(ctx context.Context) (*ReminderRun, error) {
	ctx, span := reminderTracer.Start(ctx, "DueReminderService.Run")
	defer span.End()

	users, err := s.store.ListUserIDs(ctx)
	if err != nil {
		s.metrics.IncrExternalError("store")
		return nil, fmt.Errorf("list users: %w", err)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		run  = &ReminderRun{Users: len(users)}
		errs []error
	)
	for _, userID := range users {
		if err := s.bulkhead.Acquire(ctx); err != nil {
			// Workers still running append under mu.
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer s.bulkhead.Release()

			published, failed, err := s.remindUser(ctx, userID)
			mu.Lock()
			defer mu.Unlock()
			run.Published += published
			run.Failed += failed
			if err != nil {
				errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			}
		}(userID)
	}
	wg.Wait()

	span.SetAttributes(
		attribute.Int("reminders.users", run.Users),
		attribute.Int("reminders.published", run.Published),
		attribute.Int("reminders.failed", run.Failed),
	)
	s.logger.Info("due reminders run finished",
		zap.Int("users", run.Users),
		zap.Int("published", run.Published),
		zap.Int("failed", run.Failed),
	)
	return run, errors.Join(errs...)
}

// Pending lists the reminders userID would receive today, without publishing.
func (s *DueReminderService) Pending(ctx context.Context, userID string) ([]domain.DueReminder, error) {
	snap, err := s.projections.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return DueReminders(snap, s.projections.Today(), s.horizonDays), nil
}

func (s *DueReminderService) remindUser(ctx context.Context, userID string) (published, failed int, err error) {
	reminders, err := s.Pending(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	var errs []error
	for i := range reminders {
		if err := s.publisher.PublishDueReminder(ctx, &reminders[i]); err != nil {
			s.metrics.IncrReminder("error")
			s.logger.Error("failed to publish due reminder",
				zap.String("user_id", userID),
				zap.String("entity_id", reminders[i].EntityID),
				zap.Error(err),
			)
			failed++
			errs = append(errs, err)
			continue
		}
		s.metrics.IncrReminder("published")
		published++
	}
	return published, failed, errors.Join(errs...)
}

// DueReminders lists unpaid entries of snap whose due date falls within
// [today, today+horizonDays]. Debts fall due on their due date's day of
// month; card purchases on the card's due day. Purchases on cards without a
// due day are skipped.
func DueReminders(snap *domain.Snapshot, today domain.Date, horizonDays int) []domain.DueReminder {
	until := domain.DateOf(today.AddDate(0, 0, horizonDays))

	months := []domain.Month{today.Month()}
	if last := until.Month(); last != today.Month() {
		for m := today.Month().Next(); !m.After(last); m = m.Next() {
			months = append(months, m)
		}
	}

	debtDay := make(map[string]int, len(snap.Debts))
	for _, d := range snap.Debts {
		day := 1
		if !d.DueDate.IsZero() {
			day = d.DueDate.Day()
		}
		debtDay[d.ID] = day
	}
	cardDay := make(map[string]int, len(snap.Cards))
	for _, c := range snap.Cards {
		if c.DueDay != nil {
			cardDay[c.ID] = *c.DueDay
		}
	}

	var out []domain.DueReminder
	for _, month := range months {
		for _, e := range projection.DueEntries(snap.Debts, snap.Purchases, snap.Transactions, month) {
			if e.Remaining <= 0 {
				continue
			}
			var day int
			switch e.Source {
			case domain.DueFromDebt:
				day = debtDay[e.ID]
			case domain.DueFromPurchase:
				d, ok := cardDay[e.CardID]
				if !ok {
					continue
				}
				day = d
			}
			due := month.Day(day)
			if due.Before(today.Time) || due.After(until.Time) {
				continue
			}
			out = append(out, domain.DueReminder{
				ID:          uuid.NewString(),
				UserID:      snap.UserID,
				Source:      e.Source,
				EntityID:    e.ID,
				Description: e.Description,
				Month:       month,
				DueDate:     due,
				Amount:      e.Remaining,
			})
		}
	}
	return out
}
