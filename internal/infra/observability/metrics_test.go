package observability_test

import (
	"context"
	"testing"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/observability"
)

func TestGetEngineSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrProjection("success")
	m.IncrProjection("success")
	m.IncrProjection("success")
	m.IncrProjection("error")
	m.IncrCacheHit("rate")
	m.IncrCacheMiss("rate")
	m.IncrExternalError("store")
	m.IncrReminder("published")
	m.IncrReminder("error")

	snap := m.GetEngineSnapshot()
	if snap.Projections != 4 || snap.ProjectionErrs != 1 {
		t.Errorf("unexpected projection counters: %+v", snap)
	}
	if snap.ErrorRate != 0.25 {
		t.Errorf("expected error rate 0.25, got %v", snap.ErrorRate)
	}
	if snap.CacheHitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", snap.CacheHitRate)
	}
	if snap.StoreErrors != 1 || snap.Reminders != 1 {
		t.Errorf("unexpected store/reminder counters: %+v", snap)
	}
}

func TestGetEngineSnapshot_Empty(t *testing.T) {
	snap := observability.NewMetrics().GetEngineSnapshot()
	if snap.ErrorRate != 0 || snap.CacheHitRate != 0 {
		t.Errorf("expected zero rates, got %+v", snap)
	}
}

func TestObserveSnapshot(t *testing.T) {
	m := observability.NewMetrics()
	m.ObserveSnapshot(&domain.Snapshot{Accounts: make([]domain.CashAccount, 3)})

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() == "caixa_snapshot_entities" {
			return
		}
	}
	t.Error("expected caixa_snapshot_entities to be registered")
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer("", "caixa-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
