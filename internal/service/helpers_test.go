package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/queue"
	"github.com/iliyamo/venue-booking/internal/testutil"
)

var (
	staff  = model.Actor{ID: "s-1", Role: model.RoleStaff}
	admin  = model.Actor{ID: "a-1", Role: model.RoleAdmin}
	client = model.Actor{ID: "c-1", Role: model.RoleClient}
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []queue.EventMessage
}

func (n *recordingNotifier) Publish(_ context.Context, m queue.EventMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, m)
	return nil
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Kind)
	}
	return out
}

type countingMetrics struct {
	mu             sync.Mutex
	transitions    int
	failed         int
	outcomes       []string
	audits         int
	lineupFailures int
}

func (m *countingMetrics) RecordTransition(_ model.Category, _, _ model.Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions++
	if err != nil {
		m.failed++
	}
}

func (m *countingMetrics) RecordMaterialize(_ model.Category, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *countingMetrics) RecordAudit(model.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits++
}

func (m *countingMetrics) RecordLineupFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lineupFailures++
}

// tickingClock advances one second per reading so timestamps are ordered.
func tickingClock() Clock {
	var mu sync.Mutex
	t := testutil.Now
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	db       *database.DB
	svc      *Booking
	notifier *recordingNotifier
	metrics  *countingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{db: db, notifier: &recordingNotifier{}, metrics: &countingMetrics{}}
	f.svc = New(db, Options{
		Notifier:    f.notifier,
		Metrics:     f.metrics,
		Clock:       tickingClock(),
		PhoneRegion: "US",
	})
	return f
}

func (f *fixture) setStatus(ref model.RequestRef, status model.Status, actor model.Actor) (Result, error) {
	return f.svc.Engine.SetStatus(context.Background(), StatusChange{Ref: ref, Status: status, Actor: actor})
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	return testutil.Count(t, f.db, query, args...)
}

func band(id uint64) model.RequestRef { return model.RequestRef{Category: model.CategoryBand, ID: id} }
