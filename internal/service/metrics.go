package service

import "github.com/iliyamo/venue-booking/internal/model"

// Outcomes of a materialize call.
const (
	OutcomeCreated     = "created"
	OutcomeReused      = "reused"
	OutcomeReactivated = "reactivated"
)

// Metrics records what the core does.  Use the prometheus recorder from
// internal/metrics in the server and NoopMetrics{} elsewhere.
type Metrics interface {
	// RecordTransition records one SetStatus call; err is nil on success.
	RecordTransition(category model.Category, from, to model.Status, err error)
	// RecordMaterialize records the outcome of a materialize call.
	RecordMaterialize(category model.Category, outcome string)
	// RecordAudit records a downgrade that removed an event.
	RecordAudit(category model.Category)
	// RecordLineupFailure records a reconcile failure swallowed by the engine.
	RecordLineupFailure()
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordTransition(model.Category, model.Status, model.Status, error) {}
func (NoopMetrics) RecordMaterialize(model.Category, string)                           {}
func (NoopMetrics) RecordAudit(model.Category)                                         {}
func (NoopMetrics) RecordLineupFailure()                                               {}
