// Package service implements the booking confirmation core: the status
// transition engine and the components it drives (event materializer,
// lineup reconciler, audit recorder and client resolver).  Every
// operation runs inside one database transaction and surfaces apperr
// errors only.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/logger"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/queue"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// Clock returns the current time.  Tests inject a fixed clock.
type Clock func() time.Time

// Notifier receives a message for every committed change that touched a
// confirmed event.  Implementations must not block for long; failures
// are logged and otherwise ignored.
type Notifier interface {
	Publish(ctx context.Context, msg queue.EventMessage) error
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, queue.EventMessage) error { return nil }

// Options carries the collaborators shared by every component.  Zero
// values are replaced with no-op implementations.
type Options struct {
	Logger      *logger.Logger
	Metrics     Metrics
	Notifier    Notifier
	Clock       Clock
	PhoneRegion string
	// LogSQL logs storage failures with their operation name before they
	// are wrapped.
	LogSQL bool
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Notifier == nil {
		o.Notifier = NopNotifier{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.PhoneRegion == "" {
		o.PhoneRegion = "MX"
	}
	return o
}

// Booking bundles the components of the core wired against one database.
type Booking struct {
	Clients   *ClientResolver
	Audits    *AuditRecorder
	Lineups   *LineupReconciler
	Materials *Materializer
	Engine    *StatusEngine
	Events    *EventQuery
}

// New wires every component of the core.
func New(db *database.DB, opts Options) *Booking {
	opts = opts.withDefaults()
	shared := &base{log: opts.Logger, metrics: opts.Metrics, now: opts.Clock, logSQL: opts.LogSQL}

	requests := repository.NewRequestRepo(db)
	events := repository.NewEventRepo(db)
	lineups := repository.NewLineupRepo()
	audits := repository.NewAuditRepo(db)

	clients := NewClientResolver(repository.NewClientRepo(db), opts.PhoneRegion, opts.Clock)
	audit := &AuditRecorder{base: shared, db: db, events: events, lineups: lineups, audits: audits}
	lineup := &LineupReconciler{base: shared, db: db, requests: requests, events: events, lineups: lineups}
	mat := &Materializer{base: shared, db: db, requests: requests, events: events, clients: clients}
	engine := &StatusEngine{
		base:     shared,
		db:       db,
		requests: requests,
		events:   events,
		mat:      mat,
		lineup:   lineup,
		audit:    audit,
		notifier: opts.Notifier,
	}
	query := &EventQuery{base: shared, db: db, requests: requests, events: events, lineups: lineups}

	return &Booking{
		Clients:   clients,
		Audits:    audit,
		Lineups:   lineup,
		Materials: mat,
		Engine:    engine,
		Events:    query,
	}
}

// base holds what every component needs to log, measure and map errors.
type base struct {
	log     *logger.Logger
	metrics Metrics
	now     Clock
	logSQL  bool
}

func (b *base) clock() time.Time { return b.now().UTC() }

// fail converts an error from the storage layer into an apperr.Error.
// Errors that already carry a kind pass through untouched.
func (b *base) fail(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrRequestNotFound):
		return apperr.Wrap(apperr.KindNotFound, "request not found", err).WithOp(op)
	case errors.Is(err, repository.ErrExtensionNotFound):
		return apperr.Wrap(apperr.KindNotFound, "extension record not found", err).WithOp(op)
	case errors.Is(err, repository.ErrCategoryMismatch):
		return apperr.Wrap(apperr.KindReferentialViolation, "request category does not match its extension record", err).WithOp(op)
	case errors.Is(err, repository.ErrEventNotFound):
		return apperr.Wrap(apperr.KindNotFound, "confirmed event not found", err).WithOp(op)
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Wrap(apperr.KindConflict, "concurrent update", err).WithOp(op)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindInternal, "operation aborted", err).WithOp(op)
	}
	if b.logSQL {
		b.log.WithContext(ctx).DatabaseError(op, err)
	}
	return apperr.Internal("storage failure", err).WithOp(op)
}

func (b *base) warn(ctx context.Context, msg string, args ...any) {
	b.log.WithContext(ctx).Warn(msg, args...)
}

func eventMessage(kind string, e model.ConfirmedEvent, status model.Status, actor model.Actor, reason string, at time.Time) queue.EventMessage {
	return queue.EventMessage{
		Kind:       kind,
		EventID:    e.ID,
		RequestID:  e.RequestID,
		Type:       string(e.Type),
		Name:       e.Name,
		Date:       e.Date,
		StartTime:  e.StartTime,
		Status:     string(status),
		ActorID:    actor.ID,
		ActorRole:  actor.Role.String(),
		Reason:     reason,
		OccurredAt: at,
	}
}

// errAttr renders err for structured logs.
func errAttr(err error) slog.Attr { return slog.String("error", err.Error()) }
