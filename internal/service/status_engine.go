package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/queue"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// StatusChange is one inbound status change.
type StatusChange struct {
	Ref    model.RequestRef
	Status model.Status
	Actor  model.Actor
	Reason string
	// Lineup, when non-nil, replaces the lineup list of a band request
	// before it is confirmed.
	Lineup []model.LineupItem
}

// Result describes a committed status change.  EventID is set whenever
// the request owns a confirmed event after the change.
type Result struct {
	Request  model.RequestRef `json:"request"`
	Previous model.Status     `json:"previous_status"`
	Status   model.Status     `json:"status"`
	EventID  *uint64          `json:"event_id,omitempty"`
}

// lineupSyncer is the part of LineupReconciler the engine drives.
type lineupSyncer interface {
	ReconcileTx(ctx context.Context, tx *sql.Tx, eventID uint64, items []model.LineupItem) error
}

// StatusEngine validates and applies status changes and drives their side
// effects on the confirmed event.
type StatusEngine struct {
	*base
	db       *database.DB
	requests *repository.RequestRepo
	events   *repository.EventRepo
	mat      *Materializer
	lineup   lineupSyncer
	audit    *AuditRecorder
	notifier Notifier
}

// SetStatus moves a request to ch.Status.  Everything happens in one
// transaction; only the lineup reconcile of a band confirmation may fail
// without undoing the rest, since a correct status matters more than a
// fresh lineup.  When its savepoint cannot be restored the whole change
// fails instead.  Messages about the event are published after commit;
// a failed publish is logged here and nowhere else.
func (s *StatusEngine) SetStatus(ctx context.Context, ch StatusChange) (res Result, err error) {
	const op = "set_status"
	category := ch.Ref.Category
	defer func() {
		s.metrics.RecordTransition(category, res.Previous, ch.Status, err)
	}()

	if !ch.Status.Valid() {
		return res, apperr.InvalidTransition(fmt.Sprintf("unknown status %q", ch.Status)).WithOp(op)
	}
	if ch.Status == model.StatusConfirmed && !ch.Actor.AtLeast(model.RoleStaff) {
		return res, apperr.Forbidden("confirming a request requires staff privileges").WithOp(op)
	}
	if ch.Lineup != nil && ch.Status != model.StatusConfirmed {
		return res, apperr.Validation("a lineup can only be supplied when confirming").WithOp(op)
	}

	var pending []queue.EventMessage
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.requests.LockTx(ctx, tx, ch.Ref)
		if err != nil {
			return err
		}
		category = rec.Category
		res.Request = rec.Ref()
		res.Previous = rec.Status
		if !model.CanTransition(rec.Status, ch.Status) {
			return apperr.InvalidTransition(fmt.Sprintf("cannot move request %s from %s to %s",
				rec.Ref(), rec.Status, ch.Status))
		}
		if ch.Lineup != nil && rec.Category != model.CategoryBand {
			return apperr.Validation("a lineup can only be supplied for band requests")
		}
		if err := s.requests.UpdateStatusTx(ctx, tx, rec, ch.Status, s.clock()); err != nil {
			return err
		}

		var msg *queue.EventMessage
		switch ch.Status {
		case model.StatusConfirmed:
			msg, err = s.confirm(ctx, tx, rec, ch, &res)
		case model.StatusRequested:
			msg, err = s.downgrade(ctx, tx, rec, ch)
		case model.StatusCancelled:
			msg, err = s.cancel(ctx, tx, rec, ch, &res)
		}
		if err != nil {
			return err
		}
		if msg != nil {
			pending = append(pending, *msg)
		}
		res.Status = ch.Status
		return nil
	})
	if err != nil {
		return res, s.fail(ctx, op, err)
	}

	for _, m := range pending {
		if pErr := s.notifier.Publish(ctx, m); pErr != nil {
			s.warn(ctx, "event message not published",
				slog.String("kind", m.Kind), slog.Uint64("event_id", m.EventID), errAttr(pErr))
		}
	}
	return res, nil
}

func (s *StatusEngine) confirm(ctx context.Context, tx *sql.Tx, rec *repository.RequestRecord, ch StatusChange, res *Result) (*queue.EventMessage, error) {
	if band := rec.Band(); band != nil && ch.Lineup != nil {
		if err := s.requests.SaveLineupTx(ctx, tx, rec.ID, ch.Lineup); err != nil {
			return nil, err
		}
		band.Lineup = ch.Lineup
	}

	ev, outcome, err := s.mat.MaterializeTx(ctx, tx, rec)
	if err != nil {
		return nil, err
	}
	res.EventID = &ev.ID

	if band := rec.Band(); band != nil {
		err := database.Savepoint(ctx, tx, "lineup_reconcile", func() error {
			return s.lineup.ReconcileTx(ctx, tx, ev.ID, band.Lineup)
		})
		if errors.Is(err, database.ErrSavepointLost) {
			return nil, err
		}
		if err != nil {
			s.metrics.RecordLineupFailure()
			s.warn(ctx, "lineup reconcile failed; status change kept",
				slog.Uint64("event_id", ev.ID), slog.String("request", rec.Ref().String()), errAttr(err))
		}
	}

	if outcome == OutcomeReused {
		return nil, nil
	}
	msg := eventMessage(queue.KindConfirmed, ev, model.StatusConfirmed, ch.Actor, ch.Reason, s.clock())
	return &msg, nil
}

func (s *StatusEngine) downgrade(ctx context.Context, tx *sql.Tx, rec *repository.RequestRecord, ch StatusChange) (*queue.EventMessage, error) {
	ev, err := s.events.GetByRequestTx(ctx, tx, rec.ID, rec.Category)
	if errors.Is(err, repository.ErrEventNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry, err := s.audit.OnDowngradeTx(ctx, tx, ev.ID, ch.Actor, ch.Reason)
	if err != nil || entry == nil {
		return nil, err
	}
	msg := eventMessage(queue.KindDowngraded, ev, model.StatusRequested, ch.Actor, ch.Reason, entry.DeletedAt)
	return &msg, nil
}

func (s *StatusEngine) cancel(ctx context.Context, tx *sql.Tx, rec *repository.RequestRecord, ch StatusChange, res *Result) (*queue.EventMessage, error) {
	ev, err := s.events.GetByRequestTx(ctx, tx, rec.ID, rec.Category)
	if errors.Is(err, repository.ErrEventNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res.EventID = &ev.ID
	if !ev.IsActive {
		return nil, nil
	}
	now := s.clock()
	if err := s.events.CancelTx(ctx, tx, ev.ID, now); err != nil {
		return nil, err
	}
	msg := eventMessage(queue.KindCancelled, ev, model.StatusCancelled, ch.Actor, ch.Reason, now)
	return &msg, nil
}
