package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditRecorder snapshots and removes confirmed events whose request was
// downgraded.
type AuditRecorder struct {
	*base
	db      *database.DB
	events  *repository.EventRepo
	lineups *repository.LineupRepo
	audits  *repository.AuditRepo
}

type auditSnapshot struct {
	Event  model.ConfirmedEvent `json:"event"`
	Lineup []model.LineupEntry  `json:"lineup"`
}

// OnDowngradeTx writes one audit entry holding the full event row and its
// lineup, then hard deletes the event.  A missing event is not an error:
// the call returns nil, nil so a repeated downgrade is harmless.
func (a *AuditRecorder) OnDowngradeTx(ctx context.Context, tx *sql.Tx, eventID uint64, actor model.Actor, reason string) (*model.AuditEntry, error) {
	ev, err := a.events.GetByIDTx(ctx, tx, eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lineup, err := a.lineups.ListTx(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(auditSnapshot{Event: ev, Lineup: lineup})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	entry := &model.AuditEntry{
		EventID:     ev.ID,
		RequestID:   ev.RequestID,
		Type:        ev.Type,
		SourceTable: ev.SourceTable,
		Snapshot:    snapshot,
		ActorID:     actor.ID,
		ActorRole:   actor.Role.String(),
		Reason:      reason,
		DeletedAt:   a.clock(),
	}
	if err := a.audits.InsertTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := a.events.DeleteTx(ctx, tx, ev.ID); err != nil {
		return nil, err
	}
	a.metrics.RecordAudit(ev.Type)
	return entry, nil
}

// ListAudits returns the entries matching f, newest first.  The limit
// defaults to 50 and is capped at 500.
func (a *AuditRecorder) ListAudits(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultAuditLimit
	case f.Limit > maxAuditLimit:
		f.Limit = maxAuditLimit
	}
	out, err := a.audits.List(ctx, f)
	if err != nil {
		return nil, a.fail(ctx, "list_audits", err)
	}
	return out, nil
}
