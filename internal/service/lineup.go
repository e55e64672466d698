package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// LineupReconciler keeps the lineup entries of a band event in sync with
// the lineup list stored on the band request.  The guest list has no
// identity of its own, so every reconcile replaces it wholesale.
type LineupReconciler struct {
	*base
	db       *database.DB
	requests *repository.RequestRepo
	events   *repository.EventRepo
	lineups  *repository.LineupRepo
}

// Reconcile runs ReconcileTx in its own transaction and returns the
// resulting entries.
func (l *LineupReconciler) Reconcile(ctx context.Context, eventID uint64, items []model.LineupItem) ([]model.LineupEntry, error) {
	var out []model.LineupEntry
	err := l.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := l.ReconcileTx(ctx, tx, eventID, items); err != nil {
			return err
		}
		var err error
		out, err = l.lineups.ListTx(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, l.fail(ctx, "reconcile_lineup", err)
	}
	return out, nil
}

// ReplaceLineup stores items as the canonical lineup of the band request
// behind eventID and reconciles the event against it, atomically.
func (l *LineupReconciler) ReplaceLineup(ctx context.Context, eventID uint64, items []model.LineupItem) ([]model.LineupEntry, error) {
	var out []model.LineupEntry
	err := l.db.WithTx(ctx, func(tx *sql.Tx) error {
		ev, err := l.events.GetByIDTx(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if ev.Type != model.CategoryBand {
			return apperr.ReferentialViolation("lineups belong to band events only")
		}
		if err := l.requests.SaveLineupTx(ctx, tx, ev.RequestID, items); err != nil {
			return err
		}
		if err := l.ReconcileTx(ctx, tx, eventID, items); err != nil {
			return err
		}
		out, err = l.lineups.ListTx(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, l.fail(ctx, "replace_lineup", err)
	}
	return out, nil
}

// ReconcileTx rewrites the lineup entries of eventID so that they mirror
// items.  Afterwards exactly one entry is principal:
//
//   - guest rows (neither principal nor requester) are deleted, and
//     requester rows survive only while a guest still names their band,
//   - the first principal row is updated in place and any other principal
//     row is removed (or a principal row is inserted when none exists),
//   - guests are inserted with order = their 1-based input position.
func (l *LineupReconciler) ReconcileTx(ctx context.Context, tx *sql.Tx, eventID uint64, items []model.LineupItem) error {
	ev, err := l.events.GetByIDTx(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if ev.Type != model.CategoryBand {
		return apperr.ReferentialViolation("lineups belong to band events only")
	}
	rec, err := l.requests.GetTx(ctx, tx, model.RequestRef{Category: model.CategoryBand, ID: ev.RequestID})
	if err != nil {
		return err
	}
	band := rec.Band()
	principal, guests := NormalizeLineup(items, band, ev.Name)

	existing, err := l.lineups.ListTx(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if err := l.lineups.DeleteGuestsTx(ctx, tx, eventID); err != nil {
		return err
	}

	var (
		principalRow *model.LineupEntry
		extra        []uint64
		requesters   []model.LineupEntry
	)
	for i := range existing {
		e := existing[i]
		switch {
		case e.IsPrincipal && principalRow == nil:
			principalRow = &existing[i]
		case e.IsPrincipal:
			extra = append(extra, e.ID)
		case e.IsRequester:
			requesters = append(requesters, e)
		}
	}
	if err := l.lineups.DeleteByIDsTx(ctx, tx, extra); err != nil {
		return err
	}

	now := l.clock()
	pEntry := entryFor(eventID, principal, band)
	if principalRow != nil {
		pEntry.ID = principalRow.ID
		if err := l.lineups.UpdateTx(ctx, tx, pEntry); err != nil {
			return err
		}
	} else if err := l.lineups.InsertBulkTx(ctx, tx, []model.LineupEntry{pEntry}, now); err != nil {
		return err
	}

	fresh := make([]model.LineupEntry, 0, len(guests))
	claimed := make(map[uint64]bool, len(requesters))
	for _, g := range guests {
		entry := entryFor(eventID, g, band)
		if kept := matchEntry(requesters, g, claimed); kept != nil {
			// A surviving requester row stands in for this guest.
			claimed[kept.ID] = true
			entry.ID = kept.ID
			entry.IsRequester = true
			if err := l.lineups.UpdateTx(ctx, tx, entry); err != nil {
				return err
			}
			continue
		}
		fresh = append(fresh, entry)
	}

	// Requester rows no guest took over are gone from the list (or the
	// band became the principal) and must not linger.
	var stale []uint64
	for _, r := range requesters {
		if !claimed[r.ID] {
			stale = append(stale, r.ID)
		}
	}
	if err := l.lineups.DeleteByIDsTx(ctx, tx, stale); err != nil {
		return err
	}
	return l.lineups.InsertBulkTx(ctx, tx, fresh, now)
}

// NormalizeLineup splits items into exactly one principal and the guests.
// Items with a blank name are dropped.  When no item is flagged principal
// the band's primary band is synthesized (named after fallback when the
// band record has no name); when several are flagged the first one wins
// and the rest become guests.  Guests keep their 1-based input position
// as order, the principal gets PrincipalOrder.  A guest naming the
// principal band again is dropped.
func NormalizeLineup(items []model.LineupItem, band *model.BandDetail, fallback string) (model.LineupItem, []model.LineupItem) {
	var (
		principal *model.LineupItem
		guests    = make([]model.LineupItem, 0, len(items))
	)
	for i, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			continue
		}
		it.Order = i + 1
		if it.IsPrincipal && principal == nil {
			p := it
			principal = &p
			continue
		}
		it.IsPrincipal = false
		guests = append(guests, it)
	}

	if principal == nil {
		var p model.LineupItem
		if band != nil {
			p = band.PrimaryBand()
		}
		if p.Name == "" {
			p.Name = strings.TrimSpace(fallback)
		}
		p.IsPrincipal = true
		principal = &p
	}
	principal.Order = model.PrincipalOrder

	out := guests[:0]
	for _, g := range guests {
		if sameBand(g, *principal) {
			continue
		}
		out = append(out, g)
	}
	return *principal, out
}

func entryFor(eventID uint64, it model.LineupItem, band *model.BandDetail) model.LineupEntry {
	requester := false
	if band != nil {
		requester = sameBand(it, band.PrimaryBand())
	}
	return model.LineupEntry{
		EventID:     eventID,
		BandID:      it.BandID,
		Name:        it.Name,
		SortOrder:   it.Order,
		IsPrincipal: it.IsPrincipal,
		IsRequester: requester,
		State:       model.LineupStateConfirmed,
	}
}

func matchEntry(rows []model.LineupEntry, it model.LineupItem, claimed map[uint64]bool) *model.LineupEntry {
	for i := range rows {
		if claimed[rows[i].ID] {
			continue
		}
		r := model.LineupItem{BandID: rows[i].BandID, Name: rows[i].Name}
		if sameBand(r, it) {
			return &rows[i]
		}
	}
	return nil
}

// sameBand compares by band id when both sides carry one and by name
// otherwise.
func sameBand(a, b model.LineupItem) bool {
	if a.BandID != nil && b.BandID != nil {
		return *a.BandID == *b.BandID
	}
	if a.BandID != nil || b.BandID != nil {
		return false
	}
	return a.Name != "" && strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name))
}
