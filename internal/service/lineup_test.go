package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/testutil"
)

func u64(v uint64) *uint64 { return &v }

func TestNormalizeLineup(t *testing.T) {
	b := &model.BandDetail{BandID: u64(5), BandName: "Home Band", EventName: "Night"}

	t.Run("no principal synthesizes the requesting band", func(t *testing.T) {
		p, guests := NormalizeLineup([]model.LineupItem{{Name: "A"}, {Name: "  "}, {Name: "B"}}, b, "fallback")
		assert.Equal(t, "Home Band", p.Name)
		assert.Equal(t, u64(5), p.BandID)
		assert.True(t, p.IsPrincipal)
		assert.Equal(t, model.PrincipalOrder, p.Order)
		require.Len(t, guests, 2)
		assert.Equal(t, 1, guests[0].Order)
		assert.Equal(t, 3, guests[1].Order)
	})

	t.Run("first principal wins", func(t *testing.T) {
		p, guests := NormalizeLineup([]model.LineupItem{
			{Name: "X", IsPrincipal: true},
			{Name: "Y", IsPrincipal: true},
		}, b, "")
		assert.Equal(t, "X", p.Name)
		require.Len(t, guests, 1)
		assert.Equal(t, "Y", guests[0].Name)
		assert.False(t, guests[0].IsPrincipal)
	})

	t.Run("principal repeated as guest is dropped", func(t *testing.T) {
		p, guests := NormalizeLineup([]model.LineupItem{{BandID: u64(5), Name: "home band"}, {Name: "Z"}}, b, "")
		assert.Equal(t, "Home Band", p.Name)
		require.Len(t, guests, 1)
		assert.Equal(t, "Z", guests[0].Name)
	})

	t.Run("nameless band falls back", func(t *testing.T) {
		p, guests := NormalizeLineup(nil, &model.BandDetail{}, " Friday ")
		assert.Equal(t, "Friday", p.Name)
		assert.Empty(t, guests)
	})
}

func principalCount(entries []model.LineupEntry) int {
	n := 0
	for _, e := range entries {
		if e.IsPrincipal {
			n++
		}
	}
	return n
}

func TestReconcileKeepsExactlyOnePrincipal(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(50, "Main")
	testutil.CreateRequest(t, f.db, req, detail)
	res, err := f.setStatus(band(50), model.StatusConfirmed, staff)
	require.NoError(t, err)
	eventID := *res.EventID
	ctx := context.Background()

	inputs := [][]model.LineupItem{
		nil,
		{{Name: "G1"}, {Name: "G2"}},
		{{Name: "P1", IsPrincipal: true}, {Name: "P2", IsPrincipal: true}, {Name: "G3"}},
		{{Name: "Main"}, {Name: "G4"}},
	}
	var principalID uint64
	for i, in := range inputs {
		out, err := f.svc.Lineups.Reconcile(ctx, eventID, in)
		require.NoError(t, err, i)
		assert.Equal(t, 1, principalCount(out), "input %d", i)
		assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM lineup_entries WHERE event_id = ? AND is_principal = 1`, eventID))
		for _, e := range out {
			if e.IsPrincipal {
				if principalID == 0 {
					principalID = e.ID
				}
				assert.Equal(t, principalID, e.ID, "principal row is updated in place")
			}
		}
	}

	// guests are replaced wholesale
	out, err := f.svc.Lineups.Reconcile(ctx, eventID, []model.LineupItem{{Name: "Only"}})
	require.NoError(t, err)
	names := make([]string, 0, len(out))
	for _, e := range out {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Only", "Main"}, names)
}

func TestReplaceLineupStoresCanonicalList(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(51, "Main")
	testutil.CreateRequest(t, f.db, req, detail)
	res, err := f.setStatus(band(51), model.StatusConfirmed, staff)
	require.NoError(t, err)

	out, err := f.svc.Lineups.ReplaceLineup(context.Background(), *res.EventID, []model.LineupItem{{Name: "Guest"}})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	// a later re-confirmation reconciles from the stored list
	_, err = f.setStatus(band(51), model.StatusConfirmed, staff)
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM lineup_entries WHERE event_id = ? AND name = 'Guest'`, *res.EventID))
}

func TestReplaceLineupRejectsNonBandEvents(t *testing.T) {
	f := newFixture(t)
	req, rental := testutil.Rental(52, "Expo")
	testutil.CreateRequest(t, f.db, req, rental)
	res, err := f.setStatus(model.RequestRef{ID: 52}, model.StatusConfirmed, staff)
	require.NoError(t, err)

	_, err = f.svc.Lineups.ReplaceLineup(context.Background(), *res.EventID, nil)
	assert.True(t, apperr.Is(err, apperr.KindReferentialViolation))

	_, err = f.svc.Lineups.ReplaceLineup(context.Background(), 9999, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func lineupShape(entries []model.LineupEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		s := fmt.Sprintf("%s@%d", e.Name, e.SortOrder)
		if e.IsPrincipal {
			s += " principal"
		}
		if e.IsRequester {
			s += " requester"
		}
		out = append(out, s)
	}
	return out
}

func TestReconcileRequesterPromotedAndRemoved(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(53, "Host")
	testutil.CreateRequest(t, f.db, req, detail)
	res, err := f.setStatus(band(53), model.StatusConfirmed, staff)
	require.NoError(t, err)
	eventID := *res.EventID
	ctx := context.Background()

	out, err := f.svc.Lineups.Reconcile(ctx, eventID, []model.LineupItem{{Name: "Star", IsPrincipal: true}, {Name: "Host"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Star@999 principal", "Host@2 requester"}, lineupShape(out))

	// the requesting band takes the headline slot
	out, err = f.svc.Lineups.Reconcile(ctx, eventID, []model.LineupItem{{Name: "Host", IsPrincipal: true}, {Name: "G"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Host@999 principal requester", "G@2"}, lineupShape(out))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM lineup_entries WHERE event_id = ? AND name = 'Host'`, eventID))

	// and then drops out of the list entirely
	out, err = f.svc.Lineups.Reconcile(ctx, eventID, []model.LineupItem{{Name: "Star", IsPrincipal: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Star@999 principal"}, lineupShape(out))
}

func TestReconcileReusesRequesterRowForGuest(t *testing.T) {
	f := newFixture(t)
	req, detail := testutil.Band(54, "Host")
	testutil.CreateRequest(t, f.db, req, detail)
	res, err := f.setStatus(band(54), model.StatusConfirmed, staff)
	require.NoError(t, err)
	eventID := *res.EventID
	ctx := context.Background()

	first, err := f.svc.Lineups.Reconcile(ctx, eventID, []model.LineupItem{{Name: "Star", IsPrincipal: true}, {Name: "Host"}})
	require.NoError(t, err)
	var hostID uint64
	for _, e := range first {
		if e.Name == "Host" {
			hostID = e.ID
		}
	}
	require.NotZero(t, hostID)

	second, err := f.svc.Lineups.Reconcile(ctx, eventID, []model.LineupItem{{Name: "Star", IsPrincipal: true}, {Name: "G"}, {Name: "Host"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Star@999 principal", "G@2", "Host@3 requester"}, lineupShape(second))
	for _, e := range second {
		if e.Name == "Host" {
			assert.Equal(t, hostID, e.ID, "requester row keeps its id")
		}
	}
}
