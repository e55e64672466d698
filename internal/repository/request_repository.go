package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
)

// RequestRepo reads and writes request headers together with their
// single extension record.  The category of the header selects the
// extension table; the repository verifies that the row lives there and
// nowhere else before handing it out.
type RequestRepo struct {
	db *database.DB
}

// NewRequestRepo returns a new RequestRepo bound to the given database.
func NewRequestRepo(db *database.DB) *RequestRepo { return &RequestRepo{db: db} }

// DB exposes the underlying database so callers can open transactions.
func (r *RequestRepo) DB() *database.DB { return r.db }

// RequestRecord is a request header joined with its extension record.
type RequestRecord struct {
	model.Request
	Extension model.Extension
}

// Band returns the band extension, or nil for other categories.
func (rec *RequestRecord) Band() *model.BandDetail {
	b, _ := rec.Extension.(*model.BandDetail)
	return b
}

// CreateTx inserts a request header and its extension record within the
// scope of an existing transaction.  When req.ID is zero the database
// assigns one and it is written back to req and ext.  Status is written
// to every location the category stores it in.
func (r *RequestRepo) CreateTx(ctx context.Context, tx *sql.Tx, req *model.Request, ext model.Extension, now time.Time) error {
	if ext == nil || ext.Category() != req.Category {
		return ErrCategoryMismatch
	}
	if req.Status == "" {
		req.Status = model.StatusRequested
	}
	storage := req.Category.StatusStorage()
	var headerStatus any
	if storage.OnRequest {
		headerStatus = string(req.Status)
	}
	now = now.UTC()

	cols := `category, client_id, status, is_public, flyer_ref, created_at, updated_at`
	args := []any{string(req.Category), nullableUint(req.ClientID), headerStatus, req.IsPublic, nullableString(req.FlyerRef), now, now}
	vals := `?, ?, ?, ?, ?, ?, ?`
	if req.ID != 0 {
		cols = `id, ` + cols
		vals = `?, ` + vals
		args = append([]any{req.ID}, args...)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO requests (`+cols+`) VALUES (`+vals+`)`, args...)
	if err != nil {
		return err
	}
	if req.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		req.ID = uint64(id)
	}
	req.CreatedAt, req.UpdatedAt = now, now

	switch d := ext.(type) {
	case *model.RentalDetail:
		d.ID = req.ID
		_, err = tx.ExecContext(ctx, `INSERT INTO rental_requests
			(request_id, event_name, description, event_date, start_time, duration_minutes,
			 contact_name, contact_email, contact_phone, price_cents, deposit_cents)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.EventName, d.Description, d.Schedule.Date, d.Schedule.StartTime, d.Schedule.DurationMinutes,
			d.Contact.Name, d.Contact.Email, d.Contact.Phone, d.PriceCents, d.DepositCents)
	case *model.BandDetail:
		d.ID = req.ID
		d.Status = req.Status
		lineup, mErr := encodeLineup(d.Lineup)
		if mErr != nil {
			return mErr
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO band_requests
			(request_id, band_id, band_name, event_name, description, event_date, start_time, duration_minutes,
			 contact_name, contact_email, contact_phone, ticket_price_cents, guarantee_cents, lineup_json, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, nullableUint(d.BandID), d.BandName, d.EventName, d.Description, d.Schedule.Date, d.Schedule.StartTime,
			d.Schedule.DurationMinutes, d.Contact.Name, d.Contact.Email, d.Contact.Phone, d.TicketPriceCents,
			d.GuaranteeCents, lineup, string(d.Status))
	case *model.ServiceDetail:
		d.ID = req.ID
		d.Status = req.Status
		_, err = tx.ExecContext(ctx, `INSERT INTO service_requests
			(request_id, service_name, description, event_date, start_time, duration_minutes,
			 contact_name, contact_email, contact_phone, price_cents, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.ServiceName, d.Description, d.Schedule.Date, d.Schedule.StartTime, d.Schedule.DurationMinutes,
			d.Contact.Name, d.Contact.Email, d.Contact.Phone, d.PriceCents, string(d.Status))
	case *model.WorkshopDetail:
		d.ID = req.ID
		d.Status = req.Status
		_, err = tx.ExecContext(ctx, `INSERT INTO workshop_requests
			(request_id, workshop_name, instructor, description, event_date, start_time, duration_minutes,
			 contact_name, contact_email, contact_phone, capacity, fee_cents, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.WorkshopName, d.Instructor, d.Description, d.Schedule.Date, d.Schedule.StartTime,
			d.Schedule.DurationMinutes, d.Contact.Name, d.Contact.Email, d.Contact.Phone, d.Capacity, d.FeeCents,
			string(d.Status))
	default:
		return ErrCategoryMismatch
	}
	return err
}

// LockTx loads the request addressed by ref together with its extension
// record and locks the header row for the rest of the transaction (on
// dialects with row locks).  It returns ErrRequestNotFound,
// ErrExtensionNotFound or ErrCategoryMismatch when dispatch fails.
func (r *RequestRepo) LockTx(ctx context.Context, tx *sql.Tx, ref model.RequestRef) (*RequestRecord, error) {
	return r.load(ctx, tx, ref, true)
}

// GetTx is LockTx without the row lock.
func (r *RequestRepo) GetTx(ctx context.Context, tx *sql.Tx, ref model.RequestRef) (*RequestRecord, error) {
	return r.load(ctx, tx, ref, false)
}

func (r *RequestRepo) load(ctx context.Context, tx *sql.Tx, ref model.RequestRef, lock bool) (*RequestRecord, error) {
	suffix := ""
	if lock {
		suffix = r.db.Dialect.ForUpdate()
	}
	var (
		rec      RequestRecord
		category string
		clientID sql.NullInt64
		status   sql.NullString
		flyerRef sql.NullString
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, category, client_id, status, is_public, flyer_ref, created_at, updated_at
		 FROM requests WHERE id = ?`+suffix, ref.ID).
		Scan(&rec.ID, &category, &clientID, &status, &rec.IsPublic, &flyerRef, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	cat, ok := model.ParseCategory(category)
	if !ok {
		return nil, fmt.Errorf("request %d: unknown category %q", rec.ID, category)
	}
	if ref.Category != "" && ref.Category != cat {
		return nil, ErrCategoryMismatch
	}
	rec.Category = cat
	rec.ClientID = uintPtr(clientID)
	if flyerRef.Valid {
		rec.FlyerRef = &flyerRef.String
	}

	if err := r.checkExtensionPlacement(ctx, tx, rec.ID, cat); err != nil {
		return nil, err
	}
	ext, extStatus, err := r.loadExtension(ctx, tx, cat, rec.ID, suffix)
	if err != nil {
		return nil, err
	}
	rec.Extension = ext

	storage := cat.StatusStorage()
	switch {
	case storage.OnRequest && status.Valid:
		rec.Status = model.Status(status.String)
	case storage.OnExtension:
		rec.Status = extStatus
	}
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("request %d: invalid stored status %q", rec.ID, rec.Status)
	}
	return &rec, nil
}

// checkExtensionPlacement counts the rows keyed by id in every extension
// table.  Exactly one row, in the category's own table, is acceptable.
func (r *RequestRepo) checkExtensionPlacement(ctx context.Context, tx *sql.Tx, id uint64, cat model.Category) error {
	var counts [4]int
	err := tx.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM rental_requests WHERE request_id = ?),
		(SELECT COUNT(*) FROM band_requests WHERE request_id = ?),
		(SELECT COUNT(*) FROM service_requests WHERE request_id = ?),
		(SELECT COUNT(*) FROM workshop_requests WHERE request_id = ?)`,
		id, id, id, id).Scan(&counts[0], &counts[1], &counts[2], &counts[3])
	if err != nil {
		return err
	}
	own, others := 0, 0
	for i, c := range model.Categories {
		if c == cat {
			own = counts[i]
		} else {
			others += counts[i]
		}
	}
	switch {
	case own == 1 && others == 0:
		return nil
	case own == 0 && others == 0:
		return ErrExtensionNotFound
	default:
		return ErrCategoryMismatch
	}
}

// loadExtension reads the extension row of the given category.  The
// second result is the status stored on the row, if the category keeps
// one there.
func (r *RequestRepo) loadExtension(ctx context.Context, tx *sql.Tx, cat model.Category, id uint64, suffix string) (model.Extension, model.Status, error) {
	var (
		ext    model.Extension
		status string
		err    error
	)
	switch cat {
	case model.CategoryRental:
		d := &model.RentalDetail{}
		err = tx.QueryRowContext(ctx, `SELECT request_id, event_name, description, event_date, start_time,
			duration_minutes, contact_name, contact_email, contact_phone, price_cents, deposit_cents
			FROM rental_requests WHERE request_id = ?`+suffix, id).
			Scan(&d.ID, &d.EventName, &d.Description, &d.Schedule.Date, &d.Schedule.StartTime,
				&d.Schedule.DurationMinutes, &d.Contact.Name, &d.Contact.Email, &d.Contact.Phone,
				&d.PriceCents, &d.DepositCents)
		ext = d
	case model.CategoryBand:
		d := &model.BandDetail{}
		var (
			bandID sql.NullInt64
			lineup string
		)
		err = tx.QueryRowContext(ctx, `SELECT request_id, band_id, band_name, event_name, description, event_date,
			start_time, duration_minutes, contact_name, contact_email, contact_phone, ticket_price_cents,
			guarantee_cents, lineup_json, status
			FROM band_requests WHERE request_id = ?`+suffix, id).
			Scan(&d.ID, &bandID, &d.BandName, &d.EventName, &d.Description, &d.Schedule.Date,
				&d.Schedule.StartTime, &d.Schedule.DurationMinutes, &d.Contact.Name, &d.Contact.Email,
				&d.Contact.Phone, &d.TicketPriceCents, &d.GuaranteeCents, &lineup, &status)
		if err == nil {
			d.BandID = uintPtr(bandID)
			d.Status = model.Status(status)
			d.Lineup, err = decodeLineup(lineup)
		}
		ext = d
	case model.CategoryService:
		d := &model.ServiceDetail{}
		err = tx.QueryRowContext(ctx, `SELECT request_id, service_name, description, event_date, start_time,
			duration_minutes, contact_name, contact_email, contact_phone, price_cents, status
			FROM service_requests WHERE request_id = ?`+suffix, id).
			Scan(&d.ID, &d.ServiceName, &d.Description, &d.Schedule.Date, &d.Schedule.StartTime,
				&d.Schedule.DurationMinutes, &d.Contact.Name, &d.Contact.Email, &d.Contact.Phone,
				&d.PriceCents, &status)
		d.Status = model.Status(status)
		ext = d
	case model.CategoryWorkshop:
		d := &model.WorkshopDetail{}
		err = tx.QueryRowContext(ctx, `SELECT request_id, workshop_name, instructor, description, event_date,
			start_time, duration_minutes, contact_name, contact_email, contact_phone, capacity, fee_cents, status
			FROM workshop_requests WHERE request_id = ?`+suffix, id).
			Scan(&d.ID, &d.WorkshopName, &d.Instructor, &d.Description, &d.Schedule.Date, &d.Schedule.StartTime,
				&d.Schedule.DurationMinutes, &d.Contact.Name, &d.Contact.Email, &d.Contact.Phone,
				&d.Capacity, &d.FeeCents, &status)
		d.Status = model.Status(status)
		ext = d
	default:
		return nil, "", ErrCategoryMismatch
	}
	if err != nil {
		if IsNoRows(err) {
			return nil, "", ErrExtensionNotFound
		}
		return nil, "", err
	}
	return ext, model.Status(status), nil
}

// UpdateStatusTx writes status to every location the request's category
// stores it in and bumps the header's updated_at.  rec is updated in
// place so callers keep a consistent view.
func (r *RequestRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, rec *RequestRecord, status model.Status, now time.Time) error {
	now = now.UTC()
	storage := rec.Category.StatusStorage()
	var err error
	if storage.OnRequest {
		_, err = tx.ExecContext(ctx, `UPDATE requests SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, rec.ID)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE requests SET updated_at = ? WHERE id = ?`, now, rec.ID)
	}
	if err != nil {
		return err
	}
	if storage.OnExtension {
		q := `UPDATE ` + rec.Category.ExtensionTable() + ` SET status = ? WHERE request_id = ?`
		res, err := tx.ExecContext(ctx, q, string(status), rec.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrExtensionNotFound
		}
		switch d := rec.Extension.(type) {
		case *model.BandDetail:
			d.Status = status
		case *model.ServiceDetail:
			d.Status = status
		case *model.WorkshopDetail:
			d.Status = status
		}
	}
	rec.Status = status
	rec.UpdatedAt = now
	return nil
}

// SaveLineupTx replaces the canonical lineup list stored on a band
// request.
func (r *RequestRepo) SaveLineupTx(ctx context.Context, tx *sql.Tx, requestID uint64, items []model.LineupItem) error {
	raw, err := encodeLineup(items)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE band_requests SET lineup_json = ? WHERE request_id = ?`, raw, requestID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExtensionNotFound
	}
	return nil
}

func encodeLineup(items []model.LineupItem) (string, error) {
	if items == nil {
		items = []model.LineupItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode lineup: %w", err)
	}
	return string(b), nil
}

func decodeLineup(raw string) ([]model.LineupItem, error) {
	if raw == "" {
		return nil, nil
	}
	var items []model.LineupItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode lineup: %w", err)
	}
	return items, nil
}
