package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
)

// ClientRepo gives the client resolver find-or-create access to the
// clients table.  The table itself is owned by the catalog; this core
// only matches and inserts.
type ClientRepo struct {
	db *database.DB
}

// NewClientRepo returns a new ClientRepo bound to the given database.
func NewClientRepo(db *database.DB) *ClientRepo { return &ClientRepo{db: db} }

const clientColumns = `id, name, email, phone, created_at`

// FindByEmailTx returns the client whose normalized email equals email,
// or sql.ErrNoRows.
func (r *ClientRepo) FindByEmailTx(ctx context.Context, tx *sql.Tx, email string) (model.Client, error) {
	return scanClient(tx.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE email = ? LIMIT 1`, email))
}

// FindByPhoneTx returns the client whose normalized phone equals phone,
// or sql.ErrNoRows.
func (r *ClientRepo) FindByPhoneTx(ctx context.Context, tx *sql.Tx, phone string) (model.Client, error) {
	return scanClient(tx.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE phone = ? LIMIT 1`, phone))
}

// InsertIgnoreTx inserts a client unless its email or phone is already
// taken.  It reports whether a row was inserted and, if so, its id.  The
// unique indices make concurrent inserts of the same contact safe: the
// loser inserts nothing and re-reads the winner's row.
func (r *ClientRepo) InsertIgnoreTx(ctx context.Context, tx *sql.Tx, c *model.Client, now time.Time) (bool, error) {
	q := r.db.Dialect.InsertIgnore() + ` clients (name, email, phone, created_at) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, c.Name, nullableString(c.Email), nullableString(c.Phone), now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	c.ID = uint64(id)
	c.CreatedAt = now.UTC()
	return true, nil
}

func scanClient(row *sql.Row) (model.Client, error) {
	var (
		c     model.Client
		email sql.NullString
		phone sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &c.CreatedAt); err != nil {
		return model.Client{}, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	if phone.Valid {
		c.Phone = &phone.String
	}
	return c, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// IsNoRows reports whether err means "no matching row".
func IsNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
