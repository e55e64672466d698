package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
)

// ClientResolver finds or creates the client record behind the contact
// fields of a request.
type ClientResolver struct {
	clients *repository.ClientRepo
	region  string
	now     Clock
}

// NewClientResolver returns a resolver normalising phone numbers against
// region (an ISO 3166 code such as "MX").
func NewClientResolver(clients *repository.ClientRepo, region string, now Clock) *ClientResolver {
	return &ClientResolver{clients: clients, region: strings.ToUpper(region), now: now}
}

// GetOrCreate returns the id of the client matching c.  Email is matched
// first, then phone; when neither matches a new client is inserted.  A
// contact without email and phone resolves to nil.
//
// The insert ignores unique-key collisions and re-reads the row, so two
// transactions racing on the same new contact end up with one client.
func (r *ClientResolver) GetOrCreate(ctx context.Context, tx *sql.Tx, c model.Contact) (*uint64, error) {
	email := NormalizeEmail(c.Email)
	phone := NormalizePhone(c.Phone, r.region)
	if email == "" && phone == "" {
		return nil, nil
	}

	if id, err := r.lookup(ctx, tx, email, phone); err != nil || id != nil {
		return id, err
	}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = email
		if name == "" {
			name = phone
		}
	}
	client := model.Client{Name: name}
	if email != "" {
		client.Email = &email
	}
	if phone != "" {
		client.Phone = &phone
	}
	inserted, err := r.clients.InsertIgnoreTx(ctx, tx, &client, r.now())
	if err != nil {
		return nil, err
	}
	if inserted {
		return &client.ID, nil
	}

	id, err := r.lookup(ctx, tx, email, phone)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errors.New("client insert ignored but no matching row found")
	}
	return id, nil
}

func (r *ClientResolver) lookup(ctx context.Context, tx *sql.Tx, email, phone string) (*uint64, error) {
	if email != "" {
		cl, err := r.clients.FindByEmailTx(ctx, tx, email)
		if err == nil {
			return &cl.ID, nil
		}
		if !repository.IsNoRows(err) {
			return nil, err
		}
	}
	if phone != "" {
		cl, err := r.clients.FindByPhoneTx(ctx, tx, phone)
		if err == nil {
			return &cl.ID, nil
		}
		if !repository.IsNoRows(err) {
			return nil, err
		}
	}
	return nil, nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone formats a phone number to E.164.  If parsing fails, it
// returns the trimmed input.
func NormalizePhone(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}
	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}
