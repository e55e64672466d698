package model

import "strings"

// Schedule groups the date, start time and duration shared by every
// extension record.  Date is stored as YYYY-MM-DD and StartTime as HH:MM.
type Schedule struct {
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Contact holds the free-form contact fields captured at intake.  They
// are fed to the client resolver when a request is materialized.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Empty reports whether the contact carries nothing a client could be
// matched on.
func (c Contact) Empty() bool {
	return strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Phone) == ""
}

// Display is the set of denormalized fields copied onto a confirmed
// event.  Prices are deliberately absent.
type Display struct {
	Name        string
	Description string
	Schedule    Schedule
	Contact     Contact
}

// Pricing exposes the live price fields of an extension record.  Only
// the fields a category actually has are set.
type Pricing struct {
	PriceCents       *int64 `json:"price_cents,omitempty"`
	DepositCents     *int64 `json:"deposit_cents,omitempty"`
	TicketPriceCents *int64 `json:"ticket_price_cents,omitempty"`
	GuaranteeCents   *int64 `json:"guarantee_cents,omitempty"`
	FeeCents         *int64 `json:"fee_cents,omitempty"`
}

// Extension is the discriminated union over the four extension records.
// Each variant maps its own columns onto the display fields of a
// confirmed event.
type Extension interface {
	Category() Category
	RequestID() uint64
	Display() Display
	Pricing() Pricing
}

// RentalDetail mirrors the rental_requests table.
type RentalDetail struct {
	ID           uint64   `json:"request_id"`
	EventName    string   `json:"event_name"`
	Description  string   `json:"description"`
	Schedule     Schedule `json:"schedule"`
	Contact      Contact  `json:"contact"`
	PriceCents   int64    `json:"price_cents"`
	DepositCents int64    `json:"deposit_cents"`
}

func (d *RentalDetail) Category() Category { return CategoryRental }
func (d *RentalDetail) RequestID() uint64  { return d.ID }

func (d *RentalDetail) Display() Display {
	return Display{Name: d.EventName, Description: d.Description, Schedule: d.Schedule, Contact: d.Contact}
}

func (d *RentalDetail) Pricing() Pricing {
	return Pricing{PriceCents: ptr(d.PriceCents), DepositCents: ptr(d.DepositCents)}
}

// BandDetail mirrors the band_requests table.  Lineup is the canonical,
// ordered list of participating bands; the lineup entries of the
// confirmed event are a projection of it.
type BandDetail struct {
	ID               uint64       `json:"request_id"`
	BandID           *uint64      `json:"band_id,omitempty"`
	BandName         string       `json:"band_name"`
	EventName        string       `json:"event_name"`
	Description      string       `json:"description"`
	Schedule         Schedule     `json:"schedule"`
	Contact          Contact      `json:"contact"`
	TicketPriceCents int64        `json:"ticket_price_cents"`
	GuaranteeCents   int64        `json:"guarantee_cents"`
	Lineup           []LineupItem `json:"lineup"`
	Status           Status       `json:"status"`
}

func (d *BandDetail) Category() Category { return CategoryBand }
func (d *BandDetail) RequestID() uint64  { return d.ID }

// Display falls back to the band name when the event itself is unnamed.
func (d *BandDetail) Display() Display {
	name := d.EventName
	if strings.TrimSpace(name) == "" {
		name = d.BandName
	}
	return Display{Name: name, Description: d.Description, Schedule: d.Schedule, Contact: d.Contact}
}

func (d *BandDetail) Pricing() Pricing {
	return Pricing{TicketPriceCents: ptr(d.TicketPriceCents), GuaranteeCents: ptr(d.GuaranteeCents)}
}

// PrimaryBand returns the lineup item describing the requesting band.
// It is used when a lineup carries no principal entry.
func (d *BandDetail) PrimaryBand() LineupItem {
	name := strings.TrimSpace(d.BandName)
	if name == "" {
		name = strings.TrimSpace(d.EventName)
	}
	return LineupItem{BandID: d.BandID, Name: name, IsPrincipal: true}
}

// ServiceDetail mirrors the service_requests table.
type ServiceDetail struct {
	ID          uint64   `json:"request_id"`
	ServiceName string   `json:"service_name"`
	Description string   `json:"description"`
	Schedule    Schedule `json:"schedule"`
	Contact     Contact  `json:"contact"`
	PriceCents  int64    `json:"price_cents"`
	Status      Status   `json:"status"`
}

func (d *ServiceDetail) Category() Category { return CategoryService }
func (d *ServiceDetail) RequestID() uint64  { return d.ID }

func (d *ServiceDetail) Display() Display {
	return Display{Name: d.ServiceName, Description: d.Description, Schedule: d.Schedule, Contact: d.Contact}
}

func (d *ServiceDetail) Pricing() Pricing {
	return Pricing{PriceCents: ptr(d.PriceCents)}
}

// WorkshopDetail mirrors the workshop_requests table.  Workshops keep
// their status on this row only.
type WorkshopDetail struct {
	ID           uint64   `json:"request_id"`
	WorkshopName string   `json:"workshop_name"`
	Instructor   string   `json:"instructor"`
	Description  string   `json:"description"`
	Schedule     Schedule `json:"schedule"`
	Contact      Contact  `json:"contact"`
	Capacity     int      `json:"capacity"`
	FeeCents     int64    `json:"fee_cents"`
	Status       Status   `json:"status"`
}

func (d *WorkshopDetail) Category() Category { return CategoryWorkshop }
func (d *WorkshopDetail) RequestID() uint64  { return d.ID }

// Display appends the instructor to the description when one is known.
func (d *WorkshopDetail) Display() Display {
	desc := d.Description
	if in := strings.TrimSpace(d.Instructor); in != "" {
		if desc != "" {
			desc += "\n"
		}
		desc += "Instructor: " + in
	}
	return Display{Name: d.WorkshopName, Description: desc, Schedule: d.Schedule, Contact: d.Contact}
}

func (d *WorkshopDetail) Pricing() Pricing {
	return Pricing{FeeCents: ptr(d.FeeCents)}
}

func ptr[T any](v T) *T { return &v }
