package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// CatalogEntry is implemented by Stay, Adventure and Event.
type CatalogEntry interface {
	Kind() Vertical
	Key() string
	SetKey(id string)
	Touch(now time.Time)
	Validate() error
	Item() CatalogItem
}

// CatalogItem is the booking-relevant view shared by all catalog kinds.
type CatalogItem struct {
	ID        string
	Vertical  Vertical
	Name      string
	Price     float64
	Capacity  int
	MaxGuests int
	Date      time.Time
	Active    bool
}

type Stay struct {
	bun.BaseModel `bun:"table:stays"`

	ID             string    `bun:"id,pk" json:"id"`
	Name           string    `bun:"name,notnull" json:"name"`
	Description    string    `bun:"description,notnull,default:''" json:"description"`
	PricePerNight  float64   `bun:"price_per_night,notnull" json:"price_per_night"`
	MaxGuests      int       `bun:"max_guests,notnull" json:"max_guests"`
	RoomsAvailable int       `bun:"rooms_available,notnull" json:"rooms_available"`
	Images         []string  `bun:"images,type:jsonb" json:"images"`
	Amenities      []string  `bun:"amenities,type:jsonb" json:"amenities"`
	Active         bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (s *Stay) Kind() Vertical { return VerticalStay }
func (s *Stay) Key() string { return s.ID }
func (s *Stay) SetKey(id string) { s.ID = id }
func (s *Stay) Touch(now time.Time) { touch(&s.CreatedAt, &s.UpdatedAt, now) }

func (s *Stay) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case s.PricePerNight <= 0:
		return fmt.Errorf("%w: price_per_night must be positive", ErrValidation)
	case s.MaxGuests <= 0:
		return fmt.Errorf("%w: max_guests must be positive", ErrValidation)
	case s.RoomsAvailable <= 0:
		return fmt.Errorf("%w: rooms_available must be positive", ErrValidation)
	}
	return nil
}

func (s *Stay) Item() CatalogItem {
	return CatalogItem{
		ID: s.ID, Vertical: VerticalStay, Name: s.Name, Price: s.PricePerNight,
		Capacity: s.RoomsAvailable, MaxGuests: s.MaxGuests, Active: s.Active,
	}
}

type Adventure struct {
	bun.BaseModel `bun:"table:adventures"`

	ID             string    `bun:"id,pk" json:"id"`
	Title          string    `bun:"title,notnull" json:"title"`
	Description    string    `bun:"description,notnull,default:''" json:"description"`
	PricePerPerson float64   `bun:"price_per_person,notnull" json:"price_per_person"`
	Capacity       int       `bun:"capacity,notnull" json:"capacity"`
	DurationHours  float64   `bun:"duration_hours,notnull,default:0" json:"duration_hours"`
	Images         []string  `bun:"images,type:jsonb" json:"images"`
	Active         bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (a *Adventure) Kind() Vertical { return VerticalAdventure }
func (a *Adventure) Key() string { return a.ID }
func (a *Adventure) SetKey(id string) { a.ID = id }
func (a *Adventure) Touch(now time.Time) { touch(&a.CreatedAt, &a.UpdatedAt, now) }

func (a *Adventure) Validate() error {
	switch {
	case strings.TrimSpace(a.Title) == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case a.PricePerPerson <= 0:
		return fmt.Errorf("%w: price_per_person must be positive", ErrValidation)
	case a.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}
	return nil
}

func (a *Adventure) Item() CatalogItem {
	return CatalogItem{
		ID: a.ID, Vertical: VerticalAdventure, Name: a.Title, Price: a.PricePerPerson,
		Capacity: a.Capacity, Active: a.Active,
	}
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string    `bun:"id,pk" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description,notnull,default:''" json:"description"`
	EventDate   time.Time `bun:"event_date,notnull" json:"event_date"`
	Venue       string    `bun:"venue,notnull,default:''" json:"venue"`
	TicketPrice float64   `bun:"ticket_price,notnull" json:"ticket_price"`
	Capacity    int       `bun:"capacity,notnull" json:"capacity"`
	Images      []string  `bun:"images,type:jsonb" json:"images"`
	Active      bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (e *Event) Kind() Vertical { return VerticalEvent }
func (e *Event) Key() string { return e.ID }
func (e *Event) SetKey(id string) { e.ID = id }
func (e *Event) Touch(now time.Time) { touch(&e.CreatedAt, &e.UpdatedAt, now) }

func (e *Event) Validate() error {
	switch {
	case strings.TrimSpace(e.Title) == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case e.EventDate.IsZero():
		return fmt.Errorf("%w: event_date is required", ErrValidation)
	case e.TicketPrice <= 0:
		return fmt.Errorf("%w: ticket_price must be positive", ErrValidation)
	case e.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}
	return nil
}

func (e *Event) Item() CatalogItem {
	return CatalogItem{
		ID: e.ID, Vertical: VerticalEvent, Name: e.Title, Price: e.TicketPrice,
		Capacity: e.Capacity, Date: e.EventDate, Active: e.Active,
	}
}

// NewCatalogEntry returns an empty entry of the given kind.
func NewCatalogEntry(kind Vertical) (CatalogEntry, error) {
	switch kind {
	case VerticalStay:
		return &Stay{Active: true}, nil
	case VerticalAdventure:
		return &Adventure{Active: true}, nil
	case VerticalEvent:
		return &Event{Active: true}, nil
	}
	return nil, fmt.Errorf("%w: unknown catalog kind %q", ErrValidation, kind)
}

func touch(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
