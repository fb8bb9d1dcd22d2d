package app

import (
	"context"
	"time"
)

// Defaults for ad-hoc bookings that are not parametrized by a scheduling
// link. Same daily window the original advisor flow used.
const (
	defaultStartHour   = 9
	defaultEndHour     = 17
	defaultSlotMinutes = 30
	defaultTimezone    = "UTC"
)

// Per-call bounds on external calls. A timed-out account fetch degrades to
// "no intervals from this account"; a timed-out event creation surfaces to
// the client instead of being retried, since retries risk duplicate events.
const (
	busyFetchTimeout   = 10 * time.Second
	createEventTimeout = 15 * time.Second
)

// Store is the persistence collaborator. Implementations must make
// RecordLinkUse an atomic conditional increment, not read-then-write.
type Store interface {
	CreateLink(ctx context.Context, link *SchedulingLink) error
	GetLink(ctx context.Context, id string) (*SchedulingLink, error)
	RecordLinkUse(ctx context.Context, id string) error
	CreateBooking(ctx context.Context, booking *Booking) error
	ListBookingsByUser(ctx context.Context, userID string) ([]Booking, error)
	ListConnectedAccounts(ctx context.Context, userID string) ([]ConnectedAccount, error)
	UpdateAccessToken(ctx context.Context, userID, providerEmail, accessToken string) error
}

// Notifier is the best-effort enrichment/notification side channel. Notify
// must never propagate failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, booking Booking)
}

type App struct {
	Store    Store
	Calendar CalendarAPI
	Notifier Notifier

	// Now is the clock; tests pin it.
	Now func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
