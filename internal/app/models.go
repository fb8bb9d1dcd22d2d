package app

import "time"

// TimeInterval is a half-open range [Start, End). Used both for busy
// intervals reported by a calendar and for generated free slots.
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Slot is a bookable interval with an identifier derived from its bounds.
// Slots are recomputed on every availability query, never persisted.
type Slot struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type SchedulingLink struct {
	ID               string     `json:"id"`
	CreatedBy        string     `json:"created_by"`
	MeetingLength    int        `json:"meeting_length"`
	MaxDaysInAdvance int        `json:"max_days_in_advance"`
	StartHour        int        `json:"start_hour"`
	EndHour          int        `json:"end_hour"`
	Questions        []string   `json:"questions"`
	MaxUses          int        `json:"max_uses"` // 0 = unlimited
	Uses             int        `json:"uses"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at,omitempty"`
}

type Booking struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	SchedulingLinkID string            `json:"scheduling_link_id,omitempty"`
	Email            string            `json:"email"`
	Answers          []string          `json:"answers"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	SlotStart        time.Time         `json:"slot_start"`
	SlotEnd          time.Time         `json:"slot_end"`
	EventID          string            `json:"event_id"`
	CreatedAt        time.Time         `json:"created_at,omitempty"`
}

// ConnectedAccount is a calendar credential owned by an advisor. The booking
// coordinator borrows it read-only per call; a refreshed access token is
// written back through the Store.
type ConnectedAccount struct {
	UserID        string `json:"user_id"`
	Provider      string `json:"provider"`
	ProviderEmail string `json:"provider_email"`
	AccessToken   string `json:"-"`
	RefreshToken  string `json:"-"`
}

// Principal is the authenticated advisor resolved at the API boundary.
type Principal struct {
	UserID   string
	Email    string
	Accounts []ConnectedAccount
}
