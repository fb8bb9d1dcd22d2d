package app

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreateLinkInput carries the advisor-supplied link configuration.
type CreateLinkInput struct {
	MeetingLength    int
	MaxDaysInAdvance int
	StartHour        int
	EndHour          int
	Questions        []string
	MaxUses          int
	ExpiresAt        *time.Time
}

// CreateLink validates and persists a scheduling link. Raw creation accepts
// meeting lengths up to 480 minutes; the public availability/booking surface
// applies the tighter 15-120 bound.
func (a *App) CreateLink(ctx context.Context, userID string, in CreateLinkInput) (*SchedulingLink, error) {
	if in.MeetingLength < 15 || in.MeetingLength > 480 || in.MeetingLength%5 != 0 {
		return nil, E(KindInvalidInput, "meeting length must be between 15 and 480 minutes and a multiple of 5")
	}
	if in.MaxDaysInAdvance < 1 || in.MaxDaysInAdvance > 90 {
		return nil, E(KindInvalidInput, "max days in advance must be between 1 and 90")
	}
	if in.StartHour < 0 || in.EndHour <= in.StartHour || in.EndHour > 24 {
		return nil, E(KindInvalidInput, "invalid time range")
	}
	if in.MaxUses < 0 {
		return nil, E(KindInvalidInput, "max uses must not be negative")
	}

	link := &SchedulingLink{
		ID:               uuid.NewString(),
		CreatedBy:        userID,
		MeetingLength:    in.MeetingLength,
		MaxDaysInAdvance: in.MaxDaysInAdvance,
		StartHour:        in.StartHour,
		EndHour:          in.EndHour,
		Questions:        in.Questions,
		MaxUses:          in.MaxUses,
		Uses:             0,
		ExpiresAt:        in.ExpiresAt,
		CreatedAt:        a.now().UTC(),
	}
	if err := a.Store.CreateLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// linkUsable evaluates expiry and exhaustion. It lives on the caller side of
// GetLink so link metadata stays inspectable after expiry.
func (a *App) linkUsable(link *SchedulingLink) error {
	if link.ExpiresAt != nil && link.ExpiresAt.Before(a.now()) {
		return E(KindLinkExpired, "scheduling link has expired")
	}
	if link.MaxUses > 0 && link.Uses >= link.MaxUses {
		return E(KindLinkExhausted, "scheduling link has reached maximum uses")
	}
	return nil
}
