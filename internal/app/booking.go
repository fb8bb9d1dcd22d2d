package app

import (
	"context"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type BookSlotInput struct {
	SlotID           string
	Email            string
	Answers          []string
	Metadata         map[string]string
	SchedulingLinkID string
	Date             string
}

type BookSlotResult struct {
	BookingID string `json:"bookingId"`
	EventID   string `json:"eventId"`
	Slot      Slot   `json:"slot"`
}

// BookSlot runs the booking transaction: validate input, re-derive live
// availability for the slot's day, create the external event, persist the
// booking, record the link use, then notify asynchronously. Steps before
// event creation have no side effects and are safe to retry.
func (a *App) BookSlot(ctx context.Context, principal *Principal, in BookSlotInput) (*BookSlotResult, error) {
	start, end, err := ParseSlotID(in.SlotID)
	if err != nil {
		return nil, err
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, E(KindInvalidInput, "invalid email format")
	}
	if in.Date != "" {
		if _, err := a.validateDate(in.Date); err != nil {
			return nil, err
		}
	}

	var (
		link      *SchedulingLink
		ownerID   string
		startHour = defaultStartHour
		endHour   = defaultEndHour
		duration  = defaultSlotMinutes
	)
	if in.SchedulingLinkID != "" {
		link, err = a.Store.GetLink(ctx, in.SchedulingLinkID)
		if err != nil {
			return nil, err
		}
		if err := a.linkUsable(link); err != nil {
			return nil, err
		}
		ownerID = link.CreatedBy
		startHour, endHour, duration = link.StartHour, link.EndHour, link.MeetingLength
	} else {
		if principal == nil {
			return nil, E(KindUnauthorized, "authentication required for ad-hoc booking")
		}
		ownerID = principal.UserID
	}

	// Availability is recomputed for the exact day containing the slot,
	// against current busy intervals. The earlier availability response is
	// stale by definition.
	day := start.UTC().Truncate(24 * time.Hour)
	if day.Before(a.now().UTC().Truncate(24 * time.Hour)) {
		return nil, E(KindInvalidInput, "cannot book slots in the past")
	}
	if link != nil {
		if err := a.withinAdvanceWindow(link, day); err != nil {
			return nil, err
		}
	}

	accounts, err := a.calendarAccounts(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	slots, err := a.availableSlotsForDay(ctx, accounts, day, startHour, endHour, duration)
	if err != nil {
		return nil, err
	}
	var requested *Slot
	for i := range slots {
		if slots[i].Start.Equal(start) && slots[i].End.Equal(end) {
			requested = &slots[i]
			break
		}
	}
	if requested == nil {
		return nil, E(KindSlotConflict, "requested slot is no longer available")
	}

	// First external side effect. Nothing local has been mutated yet, so a
	// failure here leaves the operation retryable by the client.
	eventCtx, cancel := context.WithTimeout(ctx, createEventTimeout)
	eventID, err := a.createEventWithRefresh(eventCtx, accounts[0], start, end, in.Email, in.Answers, defaultTimezone)
	cancel()
	if err != nil {
		return nil, err
	}

	booking := &Booking{
		ID:               uuid.NewString(),
		UserID:           ownerID,
		SchedulingLinkID: in.SchedulingLinkID,
		Email:            in.Email,
		Answers:          in.Answers,
		Metadata:         in.Metadata,
		SlotStart:        start,
		SlotEnd:          end,
		EventID:          eventID,
		CreatedAt:        a.now().UTC(),
	}
	if err := a.Store.CreateBooking(ctx, booking); err != nil {
		// The external event exists but the local record does not. No
		// automatic event rollback; operators need to reconcile.
		log.Printf("INCONSISTENCY: calendar event %s created but booking persistence failed: %v", eventID, err)
		return nil, Wrap(KindInternal, "booking could not be recorded", err)
	}

	if link != nil {
		if err := a.Store.RecordLinkUse(ctx, link.ID); err != nil {
			// The booking is already confirmed; a lost increment race is
			// logged, not surfaced.
			log.Printf("failed to record use of link %s for booking %s: %v", link.ID, booking.ID, err)
		}
	}

	if a.Notifier != nil {
		go a.Notifier.Notify(context.Background(), *booking)
	}

	return &BookSlotResult{BookingID: booking.ID, EventID: eventID, Slot: *requested}, nil
}
