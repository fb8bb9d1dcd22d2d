package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func slotIDAt(hour, min, durationMins int) string {
	start := dayAt(hour, min)
	return SlotID(start, start.Add(time.Duration(durationMins)*time.Minute))
}

func TestBookSlot_SuccessAgainstLink(t *testing.T) {
	t.Parallel()

	a, store, cal, notifier := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", nil)

	result, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           slotIDAt(9, 0, 30),
		Email:            "invitee@example.com",
		Answers:          []string{"intro call"},
		SchedulingLinkID: link.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "evt-1", result.EventID)
	require.True(t, result.Slot.Start.Equal(dayAt(9, 0)))
	require.True(t, result.Slot.End.Equal(dayAt(9, 30)))

	booking, ok := store.bookings[result.BookingID]
	require.True(t, ok, "booking must be persisted")
	require.Equal(t, "evt-1", booking.EventID)
	require.Equal(t, "advisor", booking.UserID)
	require.Equal(t, link.ID, booking.SchedulingLinkID)

	require.Equal(t, 1, store.links[link.ID].Uses)

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never attempted")
	}

	_, creates := cal.calls()
	require.Equal(t, 1, creates)
}

func TestBookSlot_InvalidSlotIDFailsBeforeAnyExternalCall(t *testing.T) {
	t.Parallel()

	a, store, cal, _ := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", nil)

	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           "garbage",
		Email:            "invitee@example.com",
		SchedulingLinkID: link.ID,
	})
	require.True(t, IsKind(err, KindInvalidInput), "got %v", err)

	lists, creates := cal.calls()
	require.Zero(t, lists, "no availability fetch before slot id validation")
	require.Zero(t, creates)
}

func TestBookSlot_InvalidEmail(t *testing.T) {
	t.Parallel()

	a, store, _, _ := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", nil)

	for _, email := range []string{"", "nope", "a@b", "two @words.com"} {
		_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
			SlotID:           slotIDAt(9, 0, 30),
			Email:            email,
			SchedulingLinkID: link.ID,
		})
		require.True(t, IsKind(err, KindInvalidInput), "email %q: got %v", email, err)
	}
}

func TestBookSlot_RebookingSameSlotConflicts(t *testing.T) {
	t.Parallel()

	a, store, _, _ := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", nil)

	in := BookSlotInput{
		SlotID:           slotIDAt(9, 0, 30),
		Email:            "first@example.com",
		SchedulingLinkID: link.ID,
	}
	_, err := a.BookSlot(context.Background(), nil, in)
	require.NoError(t, err)

	// The created event now shows up as a busy interval, so the re-derived
	// availability no longer contains the slot.
	in.Email = "second@example.com"
	_, err = a.BookSlot(context.Background(), nil, in)
	require.True(t, IsKind(err, KindSlotConflict), "got %v", err)
}

func TestBookSlot_SlotCoveredByExistingEventConflicts(t *testing.T) {
	t.Parallel()

	a, store, cal, _ := newTestApp()
	acct := seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", nil)

	cal.busy[acct.ProviderEmail] = []TimeInterval{{Start: dayAt(9, 15), End: dayAt(9, 45)}}

	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           slotIDAt(9, 0, 30),
		Email:            "invitee@example.com",
		SchedulingLinkID: link.ID,
	})
	require.True(t, IsKind(err, KindSlotConflict), "got %v", err)
}

func TestBookSlot_LinkExpired(t *testing.T) {
	t.Parallel()

	a, store, _, _ := newTestApp()
	seedAdvisor(store, "advisor")
	expired := testNow.Add(-time.Hour)
	link := seedLink(store, "advisor", func(l *SchedulingLink) { l.ExpiresAt = &expired })

	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           slotIDAt(9, 0, 30),
		Email:            "invitee@example.com",
		SchedulingLinkID: link.ID,
	})
	require.True(t, IsKind(err, KindLinkExpired), "got %v", err)
}

func TestBookSlot_LinkExhaustedAfterSingleUse(t *testing.T) {
	t.Parallel()

	a, store, _, _ := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", func(l *SchedulingLink) { l.MaxUses = 1 })

	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           slotIDAt(9, 0, 30),
		Email:            "first@example.com",
		SchedulingLinkID: link.ID,
	})
	require.NoError(t, err)

	_, err = a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           slotIDAt(10, 0, 30),
		Email:            "second@example.com",
		SchedulingLinkID: link.ID,
	})
	require.True(t, IsKind(err, KindLinkExhausted), "got %v", err)

	_, err = a.AvailableTimesForLink(context.Background(), link.ID, "2026-03-02")
	require.True(t, IsKind(err, KindLinkExhausted), "availability should also fail, got %v", err)
}

func TestBookSlot_EventCreationAuthFailure(t *testing.T) {
	t.Parallel()

	a, store, cal, _ := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", nil)
	cal.createErr = E(KindUnauthorized, "calendar credential rejected")

	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           slotIDAt(9, 0, 30),
		Email:            "invitee@example.com",
		SchedulingLinkID: link.ID,
	})
	require.True(t, IsKind(err, KindUnauthorized), "got %v", err)
	require.Empty(t, store.bookings, "no booking without an event")
	require.Zero(t, store.links[link.ID].Uses)
}

func TestBookSlot_EventCreationUpstreamFailureLeavesNoLocalState(t *testing.T) {
	t.Parallel()

	a, store, cal, _ := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", nil)
	cal.createErr = E(KindUpstream, "calendar provider failure")

	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           slotIDAt(9, 0, 30),
		Email:            "invitee@example.com",
		SchedulingLinkID: link.ID,
	})
	require.True(t, IsKind(err, KindUpstream), "got %v", err)
	require.Empty(t, store.bookings)
	require.Zero(t, store.links[link.ID].Uses)
}

func TestBookSlot_PersistenceFailureAfterEventIsInternal(t *testing.T) {
	t.Parallel()

	a, store, cal, notifier := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", nil)
	store.failCreateBooking = E(KindInternal, "datastore down")

	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           slotIDAt(9, 0, 30),
		Email:            "invitee@example.com",
		SchedulingLinkID: link.ID,
	})
	require.True(t, IsKind(err, KindInternal), "got %v", err)

	// The external event was created; that is exactly the inconsistency the
	// coordinator must report loudly instead of hiding.
	_, creates := cal.calls()
	require.Equal(t, 1, creates)
	require.Zero(t, store.links[link.ID].Uses)
	require.Empty(t, notifier.notified)
}

func TestBookSlot_AdHocRequiresPrincipal(t *testing.T) {
	t.Parallel()

	a, _, _, _ := newTestApp()

	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID: slotIDAt(9, 0, 30),
		Email:  "invitee@example.com",
	})
	require.True(t, IsKind(err, KindUnauthorized), "got %v", err)
}

func TestBookSlot_AdHocUsesPrincipalAccounts(t *testing.T) {
	t.Parallel()

	a, store, _, _ := newTestApp()
	seedAdvisor(store, "advisor")
	principal := &Principal{UserID: "advisor"}

	result, err := a.BookSlot(context.Background(), principal, BookSlotInput{
		SlotID: slotIDAt(9, 0, 30),
		Email:  "invitee@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "advisor", store.bookings[result.BookingID].UserID)
	require.Empty(t, store.bookings[result.BookingID].SchedulingLinkID)
}

func TestBookSlot_PastSlotRejected(t *testing.T) {
	t.Parallel()

	a, store, cal, _ := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", nil)

	yesterday := testNow.AddDate(0, 0, -1).Truncate(24 * time.Hour).Add(9 * time.Hour)
	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           SlotID(yesterday, yesterday.Add(30*time.Minute)),
		Email:            "invitee@example.com",
		SchedulingLinkID: link.ID,
	})
	require.True(t, IsKind(err, KindInvalidInput), "got %v", err)

	_, creates := cal.calls()
	require.Zero(t, creates)
}

func TestBookSlot_BeyondAdvanceWindowRejected(t *testing.T) {
	t.Parallel()

	a, store, _, _ := newTestApp()
	seedAdvisor(store, "advisor")
	link := seedLink(store, "advisor", func(l *SchedulingLink) { l.MaxDaysInAdvance = 7 })

	farOut := testNow.AddDate(0, 0, 30).Truncate(24 * time.Hour).Add(9 * time.Hour)
	_, err := a.BookSlot(context.Background(), nil, BookSlotInput{
		SlotID:           SlotID(farOut, farOut.Add(30*time.Minute)),
		Email:            "invitee@example.com",
		SchedulingLinkID: link.ID,
	})
	require.True(t, IsKind(err, KindInvalidInput), "got %v", err)
}
