package app

import (
	"context"
	"log"
	"time"
)

const dateLayout = "2006-01-02"

// validateDate checks a YYYY-MM-DD date string and rejects past dates. It
// returns the UTC midnight of the requested day.
func (a *App) validateDate(date string) (time.Time, error) {
	if len(date) != len(dateLayout) {
		return time.Time{}, E(KindInvalidInput, "date must be in YYYY-MM-DD format")
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, Wrap(KindInvalidInput, "date must be in YYYY-MM-DD format", err)
	}
	today := a.now().UTC().Truncate(24 * time.Hour)
	if day.Before(today) {
		return time.Time{}, E(KindInvalidInput, "cannot book slots in the past")
	}
	return day, nil
}

func validateDailyWindow(startHour, endHour, slotMinutes int) error {
	if startHour < 0 || startHour > 23 {
		return E(KindInvalidInput, "start hour must be between 0 and 23")
	}
	if endHour <= startHour || endHour > 24 {
		return E(KindInvalidInput, "end hour must be between start hour and 24")
	}
	// Tighter public-surface bound; raw link creation allows up to 480.
	if slotMinutes < 15 || slotMinutes > 120 || slotMinutes%5 != 0 {
		return E(KindInvalidInput, "slot duration must be between 15 and 120 minutes and a multiple of 5")
	}
	return nil
}

// collectBusyIntervals queries every connected account independently and
// returns the union of their busy intervals. One account failing or timing
// out contributes nothing rather than aborting the computation: availability
// fails open, never closed into "everything busy".
func (a *App) collectBusyIntervals(ctx context.Context, accounts []ConnectedAccount, from, to time.Time, timezone string) []TimeInterval {
	var busy []TimeInterval
	for _, account := range accounts {
		fetchCtx, cancel := context.WithTimeout(ctx, busyFetchTimeout)
		intervals, err := a.listBusyWithRefresh(fetchCtx, account, from, to, timezone)
		cancel()
		if err != nil {
			log.Printf("busy fetch failed for account %s, treating as free: %v", account.ProviderEmail, err)
			continue
		}
		busy = append(busy, intervals...)
	}
	return busy
}

// availableSlotsForDay recomputes the free slots for one calendar day. Busy
// intervals are fetched for the whole day so events outside the booking
// window still exclude slots they straddle.
func (a *App) availableSlotsForDay(ctx context.Context, accounts []ConnectedAccount, day time.Time, startHour, endHour, slotMinutes int) ([]Slot, error) {
	if err := validateDailyWindow(startHour, endHour, slotMinutes); err != nil {
		return nil, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := dayStart.Add(time.Duration(startHour) * time.Hour)
	windowEnd := dayStart.Add(time.Duration(endHour) * time.Hour)

	busy := a.collectBusyIntervals(ctx, accounts, dayStart, dayStart.Add(24*time.Hour), defaultTimezone)

	return GenerateSlots(windowStart, windowEnd, time.Duration(slotMinutes)*time.Minute, busy), nil
}

// AvailableTimesForLink is the public availability query: validate the link,
// then the date, then compute free slots against the owner's calendars.
func (a *App) AvailableTimesForLink(ctx context.Context, linkID, date string) ([]Slot, error) {
	link, err := a.Store.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := a.linkUsable(link); err != nil {
		return nil, err
	}

	if date == "" {
		date = a.now().UTC().Format(dateLayout)
	}
	day, err := a.validateDate(date)
	if err != nil {
		return nil, err
	}
	if err := a.withinAdvanceWindow(link, day); err != nil {
		return nil, err
	}

	accounts, err := a.calendarAccounts(ctx, link.CreatedBy)
	if err != nil {
		return nil, err
	}

	return a.availableSlotsForDay(ctx, accounts, day, link.StartHour, link.EndHour, link.MeetingLength)
}

func (a *App) withinAdvanceWindow(link *SchedulingLink, day time.Time) error {
	today := a.now().UTC().Truncate(24 * time.Hour)
	latest := today.AddDate(0, 0, link.MaxDaysInAdvance)
	if day.After(latest) {
		return Ef(KindInvalidInput, "date is more than %d days in advance", link.MaxDaysInAdvance)
	}
	return nil
}

// calendarAccounts resolves the calendar-capable connected accounts for a
// user. No accounts means there is no calendar to book against.
func (a *App) calendarAccounts(ctx context.Context, userID string) ([]ConnectedAccount, error) {
	all, err := a.Store.ListConnectedAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	var accounts []ConnectedAccount
	for _, acct := range all {
		if acct.Provider == "google" {
			accounts = append(accounts, acct)
		}
	}
	if len(accounts) == 0 {
		return nil, E(KindUnauthorized, "no connected calendar account")
	}
	return accounts, nil
}
