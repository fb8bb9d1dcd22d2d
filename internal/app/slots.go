package app

import (
	"time"
)

// slotInstantLayout pins slot ids to millisecond-precision UTC instants so
// the id for a given (start, end) pair is stable across processes.
const slotInstantLayout = "2006-01-02T15:04:05.000Z"

const slotInstantLen = len("2006-01-02T15:04:05.000Z")

// SlotID derives the stable identifier for a slot: the two instants joined
// by a single '-'.
func SlotID(start, end time.Time) string {
	return start.UTC().Format(slotInstantLayout) + "-" + end.UTC().Format(slotInstantLayout)
}

// ParseSlotID is the inverse of SlotID. Both instants are fixed-width, so the
// separator position is unambiguous even though the instants themselves
// contain dashes.
func ParseSlotID(id string) (start, end time.Time, err error) {
	if len(id) != slotInstantLen*2+1 || id[slotInstantLen] != '-' {
		return time.Time{}, time.Time{}, E(KindInvalidInput, "slotId must be two ISO instants separated by '-'")
	}
	start, err = time.Parse(slotInstantLayout, id[:slotInstantLen])
	if err != nil {
		return time.Time{}, time.Time{}, Wrap(KindInvalidInput, "invalid slotId start instant", err)
	}
	end, err = time.Parse(slotInstantLayout, id[slotInstantLen+1:])
	if err != nil {
		return time.Time{}, time.Time{}, Wrap(KindInvalidInput, "invalid slotId end instant", err)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, E(KindInvalidInput, "slotId start must be before end")
	}
	return start, end, nil
}

// GenerateSlots walks [windowStart, windowEnd) in fixed duration-sized ticks
// and keeps every tick that fits inside the window and does not overlap any
// busy interval. Overlap is the standard half-open test, so a busy interval
// that merely touches a slot boundary does not exclude it. Busy intervals
// need not be sorted or disjoint. Pure function; slots come out in
// chronological order.
func GenerateSlots(windowStart, windowEnd time.Time, slotDuration time.Duration, busy []TimeInterval) []Slot {
	var slots []Slot
	if slotDuration <= 0 {
		return slots
	}
	for t := windowStart; ; t = t.Add(slotDuration) {
		end := t.Add(slotDuration)
		if end.After(windowEnd) {
			break
		}
		if !overlapsAny(t, end, busy) {
			slots = append(slots, Slot{ID: SlotID(t, end), Start: t, End: end})
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []TimeInterval) bool {
	for _, b := range busy {
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	return false
}
