package app

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fixed clock for tests: 08:00 UTC on 2026-03-02.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	links    map[string]*SchedulingLink
	bookings map[string]*Booking
	accounts map[string][]ConnectedAccount

	failCreateBooking error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links:    map[string]*SchedulingLink{},
		bookings: map[string]*Booking{},
		accounts: map[string][]ConnectedAccount{},
	}
}

func (s *fakeStore) CreateLink(_ context.Context, link *SchedulingLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *link
	s.links[link.ID] = &cp
	return nil
}

func (s *fakeStore) GetLink(_ context.Context, id string) (*SchedulingLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return nil, E(KindNotFound, "scheduling link not found")
	}
	cp := *link
	return &cp, nil
}

// RecordLinkUse mirrors the conditional increment the SQL store does: the
// max-uses check and the increment happen under one lock.
func (s *fakeStore) RecordLinkUse(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return E(KindNotFound, "scheduling link not found")
	}
	if link.MaxUses > 0 && link.Uses >= link.MaxUses {
		return E(KindLinkExhausted, "scheduling link has reached maximum uses")
	}
	link.Uses++
	return nil
}

func (s *fakeStore) CreateBooking(_ context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateBooking != nil {
		return s.failCreateBooking
	}
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *fakeStore) ListBookingsByUser(_ context.Context, userID string) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeStore) ListConnectedAccounts(_ context.Context, userID string) ([]ConnectedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ConnectedAccount(nil), s.accounts[userID]...), nil
}

func (s *fakeStore) UpdateAccessToken(_ context.Context, userID, providerEmail, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts := s.accounts[userID]
	for i := range accounts {
		if accounts[i].ProviderEmail == providerEmail {
			accounts[i].AccessToken = accessToken
			return nil
		}
	}
	return E(KindNotFound, "connected account not found")
}

// fakeCalendar serves canned busy intervals per account and records calls.
// Created events land in the busy set, so a re-derived availability sees
// them, like the real provider would.
type fakeCalendar struct {
	mu   sync.Mutex
	busy map[string][]TimeInterval

	listErr   map[string]error
	createErr error

	listCalls   int
	createCalls int
	nextEventID int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		busy:    map[string][]TimeInterval{},
		listErr: map[string]error{},
	}
}

func (f *fakeCalendar) ListBusyIntervals(_ context.Context, account ConnectedAccount, _, _ time.Time, _ string) ([]TimeInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.listErr[account.ProviderEmail]; err != nil {
		return nil, err
	}
	return append([]TimeInterval(nil), f.busy[account.ProviderEmail]...), nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, account ConnectedAccount, start, end time.Time, _ string, _ []string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	f.busy[account.ProviderEmail] = append(f.busy[account.ProviderEmail], TimeInterval{Start: start, End: end})
	f.nextEventID++
	return fmt.Sprintf("evt-%d", f.nextEventID), nil
}

func (f *fakeCalendar) RefreshAccessToken(_ context.Context, _ ConnectedAccount) (string, error) {
	return "", E(KindUnauthorized, "refresh not supported in fake")
}

func (f *fakeCalendar) calls() (list, create int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.createCalls
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []Booking
	done     chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 16)}
}

func (n *fakeNotifier) Notify(_ context.Context, booking Booking) {
	n.mu.Lock()
	n.notified = append(n.notified, booking)
	n.mu.Unlock()
	n.done <- struct{}{}
}

func newTestApp() (*App, *fakeStore, *fakeCalendar, *fakeNotifier) {
	store := newFakeStore()
	cal := newFakeCalendar()
	notifier := newFakeNotifier()
	a := &App{
		Store:    store,
		Calendar: cal,
		Notifier: notifier,
		Now:      func() time.Time { return testNow },
	}
	return a, store, cal, notifier
}

// seedAdvisor registers a user with one connected google account.
func seedAdvisor(store *fakeStore, userID string) ConnectedAccount {
	acct := ConnectedAccount{
		UserID:        userID,
		Provider:      "google",
		ProviderEmail: userID + "@example.com",
		AccessToken:   "token-" + userID,
	}
	store.accounts[userID] = []ConnectedAccount{acct}
	return acct
}

// seedLink stores a ready-to-use link for the advisor.
func seedLink(store *fakeStore, userID string, mutate func(*SchedulingLink)) *SchedulingLink {
	link := &SchedulingLink{
		ID:               "link-1",
		CreatedBy:        userID,
		MeetingLength:    30,
		MaxDaysInAdvance: 30,
		StartHour:        9,
		EndHour:          17,
		Questions:        []string{"What would you like to discuss?"},
	}
	if mutate != nil {
		mutate(link)
	}
	store.links[link.ID] = link
	return link
}

func dayAt(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}
