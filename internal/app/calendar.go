package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarAPI is the gateway to one external calendar provider. It is
// stateless per call: the credential comes in with every request and the
// gateway never refreshes it on its own — retry policy belongs to the caller.
type CalendarAPI interface {
	ListBusyIntervals(ctx context.Context, account ConnectedAccount, from, to time.Time, timezone string) ([]TimeInterval, error)
	CreateEvent(ctx context.Context, account ConnectedAccount, start, end time.Time, inviteeEmail string, notes []string, timezone string) (eventID string, err error)
	RefreshAccessToken(ctx context.Context, account ConnectedAccount) (string, error)
}

// GoogleCalendar implements CalendarAPI against the Google Calendar v3 API.
type GoogleCalendar struct {
	Config *oauth2.Config
	// extra client options, used by tests to point at a fake endpoint
	Opts []option.ClientOption
}

func NewGoogleCalendar(clientID, clientSecret string, opts ...option.ClientOption) *GoogleCalendar {
	return &GoogleCalendar{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		},
		Opts: opts,
	}
}

func (g *GoogleCalendar) service(ctx context.Context, account ConnectedAccount) (*calendar.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: account.AccessToken})
	opts := append([]option.ClientOption{option.WithTokenSource(src)}, g.Opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, Wrap(KindUpstream, "failed to create calendar service", err)
	}
	return srv, nil
}

func (g *GoogleCalendar) ListBusyIntervals(ctx context.Context, account ConnectedAccount, from, to time.Time, timezone string) ([]TimeInterval, error) {
	srv, err := g.service(ctx, account)
	if err != nil {
		return nil, err
	}

	events, err := srv.Events.List("primary").
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		TimeZone(timezone).
		MaxResults(250).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyGoogleErr("list events", err)
	}

	var busy []TimeInterval
	for _, item := range events.Items {
		if item.Status == "cancelled" || item.Transparency == "transparent" {
			continue
		}
		start, okStart := parseEventTime(item.Start)
		end, okEnd := parseEventTime(item.End)
		if !okStart || !okEnd || !start.Before(end) {
			continue
		}
		busy = append(busy, TimeInterval{Start: start, End: end})
	}
	return busy, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, account ConnectedAccount, start, end time.Time, inviteeEmail string, notes []string, timezone string) (string, error) {
	srv, err := g.service(ctx, account)
	if err != nil {
		return "", err
	}

	event := &calendar.Event{
		Summary:     fmt.Sprintf("Meeting with %s", inviteeEmail),
		Description: strings.Join(notes, "\n"),
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: timezone},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: timezone},
		Attendees:   []*calendar.EventAttendee{{Email: inviteeEmail}},
	}

	created, err := srv.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return "", classifyGoogleErr("create event", err)
	}
	return created.Id, nil
}

// RefreshAccessToken exchanges the account's refresh token for a fresh access
// token. The caller persists it back.
func (g *GoogleCalendar) RefreshAccessToken(ctx context.Context, account ConnectedAccount) (string, error) {
	if account.RefreshToken == "" {
		return "", E(KindUnauthorized, "no refresh token on record")
	}
	tok, err := g.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken}).Token()
	if err != nil {
		return "", Wrap(KindUnauthorized, "token refresh rejected", err)
	}
	return tok.AccessToken, nil
}

func parseEventTime(edt *calendar.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func classifyGoogleErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403) {
		return Wrap(KindUnauthorized, "calendar credential rejected", err)
	}
	return Wrap(KindUpstream, "calendar provider failure: "+op, err)
}

// listBusyWithRefresh fetches busy intervals, retrying exactly once after a
// credential refresh when the provider rejects the access token. The
// refreshed token is persisted through the Store so later calls see it.
func (a *App) listBusyWithRefresh(ctx context.Context, account ConnectedAccount, from, to time.Time, timezone string) ([]TimeInterval, error) {
	busy, err := a.Calendar.ListBusyIntervals(ctx, account, from, to, timezone)
	if err == nil || !IsKind(err, KindUnauthorized) {
		return busy, err
	}
	refreshed, ok := a.refreshAccount(ctx, &account, err)
	if !ok {
		return nil, err
	}
	return a.Calendar.ListBusyIntervals(ctx, refreshed, from, to, timezone)
}

// createEventWithRefresh mirrors listBusyWithRefresh for event creation.
func (a *App) createEventWithRefresh(ctx context.Context, account ConnectedAccount, start, end time.Time, inviteeEmail string, notes []string, timezone string) (string, error) {
	id, err := a.Calendar.CreateEvent(ctx, account, start, end, inviteeEmail, notes, timezone)
	if err == nil || !IsKind(err, KindUnauthorized) {
		return id, err
	}
	refreshed, ok := a.refreshAccount(ctx, &account, err)
	if !ok {
		return "", err
	}
	return a.Calendar.CreateEvent(ctx, refreshed, start, end, inviteeEmail, notes, timezone)
}

func (a *App) refreshAccount(ctx context.Context, account *ConnectedAccount, cause error) (ConnectedAccount, bool) {
	if account.RefreshToken == "" {
		return *account, false
	}
	token, err := a.Calendar.RefreshAccessToken(ctx, *account)
	if err != nil {
		log.Printf("token refresh failed for %s: %v (original error: %v)", account.ProviderEmail, err, cause)
		return *account, false
	}
	if err := a.Store.UpdateAccessToken(ctx, account.UserID, account.ProviderEmail, token); err != nil {
		log.Printf("failed to persist refreshed token for %s: %v", account.ProviderEmail, err)
	}
	refreshed := *account
	refreshed.AccessToken = token
	return refreshed, true
}
