package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// BookingNotifier is the best-effort side channel after a confirmed booking:
// advisor email plus a CRM contact and note. Every sub-step catches its own
// failure so one broken integration never blocks the others, and nothing
// here can affect the response already committed to the client.
type BookingNotifier struct {
	SendGridKey  string
	FromEmail    string
	AdvisorEmail string
	HubSpot      *HubSpotClient

	// fetches a snippet for an invitee-supplied profile URL; swapped in tests
	profileFetcher func(ctx context.Context, url string) string
}

func NewBookingNotifier(sendGridKey, fromEmail, advisorEmail string, hubspot *HubSpotClient) *BookingNotifier {
	return &BookingNotifier{
		SendGridKey:  sendGridKey,
		FromEmail:    fromEmail,
		AdvisorEmail: advisorEmail,
		HubSpot:      hubspot,
	}
}

func (n *BookingNotifier) Notify(ctx context.Context, booking Booking) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := n.sendAdvisorEmail(booking); err != nil {
		log.Printf("booking %s: advisor email failed: %v", booking.ID, err)
	}
	if err := n.updateCRM(ctx, booking); err != nil {
		log.Printf("booking %s: CRM update failed: %v", booking.ID, err)
	}
}

func (n *BookingNotifier) sendAdvisorEmail(booking Booking) error {
	if n.SendGridKey == "" || n.AdvisorEmail == "" {
		return fmt.Errorf("sendgrid not configured")
	}

	from := mail.NewEmail("Scheduler", n.FromEmail)
	to := mail.NewEmail("", n.AdvisorEmail)
	body := fmt.Sprintf("New booking from %s for %s", booking.Email, booking.SlotStart.UTC().Format(time.RFC1123))
	message := mail.NewSingleEmail(from, "New Booking Notification", to, body, "")

	client := sendgrid.NewSendClient(n.SendGridKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (n *BookingNotifier) updateCRM(ctx context.Context, booking Booking) error {
	if n.HubSpot == nil {
		return nil
	}

	contactID, err := n.HubSpot.FindContactByEmail(ctx, booking.Email)
	if err != nil {
		return err
	}
	if contactID == "" {
		contactID, err = n.HubSpot.CreateContact(ctx, booking.Email, contactFirstName(booking.Email))
		if err != nil {
			return err
		}
	}

	note := fmt.Sprintf("Booking scheduled for %s", booking.SlotStart.UTC().Format(time.RFC1123))
	if snippet := n.profileSnippet(ctx, booking.Metadata); snippet != "" {
		note += "\nInvitee profile: " + snippet
	}
	return n.HubSpot.CreateNote(ctx, contactID, note)
}

// profileSnippet fetches invitee-supplied profile content when a URL was
// given. Failures degrade to a placeholder; this never errors out.
func (n *BookingNotifier) profileSnippet(ctx context.Context, metadata map[string]string) string {
	url := metadata["url"]
	if url == "" {
		url = metadata["linkedin"]
	}
	if url == "" {
		return ""
	}
	fetch := n.profileFetcher
	if fetch == nil {
		fetch = fetchProfileSnippet
	}
	return fetch(ctx, url)
}

func fetchProfileSnippet(ctx context.Context, url string) string {
	const placeholder = "profile content unavailable"

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return placeholder
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return placeholder
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return placeholder
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return placeholder
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(raw) == 0 {
		return placeholder
	}
	return strings.TrimSpace(string(raw))
}
