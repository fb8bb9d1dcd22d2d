package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

const hubspotAPIBaseURL = "https://api.hubapi.com"

// HubSpotClient is a minimal CRM client covering what the booking
// notification needs: find or create a contact and attach a note.
type HubSpotClient struct {
	httpClient  *http.Client
	accessToken string
	baseURL     string
}

func NewHubSpotClient(accessToken string) *HubSpotClient {
	return &HubSpotClient{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		accessToken: accessToken,
		baseURL:     hubspotAPIBaseURL,
	}
}

type hubspotObject struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type hubspotSearchResponse struct {
	Total   int             `json:"total"`
	Results []hubspotObject `json:"results"`
}

func (h *HubSpotClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+h.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return Wrap(KindUpstream, "hubspot request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return E(KindUnauthorized, "hubspot credential rejected")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Ef(KindUpstream, "hubspot returned %d: %s", resp.StatusCode, raw)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// FindContactByEmail returns the contact id, or "" when no contact matches.
// Absence is not an error.
func (h *HubSpotClient) FindContactByEmail(ctx context.Context, email string) (string, error) {
	payload := map[string]any{
		"filterGroups": []any{
			map[string]any{
				"filters": []any{
					map[string]string{"propertyName": "email", "operator": "EQ", "value": email},
				},
			},
		},
		"limit": 1,
	}
	var resp hubspotSearchResponse
	if err := h.doJSON(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].ID, nil
}

func (h *HubSpotClient) CreateContact(ctx context.Context, email, firstName string) (string, error) {
	payload := map[string]any{
		"properties": map[string]string{
			"email":     email,
			"firstname": firstName,
			"lastname":  "",
		},
	}
	var contact hubspotObject
	if err := h.doJSON(ctx, http.MethodPost, "/crm/v3/objects/contacts", payload, &contact); err != nil {
		return "", err
	}
	return contact.ID, nil
}

// CreateNote attaches a note to a contact.
func (h *HubSpotClient) CreateNote(ctx context.Context, contactID, body string) error {
	payload := map[string]any{
		"properties": map[string]string{
			"hs_note_body": body,
			"hs_timestamp": time.Now().UTC().Format(time.RFC3339),
		},
		"associations": []any{
			map[string]any{
				"to": map[string]string{"id": contactID},
				"types": []any{
					map[string]any{
						"associationCategory": "HUBSPOT_DEFINED",
						"associationTypeId":   1,
					},
				},
			},
		},
	}
	return h.doJSON(ctx, http.MethodPost, "/crm/v3/objects/notes", payload, nil)
}

// SetBaseURL points the client at a different endpoint; used by tests.
func (h *HubSpotClient) SetBaseURL(url string) { h.baseURL = url }

func contactFirstName(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
