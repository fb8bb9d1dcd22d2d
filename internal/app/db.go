package app

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on top of a pgx connection pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

func (s *PGStore) CreateLink(ctx context.Context, link *SchedulingLink) error {
	q := `INSERT INTO scheduling_links
	      (id, created_by, meeting_length, max_days_in_advance, start_hour, end_hour, questions, max_uses, uses, expires_at, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := s.Pool.Exec(ctx, q,
		link.ID, link.CreatedBy, link.MeetingLength, link.MaxDaysInAdvance,
		link.StartHour, link.EndHour, link.Questions, link.MaxUses, link.Uses,
		link.ExpiresAt, link.CreatedAt)
	if err != nil {
		return Wrap(KindInternal, "failed to create scheduling link", err)
	}
	return nil
}

func (s *PGStore) GetLink(ctx context.Context, id string) (*SchedulingLink, error) {
	q := `SELECT id, created_by, meeting_length, max_days_in_advance, start_hour, end_hour, questions, max_uses, uses, expires_at, created_at
	      FROM scheduling_links WHERE id=$1`
	var link SchedulingLink
	err := s.Pool.QueryRow(ctx, q, id).Scan(
		&link.ID, &link.CreatedBy, &link.MeetingLength, &link.MaxDaysInAdvance,
		&link.StartHour, &link.EndHour, &link.Questions, &link.MaxUses, &link.Uses,
		&link.ExpiresAt, &link.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, E(KindNotFound, "scheduling link not found")
	}
	if err != nil {
		return nil, Wrap(KindInternal, "failed to load scheduling link", err)
	}
	return &link, nil
}

// RecordLinkUse increments uses with the max-uses condition checked at write
// time, so two concurrent bookings cannot both take the last remaining use.
func (s *PGStore) RecordLinkUse(ctx context.Context, id string) error {
	q := `UPDATE scheduling_links
	      SET uses = uses + 1
	      WHERE id=$1 AND (max_uses = 0 OR uses < max_uses)
	      RETURNING uses`
	var uses int
	err := s.Pool.QueryRow(ctx, q, id).Scan(&uses)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the link is gone or the condition failed; look once more to
		// report which.
		var exists bool
		if lookupErr := s.Pool.QueryRow(ctx, `SELECT true FROM scheduling_links WHERE id=$1`, id).Scan(&exists); lookupErr != nil {
			return E(KindNotFound, "scheduling link not found")
		}
		return E(KindLinkExhausted, "scheduling link has reached maximum uses")
	}
	if err != nil {
		return Wrap(KindInternal, "failed to record link use", err)
	}
	return nil
}

func (s *PGStore) CreateBooking(ctx context.Context, b *Booking) error {
	q := `INSERT INTO bookings
	      (id, user_id, scheduling_link_id, email, answers, metadata, slot_start, slot_end, event_id, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	linkID := nullableString(b.SchedulingLinkID)
	_, err := s.Pool.Exec(ctx, q,
		b.ID, b.UserID, linkID, b.Email, b.Answers, b.Metadata,
		b.SlotStart, b.SlotEnd, b.EventID, b.CreatedAt)
	if err != nil {
		return Wrap(KindInternal, "failed to create booking", err)
	}
	return nil
}

func (s *PGStore) ListBookingsByUser(ctx context.Context, userID string) ([]Booking, error) {
	q := `SELECT id, user_id, scheduling_link_id, email, answers, metadata, slot_start, slot_end, event_id, created_at
	      FROM bookings WHERE user_id=$1 ORDER BY slot_start`
	rows, err := s.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, Wrap(KindInternal, "failed to list bookings", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		var linkID *string
		if err := rows.Scan(&b.ID, &b.UserID, &linkID, &b.Email, &b.Answers, &b.Metadata,
			&b.SlotStart, &b.SlotEnd, &b.EventID, &b.CreatedAt); err != nil {
			return nil, Wrap(KindInternal, "failed to scan booking", err)
		}
		if linkID != nil {
			b.SchedulingLinkID = *linkID
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PGStore) ListConnectedAccounts(ctx context.Context, userID string) ([]ConnectedAccount, error) {
	q := `SELECT user_id, provider, provider_email, access_token, COALESCE(refresh_token, '')
	      FROM connected_accounts WHERE user_id=$1 ORDER BY provider_email`
	rows, err := s.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, Wrap(KindInternal, "failed to list connected accounts", err)
	}
	defer rows.Close()

	var out []ConnectedAccount
	for rows.Next() {
		var acct ConnectedAccount
		if err := rows.Scan(&acct.UserID, &acct.Provider, &acct.ProviderEmail, &acct.AccessToken, &acct.RefreshToken); err != nil {
			return nil, Wrap(KindInternal, "failed to scan connected account", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateAccessToken(ctx context.Context, userID, providerEmail, accessToken string) error {
	q := `UPDATE connected_accounts SET access_token=$1, updated_at=now()
	      WHERE user_id=$2 AND provider_email=$3`
	tag, err := s.Pool.Exec(ctx, q, accessToken, userID, providerEmail)
	if err != nil {
		return Wrap(KindInternal, "failed to update access token", err)
	}
	if tag.RowsAffected() == 0 {
		return E(KindNotFound, "connected account not found")
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
