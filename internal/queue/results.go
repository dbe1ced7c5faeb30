package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Match is a listing that passed analysis and was saved.
type Match struct {
	ItemID     string
	TrackingID string
	URL        string
	Title      string
	Company    string
	Score      float64
	Summary    string
	SavedAt    time.Time
}

// Organization is a company profile assembled by the organization pipeline.
type Organization struct {
	ID          string
	Name        string
	Website     string
	Description string
	CareersURL  string
	Score       float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrganizationLookupKey normalizes a company name for deduplication.
func OrganizationLookupKey(name string) string {
	return strings.Join(strings.Fields(cases.Fold().String(name)), " ")
}

// SaveMatch records a match. Saving the same item twice replaces the row,
// which keeps the Save stage idempotent under retries.
func (s *Store) SaveMatch(ctx context.Context, m *Match) error {
	if m == nil || strings.TrimSpace(m.ItemID) == "" {
		return fmt.Errorf("%w: match item id required", ErrInvalidItem)
	}
	if m.SavedAt.IsZero() {
		m.SavedAt = s.timestamp()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO matches (item_id, tracking_id, url, title, company, score, summary, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(item_id) DO UPDATE SET
			title = excluded.title, company = excluded.company,
			score = excluded.score, summary = excluded.summary`,
		m.ItemID,
		m.TrackingID,
		m.URL,
		nullableString(m.Title),
		nullableString(m.Company),
		m.Score,
		nullableString(m.Summary),
		formatTime(m.SavedAt),
	)
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	return nil
}

// ListMatches returns saved matches, best score first.
func (s *Store) ListMatches(ctx context.Context, limit int) ([]*Match, error) {
	ctx = ensureContext(ctx)
	query := `SELECT item_id, tracking_id, url, title, company, score, summary, saved_at
		FROM matches ORDER BY score DESC, saved_at ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []*Match
	for rows.Next() {
		var (
			m                       Match
			title, company, summary sql.NullString
			savedRaw                string
		)
		if err := rows.Scan(&m.ItemID, &m.TrackingID, &m.URL, &title, &company, &m.Score, &summary, &savedRaw); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Title = title.String
		m.Company = company.String
		m.Summary = summary.String
		m.SavedAt = parseTimeString(savedRaw)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// UpsertOrganization inserts or refreshes an organization keyed by its
// normalized name and returns the stored ID.
func (s *Store) UpsertOrganization(ctx context.Context, org *Organization) (string, error) {
	if org == nil || strings.TrimSpace(org.Name) == "" {
		return "", fmt.Errorf("%w: organization name required", ErrInvalidItem)
	}
	key := OrganizationLookupKey(org.Name)
	existing, err := s.organizationWhere(ctx, "lookup_key = ?", key)
	if err != nil {
		return "", err
	}
	now := s.timestamp()
	if existing != nil {
		org.ID = existing.ID
		_, err = s.execWithRetry(ctx,
			`UPDATE organizations SET name = ?, website = ?, description = ?, careers_url = ?, score = ?, updated_at = ?
			 WHERE id = ?`,
			org.Name,
			nullableString(org.Website),
			nullableString(org.Description),
			nullableString(org.CareersURL),
			org.Score,
			formatTime(now),
			org.ID,
		)
		if err != nil {
			return "", fmt.Errorf("update organization: %w", err)
		}
		org.CreatedAt = existing.CreatedAt
		org.UpdatedAt = now
		return org.ID, nil
	}

	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO organizations (id, lookup_key, name, website, description, careers_url, score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID,
		key,
		org.Name,
		nullableString(org.Website),
		nullableString(org.Description),
		nullableString(org.CareersURL),
		org.Score,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return "", fmt.Errorf("insert organization: %w", err)
	}
	org.CreatedAt = now
	org.UpdatedAt = now
	return org.ID, nil
}

// GetOrganization fetches an organization by ID, returning nil, nil when absent.
func (s *Store) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	return s.organizationWhere(ctx, "id = ?", id)
}

// FindOrganization looks an organization up by name.
func (s *Store) FindOrganization(ctx context.Context, name string) (*Organization, error) {
	return s.organizationWhere(ctx, "lookup_key = ?", OrganizationLookupKey(name))
}

func (s *Store) organizationWhere(ctx context.Context, clause string, arg any) (*Organization, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, description, careers_url, score, created_at, updated_at
		 FROM organizations WHERE `+clause, arg)
	var (
		org                           Organization
		website, description, careers sql.NullString
		createdRaw, updatedRaw        string
	)
	err := row.Scan(&org.ID, &org.Name, &website, &description, &careers, &org.Score, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	org.Website = website.String
	org.Description = description.String
	org.CareersURL = careers.String
	org.CreatedAt = parseTimeString(createdRaw)
	org.UpdatedAt = parseTimeString(updatedRaw)
	return &org, nil
}
