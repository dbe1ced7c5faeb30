package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source is an external job board the scheduler rotates through.
type Source struct {
	ID                  string
	Name                string
	URL                 string
	Type                string
	Enabled             bool
	LastScrapedAt       *time.Time
	TotalJobsFound      int
	TotalJobsMatched    int
	ConsecutiveFailures int
	LastError           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SourcePoll is the outcome of polling one source.
type SourcePoll struct {
	At        time.Time
	JobsFound int
	Matched   int
	Err       error
	// DisableAfter disables the source once ConsecutiveFailures reaches it.
	// Zero never disables.
	DisableAfter int
}

const sourceColumns = "id, name, url, source_type, enabled, last_scraped_at, total_jobs_found, total_jobs_matched, consecutive_failures, last_error, created_at, updated_at"

func scanSource(scanner rowScanner) (*Source, error) {
	var (
		src         Source
		enabled     int
		lastScraped sql.NullString
		lastError   sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&src.ID,
		&src.Name,
		&src.URL,
		&src.Type,
		&enabled,
		&lastScraped,
		&src.TotalJobsFound,
		&src.TotalJobsMatched,
		&src.ConsecutiveFailures,
		&lastError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	src.Enabled = enabled != 0
	src.LastScrapedAt = parseNullTime(lastScraped)
	src.LastError = lastError.String
	src.CreatedAt = parseTimeString(createdRaw)
	src.UpdatedAt = parseTimeString(updatedRaw)
	return &src, nil
}

// CreateSource registers a new source.
func (s *Store) CreateSource(ctx context.Context, src *Source) error {
	if src == nil || strings.TrimSpace(src.URL) == "" || strings.TrimSpace(src.Type) == "" {
		return fmt.Errorf("%w: source url and type required", ErrInvalidItem)
	}
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if strings.TrimSpace(src.Name) == "" {
		src.Name = src.URL
	}
	now := s.timestamp()
	src.CreatedAt = now
	src.UpdatedAt = now
	_, err := s.execWithRetry(ctx,
		`INSERT INTO sources (`+sourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID,
		src.Name,
		src.URL,
		src.Type,
		boolToInt(src.Enabled),
		nullableTime(src.LastScrapedAt),
		src.TotalJobsFound,
		src.TotalJobsMatched,
		src.ConsecutiveFailures,
		nullableString(src.LastError),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

// GetSource fetches a source by ID, returning nil, nil when absent.
func (s *Store) GetSource(ctx context.Context, id string) (*Source, error) {
	return s.getSourceWhere(ctx, "id = ?", id)
}

// FindSourceByURL fetches a source by URL, returning nil, nil when absent.
func (s *Store) FindSourceByURL(ctx context.Context, url string) (*Source, error) {
	return s.getSourceWhere(ctx, "url = ?", strings.TrimSpace(url))
}

func (s *Store) getSourceWhere(ctx context.Context, clause string, arg any) (*Source, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE `+clause, arg)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// ListSources returns all sources ordered by name.
func (s *Store) ListSources(ctx context.Context) ([]*Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY name, created_at`)
}

// EnabledSourcesByRotation returns enabled sources least-recently scraped
// first; never-scraped sources lead. A non-positive limit returns all.
func (s *Store) EnabledSourcesByRotation(ctx context.Context, limit int) ([]*Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE enabled = 1
		ORDER BY last_scraped_at IS NOT NULL, last_scraped_at ASC, created_at ASC, rowid ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.querySources(ctx, query, args...)
}

func (s *Store) querySources(ctx context.Context, query string, args ...any) ([]*Source, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()
	var out []*Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// RecordSourcePoll updates health bookkeeping after a poll: scrape time,
// cumulative counters, and the consecutive failure streak (reset on success).
func (s *Store) RecordSourcePoll(ctx context.Context, id string, poll SourcePoll) (*Source, error) {
	at := poll.At
	if at.IsZero() {
		at = s.timestamp()
	}
	var (
		query string
		args  []any
		now   = formatTime(s.timestamp())
	)
	if poll.Err != nil {
		query = `UPDATE sources SET last_scraped_at = ?, consecutive_failures = consecutive_failures + 1,
			last_error = ?, updated_at = ?,
			enabled = CASE WHEN ? > 0 AND consecutive_failures + 1 >= ? THEN 0 ELSE enabled END
			WHERE id = ?`
		args = []any{formatTime(at), poll.Err.Error(), now, poll.DisableAfter, poll.DisableAfter, id}
	} else {
		query = `UPDATE sources SET last_scraped_at = ?, consecutive_failures = 0, last_error = NULL,
			total_jobs_found = total_jobs_found + ?, total_jobs_matched = total_jobs_matched + ?, updated_at = ?
			WHERE id = ?`
		args = []any{formatTime(at), poll.JobsFound, poll.Matched, now, id}
	}
	affected, err := s.execAffecting(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("record source poll: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("record source poll: source %s not found", id)
	}
	return s.GetSource(ctx, id)
}

// SetSourceEnabled toggles a source in or out of rotation.
func (s *Store) SetSourceEnabled(ctx context.Context, id string, enabled bool) error {
	affected, err := s.execAffecting(ctx,
		`UPDATE sources SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update source: source %s not found", id)
	}
	return nil
}
