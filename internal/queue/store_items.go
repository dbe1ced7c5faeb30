package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Create inserts a new pending item. IDs are assigned when empty; lineage
// fields are persisted exactly as supplied.
func (s *Store) Create(ctx context.Context, item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrInvalidItem)
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.Status != StatusPending {
		return fmt.Errorf("%w: new items must be pending, got %s", ErrInvalidItem, item.Status)
	}
	return s.insert(ctx, item)
}

// CreateClaimed inserts a new item already claimed by the caller, so no
// other worker can pick it up before the caller processes it.
func (s *Store) CreateClaimed(ctx context.Context, item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrInvalidItem)
	}
	if item.Status != "" && item.Status != StatusPending {
		return fmt.Errorf("%w: new items must be pending, got %s", ErrInvalidItem, item.Status)
	}
	now := s.timestamp()
	item.Status = StatusProcessing
	item.ProcessedAt = &now
	item.LastHeartbeat = &now
	return s.insert(ctx, item)
}

func (s *Store) insert(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Ancestry == nil {
		item.Ancestry = []Ancestor{}
	}
	if err := item.Validate(); err != nil {
		return err
	}

	ancestry, err := encodeAncestry(item.Ancestry)
	if err != nil {
		return err
	}
	state, err := encodeState(item.PipelineState)
	if err != nil {
		return err
	}
	now := s.timestamp()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err = s.execWithRetry(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		string(item.Type),
		string(item.SubStage),
		string(item.Status),
		item.URL,
		nullableString(item.OrganizationName),
		nullableString(item.OrganizationID),
		nullableString(item.SourceID),
		item.TrackingID,
		ancestry,
		item.SpawnDepth,
		item.MaxSpawnDepth,
		item.RetryCount,
		item.MaxRetries,
		state,
		nullableString(item.ResultMessage),
		nullableString(item.ErrorDetails),
		formatTime(now),
		formatTime(now),
		nullableTime(item.ProcessedAt),
		nullableTime(item.CompletedAt),
		nullableTime(item.LastHeartbeat),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// Get fetches an item by ID. It returns nil, nil when the item does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

// UpdateStatus persists item's mutable fields if and only if the stored
// status still equals from. Identity and lineage fields (type, url, tracking
// id, ancestry, depth) are never rewritten. Moving an item out of a terminal
// status returns ErrTerminal; a lost race returns ErrStatusConflict.
func (s *Store) UpdateStatus(ctx context.Context, item *Item, from Status) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrInvalidItem)
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, item.ID, from)
	}
	if _, ok := statusSet[item.Status]; !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidItem, item.Status)
	}
	if item.SubStage != "" && !item.Type.HasStage(item.SubStage) {
		return fmt.Errorf("%w: sub-stage %q not valid for %s", ErrInvalidItem, item.SubStage, item.Type)
	}

	state, err := encodeState(item.PipelineState)
	if err != nil {
		return err
	}
	now := s.timestamp()
	if item.Status.IsTerminal() && item.CompletedAt == nil {
		item.CompletedAt = &now
	}
	if item.Status != StatusProcessing {
		item.LastHeartbeat = nil
	}

	affected, err := s.execAffecting(ctx,
		`UPDATE items SET
			status = ?, sub_stage = ?, retry_count = ?, pipeline_state = ?,
			result_message = ?, error_details = ?, organization_id = ?,
			processed_at = ?, completed_at = ?, last_heartbeat = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(item.Status),
		string(item.SubStage),
		item.RetryCount,
		state,
		nullableString(item.ResultMessage),
		nullableString(item.ErrorDetails),
		nullableString(item.OrganizationID),
		nullableTime(item.ProcessedAt),
		nullableTime(item.CompletedAt),
		nullableTime(item.LastHeartbeat),
		formatTime(now),
		item.ID,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	if affected == 0 {
		current, getErr := s.Get(ctx, item.ID)
		if getErr == nil && current != nil && current.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, item.ID, current.Status)
		}
		return fmt.Errorf("%w: %s expected %s", ErrStatusConflict, item.ID, from)
	}
	item.UpdatedAt = now
	return nil
}

// Claim atomically moves a pending item to processing and returns the
// claimed copy. ErrStatusConflict means another worker got there first.
func (s *Store) Claim(ctx context.Context, id string) (*Item, error) {
	now := formatTime(s.timestamp())
	affected, err := s.execAffecting(ctx,
		`UPDATE items SET status = ?, processed_at = ?, last_heartbeat = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(StatusProcessing), now, now, now, id, string(StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("claim item %s: %w", id, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s is not pending", ErrStatusConflict, id)
	}
	return s.Get(ctx, id)
}

// ClaimNext claims the oldest pending item of the given types. It returns
// nil, nil when nothing is pending.
func (s *Store) ClaimNext(ctx context.Context, types ...ItemType) (*Item, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id FROM items WHERE status = ?`
	args := []any{string(StatusPending)}
	if len(types) > 0 {
		query += ` AND item_type IN (` + makePlaceholders(len(types)) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += ` ORDER BY created_at, rowid LIMIT 1`

	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		var id string
		err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select next pending: %w", err)
		}
		item, err := s.Claim(ctx, id)
		if errors.Is(err, ErrStatusConflict) {
			continue
		}
		return item, err
	}
	return nil, nil
}

// Order selects the sort order for Query.
type Order int

const (
	OrderCreated Order = iota
	OrderDepthAsc
	OrderDepthDesc
)

// Filter narrows Query results. Zero-valued fields do not constrain.
type Filter struct {
	IDs        []string
	TrackingID string
	URL        string
	Type       ItemType
	SubStages  []SubStage
	Statuses   []Status
	// ExcludeAdvanced drops items whose result message records a hand-off
	// to a spawned continuation.
	ExcludeAdvanced bool
	Order           Order
	Limit           int
}

// Query returns items matching the filter.
func (s *Store) Query(ctx context.Context, f Filter) ([]*Item, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if len(f.IDs) > 0 {
		clauses = append(clauses, "id IN ("+makePlaceholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.TrackingID != "" {
		clauses = append(clauses, "tracking_id = ?")
		args = append(args, f.TrackingID)
	}
	if f.URL != "" {
		clauses = append(clauses, "url = ?")
		args = append(args, f.URL)
	}
	if f.Type != "" {
		clauses = append(clauses, "item_type = ?")
		args = append(args, string(f.Type))
	}
	if len(f.SubStages) > 0 {
		clauses = append(clauses, "sub_stage IN ("+makePlaceholders(len(f.SubStages))+")")
		for _, st := range f.SubStages {
			args = append(args, string(st))
		}
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.ExcludeAdvanced {
		clauses = append(clauses, "COALESCE(result_message, '') NOT LIKE ?")
		args = append(args, AdvancedMessage+"%")
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	switch f.Order {
	case OrderDepthAsc:
		query += ` ORDER BY spawn_depth ASC, created_at ASC, rowid ASC`
	case OrderDepthDesc:
		query += ` ORDER BY spawn_depth DESC, created_at ASC, rowid ASC`
	default:
		query += ` ORDER BY created_at ASC, rowid ASC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Lineage returns every item sharing trackingID, root first.
func (s *Store) Lineage(ctx context.Context, trackingID string) ([]*Item, error) {
	if strings.TrimSpace(trackingID) == "" {
		return nil, fmt.Errorf("%w: tracking id required", ErrInvalidItem)
	}
	return s.Query(ctx, Filter{TrackingID: trackingID, Order: OrderDepthAsc})
}

// Exists reports whether any item matches the filter.
func (s *Store) Exists(ctx context.Context, f Filter) (bool, error) {
	f.Limit = 1
	items, err := s.Query(ctx, f)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// Stats returns item counts keyed by type then status.
func (s *Store) Stats(ctx context.Context) (map[ItemType]map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT item_type, status, COUNT(*) FROM items GROUP BY item_type, status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[ItemType]map[Status]int)
	for rows.Next() {
		var (
			itemType string
			status   string
			count    int
		)
		if err := rows.Scan(&itemType, &status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		t := ItemType(itemType)
		if stats[t] == nil {
			stats[t] = make(map[Status]int)
		}
		stats[t][Status(status)] = count
	}
	return stats, rows.Err()
}
