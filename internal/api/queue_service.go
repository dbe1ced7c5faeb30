package api

import (
	"context"
	"fmt"
	"strings"

	"jobsift/internal/queue"
	"jobsift/internal/services"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	Get(ctx context.Context, id string) (*queue.Item, error)
	Query(ctx context.Context, f queue.Filter) ([]*queue.Item, error)
	Lineage(ctx context.Context, trackingID string) ([]*queue.Item, error)
	Stats(ctx context.Context) (map[queue.ItemType]map[queue.Status]int, error)
}

// QueueWriter is the write surface Submit needs.
type QueueWriter interface {
	QueueReader
	Create(ctx context.Context, item *queue.Item) error
}

// Limits carries the lineage defaults stamped onto submitted roots.
type Limits struct {
	MaxSpawnDepth int
	MaxRetries    int
}

// ListOptions narrows List.
type ListOptions struct {
	Type      queue.ItemType
	SubStage  queue.SubStage
	Statuses  []queue.Status
	Limit     int
	NewestOut bool
}

// QueueService exposes queue operations returning API DTOs.
type QueueService struct {
	store  QueueReader
	limits Limits
}

// NewQueueService constructs a QueueService around the provided reader.
// Submit is available only when store also implements QueueWriter.
func NewQueueService(store QueueReader, limits Limits) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store, limits: limits}
}

// List returns queue items matching opts, oldest first unless NewestOut.
func (s *QueueService) List(ctx context.Context, opts ListOptions) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	f := queue.Filter{Type: opts.Type, Statuses: opts.Statuses}
	if opts.SubStage != "" {
		f.SubStages = []queue.SubStage{opts.SubStage}
	}
	if !opts.NewestOut {
		f.Limit = opts.Limit
	}
	items, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	dtos := FromQueueItems(items)
	if opts.NewestOut {
		dtos = SortQueueItemsNewestFirst(dtos)
		if opts.Limit > 0 && len(dtos) > opts.Limit {
			dtos = dtos[:opts.Limit]
		}
	}
	return dtos, nil
}

// Stats returns queue counts keyed by type then status.
func (s *QueueService) Stats(ctx context.Context) (map[string]map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single queue item, returning nil when absent.
func (s *QueueService) Describe(ctx context.Context, id string) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}

// Lineage returns every item sharing trackingID, shallowest first.
func (s *QueueService) Lineage(ctx context.Context, trackingID string) (LineageResponse, error) {
	resp := LineageResponse{TrackingID: strings.TrimSpace(trackingID)}
	if s == nil || s.store == nil {
		return resp, nil
	}
	items, err := s.store.Lineage(ctx, resp.TrackingID)
	if err != nil {
		return resp, err
	}
	resp.Items = FromQueueItems(items)
	return resp, nil
}

// Depth counts unfinished items per spawn depth, shallowest first.
func (s *QueueService) Depth(ctx context.Context) (QueueDepthResponse, error) {
	var resp QueueDepthResponse
	if s == nil || s.store == nil {
		return resp, nil
	}
	items, err := s.store.Query(ctx, queue.Filter{Statuses: queue.ActiveStatuses(), Order: queue.OrderDepthAsc})
	if err != nil {
		return resp, err
	}
	for _, item := range items {
		if n := len(resp.Rows); n == 0 || resp.Rows[n-1].Depth != item.SpawnDepth {
			resp.Rows = append(resp.Rows, DepthRow{Depth: item.SpawnDepth})
		}
		row := &resp.Rows[len(resp.Rows)-1]
		switch item.Status {
		case queue.StatusPending:
			row.Pending++
		case queue.StatusProcessing:
			row.Processing++
		}
	}
	return resp, nil
}

// Submit validates req and persists a new lineage root at the requested
// sub-stage, defaulting to the type's first stage.
func (s *QueueService) Submit(ctx context.Context, req SubmitRequest) (*QueueItem, error) {
	if s == nil {
		return nil, fmt.Errorf("submit: %w", services.ErrConfiguration)
	}
	writer, ok := s.store.(QueueWriter)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "api", "submit", "queue store is read-only", nil)
	}
	itemType, ok := queue.ParseItemType(req.Type)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "api", "submit", fmt.Sprintf("unknown item type %q", req.Type), nil)
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "submit", "url is required", nil)
	}
	subStage := queue.FirstStage(itemType)
	if value := strings.TrimSpace(req.SubStage); value != "" {
		subStage = queue.SubStage(strings.ToLower(value))
		if !itemType.HasStage(subStage) {
			return nil, services.Wrap(services.ErrValidation, "api", "submit", fmt.Sprintf("sub-stage %q not valid for %s", value, itemType), nil)
		}
	}

	item := queue.NewRoot(queue.RootSpec{
		Type:             itemType,
		URL:              url,
		SubStage:         subStage,
		OrganizationName: req.OrganizationName,
		MaxSpawnDepth:    s.limits.MaxSpawnDepth,
		MaxRetries:       s.limits.MaxRetries,
	})
	if err := writer.Create(ctx, item); err != nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}
