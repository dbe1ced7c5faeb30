package fetch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"jobsift/internal/filter"
	"jobsift/internal/queue"
	"jobsift/internal/services"
)

// Source types understood by the default registry.
const (
	SourceGreenhouse = "greenhouse"
	SourceLever      = "lever"
	SourceRSS        = "rss"
	SourceHTML       = "html"
)

// Adapter turns one kind of job board into listings.
type Adapter interface {
	Type() string
	Listings(ctx context.Context, src *queue.Source) ([]filter.Candidate, error)
}

// Registry selects an adapter by Source.Type.
type Registry struct {
	client   *Client
	adapters map[string]Adapter
}

// NewRegistry returns a registry with the built-in adapters over client.
func NewRegistry(client *Client) *Registry {
	r := &Registry{client: client, adapters: make(map[string]Adapter)}
	r.Register(NewGreenhouse(client, ""))
	r.Register(NewLever(client, ""))
	r.Register(NewRSS(client))
	r.Register(NewHTMLBoard(client))
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.adapters[strings.ToLower(a.Type())] = a
}

// Types lists the registered source types.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether a source type has an adapter.
func (r *Registry) Supports(sourceType string) bool {
	_, ok := r.adapters[strings.ToLower(strings.TrimSpace(sourceType))]
	return ok
}

// Listings fetches a source's listings through its adapter. Listings without
// a URL are dropped.
func (r *Registry) Listings(ctx context.Context, src *queue.Source) ([]filter.Candidate, error) {
	if src == nil {
		return nil, services.Wrap(services.ErrValidation, "fetch", "listings", "nil source", nil)
	}
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(src.Type))]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "listings",
			fmt.Sprintf("no adapter for source type %q", src.Type), nil)
	}
	listings, err := adapter.Listings(ctx, src)
	if err != nil {
		return nil, err
	}
	out := listings[:0]
	for _, l := range listings {
		if strings.TrimSpace(l.URL) == "" {
			continue
		}
		if l.Company == "" {
			l.Company = src.Name
		}
		out = append(out, l)
	}
	return out, nil
}

// Page fetches and parses a single page.
func (r *Registry) Page(ctx context.Context, rawURL string) (*Page, error) {
	return r.client.Page(ctx, rawURL)
}

func boardToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "/") {
		return raw
	}
	trimmed := strings.TrimRight(raw, "/")
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}
