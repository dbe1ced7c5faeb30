package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jobsift/internal/config"
	"jobsift/internal/filter"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
)

// ListingFetcher returns a source's current listings.
type ListingFetcher interface {
	Listings(ctx context.Context, src *queue.Source) ([]filter.Candidate, error)
}

// ItemStore is the item surface the poller needs.
type ItemStore interface {
	Exists(ctx context.Context, f queue.Filter) (bool, error)
	CreateClaimed(ctx context.Context, item *queue.Item) error
}

// Driver runs a claimed item inline until it reaches a sub-stage.
type Driver interface {
	DriveClaimed(ctx context.Context, claimed *queue.Item, until queue.SubStage) (*queue.Item, error)
}

// ListingPoller queues a source's new listings and drives them through the
// filter stage. Roots are inserted already claimed so worker lanes never race
// the poller for them. A listing that comes out pending at analyze counts as
// a potential match; analysis itself is left to the worker lanes.
type ListingPoller struct {
	fetcher       ListingFetcher
	store         ItemStore
	driver        Driver
	maxSpawnDepth int
	maxRetries    int
	logger        *slog.Logger
}

// NewListingPoller builds the production poller.
func NewListingPoller(cfg *config.Config, fetcher ListingFetcher, store ItemStore, driver Driver, logger *slog.Logger) *ListingPoller {
	return &ListingPoller{
		fetcher:       fetcher,
		store:         store,
		driver:        driver,
		maxSpawnDepth: cfg.Pipeline.MaxSpawnDepth,
		maxRetries:    cfg.Pipeline.MaxRetries,
		logger:        logging.NewComponentLogger(logger, "listing-poller"),
	}
}

// Poll implements Poller.
func (p *ListingPoller) Poll(ctx context.Context, src *queue.Source) (PollResult, error) {
	listings, err := p.fetcher.Listings(ctx, src)
	if err != nil {
		return PollResult{}, err
	}
	result := PollResult{JobsFound: len(listings)}

	var errs []error
	for _, listing := range listings {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		queued, err := p.store.Exists(ctx, queue.Filter{URL: listing.URL, Type: queue.ItemTypeListing})
		if err != nil {
			return result, fmt.Errorf("check queued listing: %w", err)
		}
		if queued {
			continue
		}

		item, err := p.newRoot(src, listing)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.store.CreateClaimed(ctx, item); err != nil {
			return result, fmt.Errorf("queue listing %s: %w", listing.URL, err)
		}
		result.Queued++

		final, err := p.driver.DriveClaimed(ctx, item, queue.StageAnalyze)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			if errors.Is(err, queue.ErrStatusConflict) {
				// A lane claimed a spawned continuation first and owns it now.
				continue
			}
			errs = append(errs, fmt.Errorf("drive %s: %w", item.ID, err))
			continue
		}
		if final != nil && final.Status == queue.StatusPending && final.SubStage == queue.StageAnalyze {
			result.PotentialMatches++
		}
	}
	if len(errs) > 0 {
		logging.WarnWithContext(p.logger, "some listings could not be processed", "poll_partial",
			logging.String("source_id", src.ID),
			logging.Int("errors", len(errs)),
			logging.Error(errors.Join(errs...)),
			logging.Impact("affected listings stay queued for the worker lanes"),
		)
	}
	return result, nil
}

func (p *ListingPoller) newRoot(src *queue.Source, listing filter.Candidate) (*queue.Item, error) {
	item := queue.NewRoot(queue.RootSpec{
		Type:             queue.ItemTypeListing,
		URL:              listing.URL,
		SubStage:         queue.StageScrape,
		OrganizationName: listing.Company,
		SourceID:         src.ID,
		MaxSpawnDepth:    p.maxSpawnDepth,
		MaxRetries:       p.maxRetries,
	})
	if err := item.SetState(queue.StateListing, listing); err != nil {
		return nil, err
	}
	return item, nil
}
