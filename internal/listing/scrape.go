package listing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jobsift/internal/filter"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

type scrapeStage struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

func (s *scrapeStage) Execute(ctx context.Context, item *queue.Item) (stage.Outcome, error) {
	var listing filter.Candidate
	if _, err := item.PipelineState.Decode(queue.StateListing, &listing); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "scrape", "decode listing", "", err)
	}
	if strings.TrimSpace(listing.Description) != "" {
		return stage.Advance("listing pre-loaded"), nil
	}
	if s.fetcher == nil {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, "scrape", "fetch", "no page fetcher configured", nil)
	}

	page, err := s.fetcher.Page(ctx, item.URL)
	if err != nil {
		return stage.Outcome{}, err
	}
	if page.Text == "" {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, "scrape", "parse", fmt.Sprintf("%s has no readable text", item.URL), nil)
	}

	listing.URL = firstNonEmpty(listing.URL, item.URL)
	listing.Title = firstNonEmpty(listing.Title, page.Meta["og:title"], page.Title)
	listing.Company = firstNonEmpty(listing.Company, item.OrganizationName, page.SiteName)
	listing.Description = page.Text
	if listing.WorkMode == "" {
		listing.WorkMode = filter.DetectWorkMode(listing)
	}
	if listing.EmploymentType == "" {
		listing.EmploymentType = filter.DetectEmploymentType(listing)
	}
	if err := item.SetState(queue.StateListing, listing); err != nil {
		return stage.Outcome{}, err
	}
	s.logger.Debug("listing scraped",
		logging.EventType("listing_scraped"),
		logging.ItemID(item.ID),
		logging.String("title", listing.Title),
		logging.Int("description_length", len(listing.Description)),
	)
	return stage.Advance("scraped " + orUntitled(listing.Title)), nil
}

func (s *scrapeStage) HealthCheck(context.Context) stage.Health {
	if s.fetcher == nil {
		return stage.Missing("scrape", "page fetcher")
	}
	return stage.Healthy("scrape")
}

// loadListing decodes the scraped listing, which every later stage needs.
func loadListing(item *queue.Item, stageName string) (filter.Candidate, error) {
	var listing filter.Candidate
	found, err := item.PipelineState.Decode(queue.StateListing, &listing)
	if err != nil {
		return listing, services.Wrap(services.ErrValidation, stageName, "decode listing", "", err)
	}
	if !found {
		return listing, services.Wrap(services.ErrValidation, stageName, "load listing", "item has no scraped listing", nil)
	}
	if listing.URL == "" {
		listing.URL = item.URL
	}
	return listing, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orUntitled(title string) string {
	if title == "" {
		return "untitled listing"
	}
	return fmt.Sprintf("%q", title)
}
