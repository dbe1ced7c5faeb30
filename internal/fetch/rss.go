package fetch

import (
	"bytes"
	"context"
	"strings"

	"github.com/mmcdole/gofeed"

	"jobsift/internal/filter"
	"jobsift/internal/queue"
	"jobsift/internal/services"
)

// RSS reads RSS, Atom and JSON Feed job feeds.
type RSS struct {
	client *Client
}

// NewRSS returns the feed adapter.
func NewRSS(client *Client) *RSS {
	return &RSS{client: client}
}

func (r *RSS) Type() string { return SourceRSS }

func (r *RSS) Listings(ctx context.Context, src *queue.Source) ([]filter.Candidate, error) {
	resp, err := r.client.Get(ctx, src.URL, "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.5")
	if err != nil {
		return nil, err
	}
	listings, err := ParseFeed(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "fetch", "rss", "decode feed", err)
	}
	for i := range listings {
		if listings[i].Company == "" {
			listings[i].Company = src.Name
		}
	}
	return listings, nil
}

// ParseFeed decodes any feed format gofeed detects into listings.
func ParseFeed(body []byte) ([]filter.Candidate, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	out := make([]filter.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		out = append(out, feedCandidate(item.Title, itemLink(item), firstNonEmpty(item.Content, item.Description), itemAuthor(item)))
	}
	return out, nil
}

func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	for _, link := range item.Links {
		if link = strings.TrimSpace(link); link != "" {
			return link
		}
	}
	return ""
}

func itemAuthor(item *gofeed.Item) string {
	for _, person := range item.Authors {
		if person != nil && strings.TrimSpace(person.Name) != "" {
			return person.Name
		}
	}
	return ""
}

// feedCandidate splits "Title at Company" titles, a common job feed shape.
func feedCandidate(title, link, body, author string) filter.Candidate {
	title = collapse(title)
	company := strings.TrimSpace(author)
	if idx := strings.LastIndex(title, " at "); idx > 0 && company == "" {
		company = strings.TrimSpace(title[idx+4:])
		title = strings.TrimSpace(title[:idx])
	}
	c := filter.Candidate{
		Title:       title,
		Company:     company,
		URL:         strings.TrimSpace(link),
		Description: HTMLToText(body),
	}
	c.WorkMode = filter.DetectWorkMode(c)
	c.EmploymentType = filter.DetectEmploymentType(c)
	return c
}
