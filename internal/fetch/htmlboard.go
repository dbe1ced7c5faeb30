package fetch

import (
	"context"
	"net/url"
	"strings"

	"jobsift/internal/filter"
	"jobsift/internal/queue"
)

var jobPathHints = []string{"/job/", "/jobs/", "/careers/", "/career/", "/positions/", "/position/", "/openings/", "/vacancies/", "/vacancy/"}

// HTMLBoard scrapes a plain careers page for links that look like
// individual postings. Descriptions are filled in later by the scrape stage.
type HTMLBoard struct {
	client *Client
}

// NewHTMLBoard returns the careers page adapter.
func NewHTMLBoard(client *Client) *HTMLBoard {
	return &HTMLBoard{client: client}
}

func (h *HTMLBoard) Type() string { return SourceHTML }

func (h *HTMLBoard) Listings(ctx context.Context, src *queue.Source) ([]filter.Candidate, error) {
	page, err := h.client.Page(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	return PostingLinks(page, src.Name), nil
}

// PostingLinks picks links on page that point below a job-like path on the
// same site, excluding the page itself.
func PostingLinks(page *Page, company string) []filter.Candidate {
	base, _ := url.Parse(page.FinalURL)
	var out []filter.Candidate
	for _, link := range page.Links {
		if link.Text == "" || link.URL == page.FinalURL || link.URL == page.URL {
			continue
		}
		u, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		if base != nil && !sameSite(base.Hostname(), u.Hostname()) {
			continue
		}
		if !looksLikePosting(u.Path) {
			continue
		}
		out = append(out, filter.Candidate{Title: link.Text, Company: company, URL: link.URL})
	}
	return out
}

func looksLikePosting(path string) bool {
	lower := strings.ToLower(path)
	for _, hint := range jobPathHints {
		idx := strings.Index(lower, hint)
		if idx >= 0 && len(strings.Trim(lower[idx+len(hint):], "/")) > 0 {
			return true
		}
	}
	return false
}

func sameSite(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a == b || strings.HasSuffix(b, "."+a) || strings.HasSuffix(a, "."+b)
}
