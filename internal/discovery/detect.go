package discovery

import (
	"context"
	"net/url"
	"strings"

	"jobsift/internal/fetch"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
)

// Detection records which board a careers page is backed by.
type Detection struct {
	Type     string `json:"type"`
	BoardURL string `json:"board_url"`
	Name     string `json:"name"`
	Via      string `json:"via"`
}

// BoardFromURL recognises hosted board URLs without fetching them.
func BoardFromURL(raw string) (Detection, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return Detection{}, false
	}
	host := strings.ToLower(u.Hostname())
	segment := firstSegment(u.Path)
	switch {
	case (host == "boards.greenhouse.io" || host == "job-boards.greenhouse.io") && segment != "":
		return Detection{Type: fetch.SourceGreenhouse, BoardURL: "https://boards.greenhouse.io/" + segment, Via: "url"}, true
	case host == "boards-api.greenhouse.io":
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 3 && parts[1] == "boards" {
			return Detection{Type: fetch.SourceGreenhouse, BoardURL: "https://boards.greenhouse.io/" + parts[2], Via: "url"}, true
		}
	case host == "jobs.lever.co" && segment != "":
		return Detection{Type: fetch.SourceLever, BoardURL: "https://jobs.lever.co/" + segment, Via: "url"}, true
	}
	lower := strings.ToLower(u.Path)
	if strings.HasSuffix(lower, ".rss") || strings.HasSuffix(lower, "/feed") || strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, "/rss") {
		return Detection{Type: fetch.SourceRSS, BoardURL: raw, Via: "url"}, true
	}
	return Detection{}, false
}

// DetectBoard inspects a fetched careers page: an embedded or linked hosted
// board wins, then a feed, then a page with posting links.
func DetectBoard(page *fetch.Page) (Detection, bool) {
	if isFeed(page) {
		return Detection{Type: fetch.SourceRSS, BoardURL: page.FinalURL, Via: "content"}, true
	}
	for _, link := range page.Links {
		if d, ok := BoardFromURL(link.URL); ok && d.Type != fetch.SourceRSS {
			d.Via = "link"
			return d, true
		}
	}
	if feed := page.Meta["alternate:feed"]; feed != "" {
		return Detection{Type: fetch.SourceRSS, BoardURL: feed, Via: "link"}, true
	}
	if len(fetch.PostingLinks(page, "")) > 0 {
		return Detection{Type: fetch.SourceHTML, BoardURL: page.FinalURL, Via: "content"}, true
	}
	return Detection{}, false
}

func isFeed(page *fetch.Page) bool {
	ct := strings.ToLower(page.ContentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(string(page.Raw)))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(head, "<rss") || strings.Contains(head, "<feed")
}

func firstSegment(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	return parts[0]
}

type detectStage struct {
	fetcher PageFetcher
}

func (s *detectStage) Execute(ctx context.Context, item *queue.Item) (stage.Outcome, error) {
	detection, ok := BoardFromURL(item.URL)
	if !ok {
		if s.fetcher == nil {
			return stage.Outcome{}, services.Wrap(services.ErrConfiguration, "detect", "page", "no page fetcher configured", nil)
		}
		page, err := s.fetcher.Page(ctx, item.URL)
		if err != nil {
			return stage.Outcome{}, err
		}
		detection, ok = DetectBoard(page)
		if !ok {
			return stage.Outcome{}, services.Wrap(services.ErrNotFound, "detect", "board", "no job board found at "+item.URL, nil)
		}
		detection.Name = firstNonEmpty(item.OrganizationName, page.SiteName)
	}
	if detection.Name == "" {
		detection.Name = firstNonEmpty(item.OrganizationName, hostName(detection.BoardURL))
	}
	if err := item.SetState(queue.StateDetection, detection); err != nil {
		return stage.Outcome{}, err
	}
	return stage.Advance("detected " + detection.Type + " board " + detection.BoardURL), nil
}

func (s *detectStage) HealthCheck(context.Context) stage.Health {
	if s.fetcher == nil {
		return stage.Missing("detect", "page fetcher")
	}
	return stage.Healthy("detect")
}

func hostName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
