package organization

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"jobsift/internal/fetch"
)

const (
	maxPageTextRunes    = 20000
	maxDescriptionRunes = 600
)

var careersHints = []string{"careers", "jobs", "join-us", "join us", "work-with-us", "work with us", "open positions", "vacancies"}

// Profile is the company summary extracted from its site.
type Profile struct {
	Name        string `json:"name"`
	Website     string `json:"website"`
	Description string `json:"description,omitempty"`
	CareersURL  string `json:"careers_url,omitempty"`
	Text        string `json:"text,omitempty"`
}

// ExtractProfile builds a profile from a fetched page. knownName wins over
// names found on the page.
func ExtractProfile(page *fetch.Page, knownName string) Profile {
	p := Profile{
		Name:    firstNonEmpty(knownName, page.SiteName, page.Meta["og:site_name"], titleName(page.Title)),
		Website: siteRoot(firstNonEmpty(page.FinalURL, page.URL)),
		Text:    page.Text,
	}
	p.Description = firstNonEmpty(page.Description, truncate(page.Text, maxDescriptionRunes))
	p.CareersURL = careersLink(page)
	return p
}

// trimPage keeps stored page state bounded.
func trimPage(page *fetch.Page) *fetch.Page {
	out := *page
	out.Text = truncate(page.Text, maxPageTextRunes)
	out.Raw = nil
	return &out
}

func careersLink(page *fetch.Page) string {
	for _, link := range page.Links {
		text := strings.ToLower(link.Text)
		path := ""
		if u, err := url.Parse(link.URL); err == nil {
			path = strings.ToLower(u.Host + u.Path)
		}
		for _, hint := range careersHints {
			if strings.Contains(text, hint) || strings.Contains(path, strings.ReplaceAll(hint, " ", "-")) {
				return link.URL
			}
		}
	}
	return ""
}

// titleName takes the site name part of titles like "Acme | Home".
func titleName(title string) string {
	for _, sep := range []string{" | ", " - ", " – ", " · "} {
		if idx := strings.Index(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return strings.TrimSpace(title)
}

func siteRoot(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
