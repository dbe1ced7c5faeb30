package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"jobsift/internal/filter"
	"jobsift/internal/queue"
	"jobsift/internal/services"
)

const leverAPI = "https://api.lever.co/v0/postings"

// Lever reads the public Lever postings API. The source URL's last path
// segment is the company slug.
type Lever struct {
	client  *Client
	apiBase string
}

// NewLever returns the adapter; an empty apiBase uses the public API.
func NewLever(client *Client, apiBase string) *Lever {
	if apiBase == "" {
		apiBase = leverAPI
	}
	return &Lever{client: client, apiBase: strings.TrimRight(apiBase, "/")}
}

func (l *Lever) Type() string { return SourceLever }

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	DescriptionPlain string `json:"descriptionPlain"`
	AdditionalPlain  string `json:"additionalPlain"`
	WorkplaceType    string `json:"workplaceType"`
	Categories       struct {
		Location   string `json:"location"`
		Commitment string `json:"commitment"`
		Team       string `json:"team"`
	} `json:"categories"`
	SalaryRange *struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
	} `json:"salaryRange"`
}

func (l *Lever) Listings(ctx context.Context, src *queue.Source) ([]filter.Candidate, error) {
	slug := boardToken(src.URL)
	if slug == "" {
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "lever", "source url has no company slug", nil)
	}
	endpoint := fmt.Sprintf("%s/%s?mode=json", l.apiBase, url.PathEscape(slug))
	resp, err := l.client.Get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}
	var postings []leverPosting
	if err := json.Unmarshal(resp.Body, &postings); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "fetch", "lever", "decode postings", err)
	}
	out := make([]filter.Candidate, 0, len(postings))
	for _, p := range postings {
		c := filter.Candidate{
			Title:          strings.TrimSpace(p.Text),
			Company:        src.Name,
			URL:            strings.TrimSpace(p.HostedURL),
			Location:       strings.TrimSpace(p.Categories.Location),
			WorkMode:       strings.TrimSpace(p.WorkplaceType),
			EmploymentType: strings.TrimSpace(p.Categories.Commitment),
			Description:    strings.TrimSpace(strings.TrimSpace(p.DescriptionPlain) + "\n" + strings.TrimSpace(p.AdditionalPlain)),
		}
		if p.SalaryRange != nil && p.SalaryRange.Max > 0 {
			c.Salary = fmt.Sprintf("%.0f-%.0f %s", p.SalaryRange.Min, p.SalaryRange.Max, p.SalaryRange.Currency)
		}
		if c.WorkMode == "" || strings.EqualFold(c.WorkMode, "unspecified") {
			c.WorkMode = filter.DetectWorkMode(c)
		}
		out = append(out, c)
	}
	return out, nil
}
