package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"jobsift/internal/filter"
	"jobsift/internal/queue"
	"jobsift/internal/services"
)

const greenhouseAPI = "https://boards-api.greenhouse.io/v1/boards"

// Greenhouse reads the public Greenhouse job board API. The source URL's
// last path segment is the board token.
type Greenhouse struct {
	client  *Client
	apiBase string
}

// NewGreenhouse returns the adapter; an empty apiBase uses the public API.
func NewGreenhouse(client *Client, apiBase string) *Greenhouse {
	if apiBase == "" {
		apiBase = greenhouseAPI
	}
	return &Greenhouse{client: client, apiBase: strings.TrimRight(apiBase, "/")}
}

func (g *Greenhouse) Type() string { return SourceGreenhouse }

type greenhouseBoard struct {
	Jobs []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		AbsoluteURL string `json:"absolute_url"`
		Location    struct {
			Name string `json:"name"`
		} `json:"location"`
		Content  string `json:"content"`
		Metadata []struct {
			Name  string `json:"name"`
			Value any    `json:"value"`
		} `json:"metadata"`
	} `json:"jobs"`
}

func (g *Greenhouse) Listings(ctx context.Context, src *queue.Source) ([]filter.Candidate, error) {
	token := boardToken(src.URL)
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "greenhouse", "source url has no board token", nil)
	}
	endpoint := fmt.Sprintf("%s/%s/jobs?content=true", g.apiBase, url.PathEscape(token))
	resp, err := g.client.Get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}
	var board greenhouseBoard
	if err := json.Unmarshal(resp.Body, &board); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "fetch", "greenhouse", "decode board", err)
	}
	out := make([]filter.Candidate, 0, len(board.Jobs))
	for _, job := range board.Jobs {
		c := filter.Candidate{
			Title:       strings.TrimSpace(job.Title),
			Company:     src.Name,
			URL:         strings.TrimSpace(job.AbsoluteURL),
			Location:    strings.TrimSpace(job.Location.Name),
			Description: HTMLToText(html.UnescapeString(job.Content)),
		}
		for _, m := range job.Metadata {
			name := strings.ToLower(m.Name)
			value, ok := m.Value.(string)
			if !ok {
				continue
			}
			switch {
			case strings.Contains(name, "employment"):
				c.EmploymentType = value
			case strings.Contains(name, "salary") || strings.Contains(name, "compensation"):
				c.Salary = value
			case strings.Contains(name, "remote") || strings.Contains(name, "workplace"):
				c.WorkMode = value
			}
		}
		if c.WorkMode == "" {
			c.WorkMode = filter.DetectWorkMode(c)
		}
		out = append(out, c)
	}
	return out, nil
}
