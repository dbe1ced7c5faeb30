package discovery_test

import (
	"context"
	"testing"

	"jobsift/internal/config"
	"jobsift/internal/discovery"
	"jobsift/internal/fetch"
	"jobsift/internal/filter"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/testsupport"
	"jobsift/internal/workflow"
)

type pages map[string]*fetch.Page

func (p pages) Page(_ context.Context, url string) (*fetch.Page, error) {
	if page, ok := p[url]; ok {
		return page, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "fetch", "get", url, nil)
}

type boards map[string][]filter.Candidate

func (b boards) Supports(sourceType string) bool {
	switch sourceType {
	case fetch.SourceGreenhouse, fetch.SourceLever, fetch.SourceRSS, fetch.SourceHTML:
		return true
	}
	return false
}

func (b boards) Listings(_ context.Context, src *queue.Source) ([]filter.Candidate, error) {
	listings, ok := b[src.URL]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fetch", "listings", src.URL, nil)
	}
	return listings, nil
}

func setup(t *testing.T, fetcher discovery.PageFetcher, lister discovery.ListingSource) (*config.Config, *queue.Store, *workflow.Manager) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{
		queue.ItemTypeSourceDiscovery: discovery.Stages(discovery.Dependencies{
			Fetcher: fetcher,
			Lister:  lister,
			Store:   store,
			Logger:  logging.NewNop(),
		}),
	})
	return cfg, store, mgr
}

func TestBoardFromURL(t *testing.T) {
	cases := []struct {
		url      string
		wantType string
		wantURL  string
		ok       bool
	}{
		{"https://boards.greenhouse.io/acme/jobs/123", fetch.SourceGreenhouse, "https://boards.greenhouse.io/acme", true},
		{"https://job-boards.greenhouse.io/acme", fetch.SourceGreenhouse, "https://boards.greenhouse.io/acme", true},
		{"https://boards-api.greenhouse.io/v1/boards/acme/jobs", fetch.SourceGreenhouse, "https://boards.greenhouse.io/acme", true},
		{"https://jobs.lever.co/globex/abc-123", fetch.SourceLever, "https://jobs.lever.co/globex", true},
		{"https://initech.example/careers/feed", fetch.SourceRSS, "https://initech.example/careers/feed", true},
		{"https://initech.example/careers", "", "", false},
		{"https://jobs.lever.co/", "", "", false},
	}
	for _, tc := range cases {
		got, ok := discovery.BoardFromURL(tc.url)
		if ok != tc.ok || got.Type != tc.wantType || got.BoardURL != tc.wantURL {
			t.Fatalf("BoardFromURL(%q) = %+v, %v", tc.url, got, ok)
		}
	}
}

func TestDetectBoardFromPage(t *testing.T) {
	linked := &fetch.Page{
		FinalURL: "https://acme.example/careers",
		Links:    []fetch.Link{{URL: "https://jobs.lever.co/acme", Text: "See openings"}},
	}
	if d, ok := discovery.DetectBoard(linked); !ok || d.Type != fetch.SourceLever || d.Via != "link" {
		t.Fatalf("expected linked lever board, got %+v %v", d, ok)
	}

	feed := &fetch.Page{FinalURL: "https://acme.example/jobs.atom", ContentType: "application/atom+xml"}
	if d, ok := discovery.DetectBoard(feed); !ok || d.Type != fetch.SourceRSS {
		t.Fatalf("expected feed, got %+v %v", d, ok)
	}

	alternate := &fetch.Page{FinalURL: "https://acme.example/careers", Meta: map[string]string{"alternate:feed": "https://acme.example/careers.xml"}}
	if d, ok := discovery.DetectBoard(alternate); !ok || d.BoardURL != "https://acme.example/careers.xml" {
		t.Fatalf("expected alternate feed, got %+v %v", d, ok)
	}

	plain := &fetch.Page{
		FinalURL: "https://acme.example/careers",
		Links:    []fetch.Link{{URL: "https://acme.example/careers/staff-engineer", Text: "Staff Engineer"}},
	}
	if d, ok := discovery.DetectBoard(plain); !ok || d.Type != fetch.SourceHTML || d.BoardURL != plain.FinalURL {
		t.Fatalf("expected html board, got %+v %v", d, ok)
	}

	if _, ok := discovery.DetectBoard(&fetch.Page{FinalURL: "https://acme.example/about"}); ok {
		t.Fatal("page without postings should not be detected")
	}
}

func TestDiscoveryCreatesSource(t *testing.T) {
	careers := &fetch.Page{
		URL:      "https://acme.example/careers",
		FinalURL: "https://acme.example/careers",
		SiteName: "Acme",
		Links:    []fetch.Link{{URL: "https://boards.greenhouse.io/acme", Text: "Open roles"}},
	}
	lister := boards{"https://boards.greenhouse.io/acme": {{Title: "Backend Engineer"}, {Title: "Designer"}}}
	cfg, store, mgr := setup(t, pages{careers.URL: careers}, lister)
	root := testsupport.NewRoot(t, store, cfg, queue.ItemTypeSourceDiscovery, careers.URL)

	final, err := mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusSuccess || final.SubStage != queue.StageCreate {
		t.Fatalf("expected success at create, got %s/%s: %s", final.Status, final.SubStage, final.ErrorDetails)
	}
	src, err := store.FindSourceByURL(context.Background(), "https://boards.greenhouse.io/acme")
	if err != nil || src == nil {
		t.Fatalf("FindSourceByURL: %v %v", src, err)
	}
	if src.Type != fetch.SourceGreenhouse || src.Name != "Acme" || !src.Enabled {
		t.Fatalf("unexpected source %+v", src)
	}
	var sourceID string
	if _, err := final.PipelineState.Decode(queue.StateSource, &sourceID); err != nil || sourceID != src.ID {
		t.Fatalf("source id state = %q (%v), want %q", sourceID, err, src.ID)
	}
	var validation discovery.Validation
	if _, err := final.PipelineState.Decode(queue.StateValidation, &validation); err != nil || validation.Listings != 2 {
		t.Fatalf("unexpected validation %+v (%v)", validation, err)
	}
}

func TestDiscoveryOfKnownSourceCompletesEarly(t *testing.T) {
	lister := boards{"https://jobs.lever.co/globex": {{Title: "SRE"}}}
	cfg, store, mgr := setup(t, pages{}, lister)
	if err := store.CreateSource(context.Background(), &queue.Source{Name: "Globex", URL: "https://jobs.lever.co/globex", Type: fetch.SourceLever, Enabled: true}); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	root := testsupport.NewRoot(t, store, cfg, queue.ItemTypeSourceDiscovery, "https://jobs.lever.co/globex/some-posting")

	final, err := mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusSuccess || final.SubStage != queue.StageValidate {
		t.Fatalf("expected early success at validate, got %s/%s", final.Status, final.SubStage)
	}
	sources, _ := store.ListSources(context.Background())
	if len(sources) != 1 {
		t.Fatalf("duplicate source registered: %d sources", len(sources))
	}
}

func TestDiscoveryWithoutBoardFails(t *testing.T) {
	about := &fetch.Page{URL: "https://acme.example/about", FinalURL: "https://acme.example/about"}
	cfg, store, mgr := setup(t, pages{about.URL: about}, boards{})
	root := testsupport.NewRoot(t, store, cfg, queue.ItemTypeSourceDiscovery, about.URL)

	final, err := mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusFailed || final.RetryCount != 0 {
		t.Fatalf("expected fatal failure, got %s retry=%d", final.Status, final.RetryCount)
	}
}

func TestEmptyBoardFailsValidation(t *testing.T) {
	cfg, store, mgr := setup(t, pages{}, boards{"https://jobs.lever.co/empty": nil})
	root := testsupport.NewRoot(t, store, cfg, queue.ItemTypeSourceDiscovery, "https://jobs.lever.co/empty")

	final, err := mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusFailed || final.SubStage != queue.StageValidate {
		t.Fatalf("expected validation failure, got %s/%s", final.Status, final.SubStage)
	}
}
