package listing_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"jobsift/internal/analysis"
	"jobsift/internal/config"
	"jobsift/internal/events"
	"jobsift/internal/fetch"
	"jobsift/internal/filter"
	"jobsift/internal/listing"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/testsupport"
	"jobsift/internal/workflow"
)

type fakeFetcher struct {
	pages map[string]*fetch.Page
	calls int
}

func (f *fakeFetcher) Page(_ context.Context, url string) (*fetch.Page, error) {
	f.calls++
	page, ok := f.pages[url]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fetch", "get", url+" returned 404", nil)
	}
	return page, nil
}

func scoring(score float64, calls *int) analysis.Analyzer {
	return analysis.Func(func(_ context.Context, subject analysis.Subject, policy analysis.Policy) (analysis.Result, error) {
		if calls != nil {
			*calls++
		}
		return analysis.Verdict(score, "fit for "+subject.Title, policy), nil
	})
}

type fixture struct {
	cfg     *config.Config
	store   *queue.Store
	mgr     *workflow.Manager
	ring    *events.Ring
	fetcher *fakeFetcher
}

func newFixture(t *testing.T, analyzer analysis.Analyzer, research bool) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Filter.ExcludedCompanies = []string{"Evil Corp"}
	store := testsupport.MustOpenStore(t, cfg)
	ring := events.NewRing(32)
	fetcher := &fakeFetcher{pages: map[string]*fetch.Page{}}
	mgr := workflow.NewManager(cfg, store, logging.NewNop(), workflow.WithEventSink(ring))
	mgr.ConfigureStages(workflow.StageSet{
		queue.ItemTypeListing: listing.Stages(listing.Dependencies{
			Fetcher:               fetcher,
			FilterPolicy:          filter.PolicyFromConfig(cfg.Filter),
			Analyzer:              analyzer,
			AnalysisPolicy:        analysis.Policy{MinScore: cfg.Analysis.MinScore},
			Store:                 store,
			Logger:                logging.NewNop(),
			ResearchOrganizations: research,
		}),
	})
	return &fixture{cfg: cfg, store: store, mgr: mgr, ring: ring, fetcher: fetcher}
}

func (f *fixture) root(t *testing.T, url string, pre *filter.Candidate) *queue.Item {
	t.Helper()
	item := queue.NewRoot(queue.RootSpec{
		Type:          queue.ItemTypeListing,
		URL:           url,
		SubStage:      queue.StageScrape,
		MaxSpawnDepth: f.cfg.Pipeline.MaxSpawnDepth,
		MaxRetries:    f.cfg.Pipeline.MaxRetries,
	})
	if pre != nil {
		if err := item.SetState(queue.StateListing, pre); err != nil {
			t.Fatalf("SetState: %v", err)
		}
	}
	if err := f.store.Create(context.Background(), item); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return item
}

func TestListingScrapedAnalyzedAndSaved(t *testing.T) {
	f := newFixture(t, scoring(85, nil), false)
	url := "https://jobs.example.com/backend"
	f.fetcher.pages[url] = &fetch.Page{
		URL:      url,
		Title:    "Backend Engineer",
		SiteName: "Acme",
		Text:     "Acme is hiring a backend engineer to build Go services. Fully remote, full-time.",
		Meta:     map[string]string{},
	}
	root := f.root(t, url, nil)

	final, err := f.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", final.Status, final.ResultMessage)
	}
	if !strings.Contains(final.ResultMessage, "score 85") {
		t.Fatalf("result message = %q", final.ResultMessage)
	}
	for _, key := range []string{queue.StateListing, queue.StateFilter, queue.StateAnalysis, queue.StateMatch} {
		if !final.PipelineState.Has(key) {
			t.Fatalf("state %q missing", key)
		}
	}
	var scraped filter.Candidate
	if _, err := final.PipelineState.Decode(queue.StateListing, &scraped); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if scraped.Company != "Acme" || scraped.WorkMode != "remote" {
		t.Fatalf("unexpected scraped listing %+v", scraped)
	}

	matches, err := f.store.ListMatches(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(matches) != 1 || matches[0].ItemID != root.ID || matches[0].Score != 85 || matches[0].Title != "Backend Engineer" {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestPreloadedListingSkipsFetch(t *testing.T) {
	f := newFixture(t, scoring(90, nil), false)
	pre := &filter.Candidate{Title: "Go Developer", Company: "Initech", URL: "https://jobs.example.com/go", Description: "Write Go all day."}
	root := f.root(t, pre.URL, pre)

	final, err := f.mgr.Drive(context.Background(), root.ID, queue.StageAnalyze)
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusPending || final.SubStage != queue.StageAnalyze {
		t.Fatalf("expected pending at analyze, got %s/%s", final.Status, final.SubStage)
	}
	if f.fetcher.calls != 0 {
		t.Fatalf("pre-loaded listing should not be fetched, got %d calls", f.fetcher.calls)
	}
}

func TestFilteredListingNeverReachesAnalysis(t *testing.T) {
	var analyzed int
	f := newFixture(t, scoring(99, &analyzed), false)
	pre := &filter.Candidate{Title: "Engineer", Company: "Evil Corp", URL: "https://evil.example/jobs/1", Description: "We do evil things with Go."}
	root := f.root(t, pre.URL, pre)

	final, err := f.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusFiltered || final.SubStage != queue.StageFilter {
		t.Fatalf("expected filtered at filter, got %s/%s", final.Status, final.SubStage)
	}
	if !strings.Contains(strings.ToLower(final.ResultMessage), "evil corp") {
		t.Fatalf("expected company rejection reason, got %q", final.ResultMessage)
	}
	if analyzed != 0 {
		t.Fatalf("analyzer called %d times for a filtered listing", analyzed)
	}
	if !final.PipelineState.Has(queue.StateFilter) {
		t.Fatal("filter verdict not recorded")
	}
	got := f.ring.Recent(0)
	if len(got) != 1 || got[0].Status != queue.StatusFiltered {
		t.Fatalf("expected one filtered event, got %+v", got)
	}
}

func TestLowScoreIsSkipped(t *testing.T) {
	f := newFixture(t, scoring(40, nil), false)
	pre := &filter.Candidate{Title: "Engineer", Company: "Acme", URL: "https://jobs.example.com/low", Description: "Generic engineering role."}
	root := f.root(t, pre.URL, pre)

	final, err := f.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusSkipped || final.ResultMessage != "score 40 below minimum 70" {
		t.Fatalf("unexpected final item %s: %q", final.Status, final.ResultMessage)
	}
	matches, _ := f.store.ListMatches(context.Background(), 0)
	if len(matches) != 0 {
		t.Fatalf("skipped listing saved a match: %+v", matches)
	}
}

func TestMissingPageFailsWithoutRetry(t *testing.T) {
	f := newFixture(t, scoring(90, nil), false)
	root := f.root(t, "https://jobs.example.com/gone", nil)

	final, err := f.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusFailed || final.RetryCount != 0 {
		t.Fatalf("expected fatal failure without retries, got %s retry=%d", final.Status, final.RetryCount)
	}
}

func TestAnalyzerOutageIsRetried(t *testing.T) {
	outage := analysis.Func(func(context.Context, analysis.Subject, analysis.Policy) (analysis.Result, error) {
		return analysis.Result{}, services.Wrap(services.ErrTransient, "llm", "complete", "503", errors.New("unavailable"))
	})
	f := newFixture(t, outage, false)
	pre := &filter.Candidate{Title: "Engineer", Company: "Acme", URL: "https://jobs.example.com/retry", Description: "Role."}
	root := f.root(t, pre.URL, pre)

	item, err := f.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if item.Status != queue.StatusPending || item.SubStage != queue.StageAnalyze || item.RetryCount != 1 {
		t.Fatalf("expected retry at analyze, got %s/%s retry=%d", item.Status, item.SubStage, item.RetryCount)
	}
}

func TestSaveRequestsOrganizationResearch(t *testing.T) {
	f := newFixture(t, scoring(80, nil), true)
	pre := &filter.Candidate{Title: "SRE", Company: "Globex", CompanyURL: "https://globex.example", URL: "https://jobs.example.com/sre", Description: "Keep Globex running."}
	root := f.root(t, pre.URL, pre)

	if _, err := f.mgr.Drive(context.Background(), root.ID, ""); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	items, err := f.store.Lineage(context.Background(), root.TrackingID)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected root plus organization child, got %d", len(items))
	}
	child := items[1]
	if child.Type != queue.ItemTypeOrganization || child.URL != "https://globex.example" || child.OrganizationName != "Globex" || child.SubStage != queue.StageFetch {
		t.Fatalf("unexpected child %+v", child)
	}
	if child.SpawnDepth != 1 || child.Ancestry[0].SubStage != queue.StageSave {
		t.Fatalf("child lineage not stamped from save stage: %+v", child.Ancestry)
	}
}

func TestKnownOrganizationIsStamped(t *testing.T) {
	f := newFixture(t, scoring(80, nil), true)
	orgID, err := f.store.UpsertOrganization(context.Background(), &queue.Organization{Name: "Globex"})
	if err != nil {
		t.Fatalf("UpsertOrganization: %v", err)
	}
	pre := &filter.Candidate{Title: "SRE", Company: "GLOBEX", CompanyURL: "https://globex.example", URL: "https://jobs.example.com/sre2", Description: "Keep Globex running."}
	root := f.root(t, pre.URL, pre)

	final, err := f.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.OrganizationID != orgID {
		t.Fatalf("organization id = %q, want %q", final.OrganizationID, orgID)
	}
	items, _ := f.store.Lineage(context.Background(), root.TrackingID)
	if len(items) != 1 {
		t.Fatalf("known organization should not spawn research, got %d items", len(items))
	}
}
