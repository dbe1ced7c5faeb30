package organization_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"jobsift/internal/analysis"
	"jobsift/internal/config"
	"jobsift/internal/fetch"
	"jobsift/internal/logging"
	"jobsift/internal/organization"
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

func fixedScore(score float64) analysis.Analyzer {
	return analysis.Func(func(_ context.Context, _ analysis.Subject, policy analysis.Policy) (analysis.Result, error) {
		return analysis.Verdict(score, "employer fit", policy), nil
	})
}

func setup(t *testing.T, fetcher organization.PageFetcher, analyzer analysis.Analyzer, minScore float64) (*config.Config, *queue.Store, *workflow.Manager) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{
		queue.ItemTypeOrganization: organization.Stages(organization.Dependencies{
			Fetcher:         fetcher,
			Analyzer:        analyzer,
			AnalysisPolicy:  analysis.Policy{MinScore: minScore},
			Store:           store,
			Logger:          logging.NewNop(),
			DiscoverSources: true,
		}),
	})
	return cfg, store, mgr
}

func acmeHome() *fetch.Page {
	return &fetch.Page{
		URL:         "https://acme.example",
		FinalURL:    "https://www.acme.example/",
		Title:       "Acme | Rockets for everyone",
		Description: "Acme builds reusable rockets.",
		Text:        "Welcome to Acme. We build rockets.",
		Links: []fetch.Link{
			{URL: "https://www.acme.example/about", Text: "About"},
			{URL: "https://www.acme.example/careers", Text: "Join the team"},
		},
		Meta: map[string]string{},
	}
}

func TestExtractProfile(t *testing.T) {
	got := organization.ExtractProfile(acmeHome(), "")
	want := organization.Profile{
		Name:        "Acme",
		Website:     "https://www.acme.example",
		Description: "Acme builds reusable rockets.",
		CareersURL:  "https://www.acme.example/careers",
		Text:        "Welcome to Acme. We build rockets.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}

	named := organization.ExtractProfile(acmeHome(), "Acme Rockets Inc")
	if named.Name != "Acme Rockets Inc" {
		t.Fatalf("known name should win, got %q", named.Name)
	}
}

func TestOrganizationPipelineSavesAndRequestsDiscovery(t *testing.T) {
	cfg, store, mgr := setup(t, pages{"https://acme.example": acmeHome()}, fixedScore(75), 50)
	root := testsupport.NewRoot(t, store, cfg, queue.ItemTypeOrganization, "https://acme.example")

	final, err := mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusSuccess || final.ResultMessage != "saved organization Acme" {
		t.Fatalf("unexpected final item %s: %q", final.Status, final.ResultMessage)
	}
	if final.OrganizationID == "" {
		t.Fatal("organization id not stamped on item")
	}
	org, err := store.GetOrganization(context.Background(), final.OrganizationID)
	if err != nil || org == nil {
		t.Fatalf("GetOrganization: %v %v", org, err)
	}
	if org.Score != 75 || org.CareersURL != "https://www.acme.example/careers" {
		t.Fatalf("unexpected organization %+v", org)
	}

	items, err := store.Lineage(context.Background(), root.TrackingID)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected discovery follow-up, got %d items", len(items))
	}
	child := items[1]
	if child.Type != queue.ItemTypeSourceDiscovery || child.SubStage != queue.StageDetect || child.OrganizationID != final.OrganizationID {
		t.Fatalf("unexpected discovery child %+v", child)
	}
}

func TestOrganizationBelowThresholdIsSkipped(t *testing.T) {
	cfg, store, mgr := setup(t, pages{"https://acme.example": acmeHome()}, fixedScore(20), 50)
	root := testsupport.NewRoot(t, store, cfg, queue.ItemTypeOrganization, "https://acme.example")

	final, err := mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusSkipped || final.SubStage != queue.StageAnalyze {
		t.Fatalf("expected skipped at analyze, got %s/%s", final.Status, final.SubStage)
	}
	if org, _ := store.FindOrganization(context.Background(), "Acme"); org != nil {
		t.Fatalf("skipped organization was saved: %+v", org)
	}
}

func TestOrganizationUpsertIsIdempotent(t *testing.T) {
	cfg, store, mgr := setup(t, pages{"https://acme.example": acmeHome()}, fixedScore(90), 0)
	first := testsupport.NewRoot(t, store, cfg, queue.ItemTypeOrganization, "https://acme.example")
	second := testsupport.NewRoot(t, store, cfg, queue.ItemTypeOrganization, "https://acme.example")

	a, err := mgr.Drive(context.Background(), first.ID, "")
	if err != nil {
		t.Fatalf("Drive first: %v", err)
	}
	b, err := mgr.Drive(context.Background(), second.ID, "")
	if err != nil {
		t.Fatalf("Drive second: %v", err)
	}
	if a.OrganizationID == "" || a.OrganizationID != b.OrganizationID {
		t.Fatalf("expected one organization record, got %q and %q", a.OrganizationID, b.OrganizationID)
	}
}
