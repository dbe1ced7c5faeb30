package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jobsift/internal/config"
	"jobsift/internal/lineage"
	"jobsift/internal/queue"
	"jobsift/internal/services"
	"jobsift/internal/stage"
	"jobsift/internal/testsupport"
	"jobsift/internal/workflow"
)

func mustOpen(t *testing.T, cfg *config.Config) *queue.Store {
	return testsupport.MustOpenStore(t, cfg)
}

func TestDriveInPlaceRunsEveryStage(t *testing.T) {
	log := &callLog{}
	h := newHarness(t, testsupport.NewConfig(t), listingStages(log, nil))
	root := testsupport.NewRoot(t, h.store, h.cfg, queue.ItemTypeListing, "https://jobs.example.com/1")

	final, err := h.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.ID != root.ID || final.Status != queue.StatusSuccess || final.SubStage != queue.StageSave {
		t.Fatalf("unexpected final item: %+v", final)
	}
	if diff := cmp.Diff(queue.Stages(queue.ItemTypeListing), log.snapshot()); diff != "" {
		t.Fatalf("stage order mismatch (-want +got):\n%s", diff)
	}
	for _, key := range []string{"scrape", "filter", "analyze", "save"} {
		if !final.PipelineState.Has(key) {
			t.Fatalf("state key %q not persisted", key)
		}
	}
	got := h.events.Recent(0)
	if len(got) != 1 || got[0].Status != queue.StatusSuccess || got[0].ID != root.ID {
		t.Fatalf("expected one success event, got %+v", got)
	}
}

func TestFilteredOutcomeEndsLineage(t *testing.T) {
	log := &callLog{}
	filterStage := stage.Func(func(_ context.Context, item *queue.Item) (stage.Outcome, error) {
		log.record(item.SubStage)
		return stage.Filtered("6 strikes (threshold: 5)"), nil
	})
	h := newHarness(t, testsupport.NewConfig(t), listingStages(log, workflow.TypeStages{queue.StageFilter: filterStage}))
	root := testsupport.NewRoot(t, h.store, h.cfg, queue.ItemTypeListing, "https://jobs.example.com/2")

	final, err := h.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusFiltered || final.ResultMessage != "6 strikes (threshold: 5)" {
		t.Fatalf("unexpected final item: %+v", final)
	}
	if diff := cmp.Diff([]queue.SubStage{queue.StageScrape, queue.StageFilter}, log.snapshot()); diff != "" {
		t.Fatalf("stages after filter must not run (-want +got):\n%s", diff)
	}
	if ev := h.events.Recent(1); len(ev) != 1 || ev[0].Status != queue.StatusFiltered || ev[0].SubStage != queue.StageFilter {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestBelowThresholdOutcomeSkips(t *testing.T) {
	analyze := stage.Func(func(context.Context, *queue.Item) (stage.Outcome, error) {
		return stage.BelowThreshold("score 40 below 70"), nil
	})
	h := newHarness(t, testsupport.NewConfig(t), listingStages(&callLog{}, workflow.TypeStages{queue.StageAnalyze: analyze}))
	root := testsupport.NewRoot(t, h.store, h.cfg, queue.ItemTypeListing, "https://jobs.example.com/3")

	final, err := h.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusSkipped || final.SubStage != queue.StageAnalyze {
		t.Fatalf("unexpected final item: %+v", final)
	}
}

func TestRecoverableErrorRetriesUntilBudgetSpent(t *testing.T) {
	attempts := 0
	flaky := stage.Func(func(context.Context, *queue.Item) (stage.Outcome, error) {
		attempts++
		return stage.Outcome{}, services.Wrap(services.ErrTransient, "filter", "fetch", "upstream 503", nil)
	})
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(3))
	h := newHarness(t, cfg, listingStages(&callLog{}, workflow.TypeStages{queue.StageScrape: flaky}))
	root := testsupport.NewRoot(t, h.store, cfg, queue.ItemTypeListing, "https://jobs.example.com/4")
	ctx := context.Background()

	for pass := 1; pass <= 2; pass++ {
		if ok, err := h.mgr.ProcessNext(ctx, queue.ItemTypeListing); err != nil || !ok {
			t.Fatalf("pass %d: ok=%v err=%v", pass, ok, err)
		}
		item := h.get(t, root.ID)
		if item.Status != queue.StatusPending || item.RetryCount != pass || item.SubStage != queue.StageScrape {
			t.Fatalf("pass %d: unexpected item %+v", pass, item)
		}
		if !strings.Contains(item.ErrorDetails, "upstream 503") {
			t.Fatalf("pass %d: error details not recorded: %q", pass, item.ErrorDetails)
		}
	}
	if _, err := h.mgr.ProcessNext(ctx, queue.ItemTypeListing); err != nil {
		t.Fatalf("final pass: %v", err)
	}
	item := h.get(t, root.ID)
	if item.Status != queue.StatusFailed || item.RetryCount != 3 {
		t.Fatalf("expected failed after 3 attempts, got %+v", item)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if ok, _ := h.mgr.ProcessNext(ctx, queue.ItemTypeListing); ok {
		t.Fatal("failed item must not be claimed again")
	}
}

func TestRetryCountNeverExceedsZeroBudget(t *testing.T) {
	flaky := stage.Func(func(context.Context, *queue.Item) (stage.Outcome, error) {
		return stage.Outcome{}, services.Wrap(services.ErrTransient, "scrape", "fetch", "upstream 503", nil)
	})
	h := newHarness(t, testsupport.NewConfig(t), listingStages(&callLog{}, workflow.TypeStages{queue.StageScrape: flaky}))
	ctx := context.Background()
	item := &queue.Item{
		Type:          queue.ItemTypeListing,
		SubStage:      queue.StageScrape,
		URL:           "https://jobs.example.com/no-budget",
		TrackingID:    "no-budget",
		MaxSpawnDepth: 10,
	}
	if err := h.store.Create(ctx, item); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ok, err := h.mgr.ProcessNext(ctx, queue.ItemTypeListing); err != nil || !ok {
		t.Fatalf("ProcessNext: ok=%v err=%v", ok, err)
	}
	got := h.get(t, item.ID)
	if got.Status != queue.StatusFailed || got.RetryCount != 0 {
		t.Fatalf("expected failed with retry count 0, got %+v", got)
	}
	if got.ResultMessage != "scrape failed after 1 attempts" {
		t.Fatalf("unexpected result message %q", got.ResultMessage)
	}
}

func TestFatalErrorFailsWithoutRetry(t *testing.T) {
	broken := stage.Func(func(context.Context, *queue.Item) (stage.Outcome, error) {
		return stage.Outcome{}, services.Wrap(services.ErrNotFound, "scrape", "fetch", "listing removed", nil)
	})
	h := newHarness(t, testsupport.NewConfig(t), listingStages(&callLog{}, workflow.TypeStages{queue.StageScrape: broken}))
	root := testsupport.NewRoot(t, h.store, h.cfg, queue.ItemTypeListing, "https://jobs.example.com/5")

	final, err := h.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusFailed || final.RetryCount != 0 {
		t.Fatalf("unexpected final item: %+v", final)
	}
	if ev := h.events.Recent(1); len(ev) != 1 || ev[0].Status != queue.StatusFailed {
		t.Fatalf("expected failure event, got %+v", ev)
	}
}

func TestPanickingStageIsRetried(t *testing.T) {
	calls := 0
	panicky := stage.Func(func(_ context.Context, item *queue.Item) (stage.Outcome, error) {
		calls++
		if calls == 1 {
			panic("nil listing")
		}
		return stage.Advance(""), nil
	})
	h := newHarness(t, testsupport.NewConfig(t), listingStages(&callLog{}, workflow.TypeStages{queue.StageFilter: panicky}))
	root := testsupport.NewRoot(t, h.store, h.cfg, queue.ItemTypeListing, "https://jobs.example.com/6")
	ctx := context.Background()

	retried, err := h.mgr.Drive(ctx, root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if retried.Status != queue.StatusPending || retried.RetryCount != 1 || retried.SubStage != queue.StageFilter {
		t.Fatalf("panic should schedule a retry, got %+v", retried)
	}
	final, err := h.mgr.Drive(ctx, root.ID, "")
	if err != nil {
		t.Fatalf("second Drive: %v", err)
	}
	if final.Status != queue.StatusSuccess {
		t.Fatalf("expected success after retry, got %+v", final)
	}
}

func TestStageTimeoutIsRecoverable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.StageTimeoutSeconds = 1
	slow := stage.Func(func(ctx context.Context, _ *queue.Item) (stage.Outcome, error) {
		<-ctx.Done()
		return stage.Outcome{}, ctx.Err()
	})
	h := newHarness(t, cfg, listingStages(&callLog{}, workflow.TypeStages{queue.StageScrape: slow}))
	root := testsupport.NewRoot(t, h.store, cfg, queue.ItemTypeListing, "https://jobs.example.com/7")

	item, err := h.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if item.Status != queue.StatusPending || item.RetryCount != 1 {
		t.Fatalf("timeout should schedule a retry, got %+v", item)
	}
	if !strings.Contains(item.ErrorDetails, services.ErrTimeout.Error()) {
		t.Fatalf("error details should mention timeout: %q", item.ErrorDetails)
	}
}

func TestMissingHandlerFailsItem(t *testing.T) {
	log := &callLog{}
	set := workflow.StageSet{queue.ItemTypeListing: workflow.TypeStages{queue.StageScrape: advancing(log)}}
	h := newHarness(t, testsupport.NewConfig(t), set)
	root := testsupport.NewRoot(t, h.store, h.cfg, queue.ItemTypeListing, "https://jobs.example.com/8")

	final, err := h.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusFailed || final.SubStage != queue.StageFilter || final.RetryCount != 0 {
		t.Fatalf("unexpected final item: %+v", final)
	}
}

func TestSpawnModeContinuesInChild(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStaging(string(queue.ItemTypeListing), config.StagingSpawn))
	h := newHarness(t, cfg, listingStages(&callLog{}, nil))
	root := testsupport.NewRoot(t, h.store, cfg, queue.ItemTypeListing, "https://jobs.example.com/9")
	ctx := context.Background()

	atAnalyze, err := h.mgr.Drive(ctx, root.ID, queue.StageAnalyze)
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if atAnalyze.Status != queue.StatusPending || atAnalyze.SubStage != queue.StageAnalyze || atAnalyze.SpawnDepth != 2 {
		t.Fatalf("unexpected continuation: %+v", atAnalyze)
	}
	if !atAnalyze.PipelineState.Has("scrape") || !atAnalyze.PipelineState.Has("filter") {
		t.Fatalf("child should inherit pipeline state, got keys %v", atAnalyze.PipelineState.Keys())
	}

	items, err := h.store.Lineage(ctx, root.TrackingID)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	var got []string
	for _, item := range items {
		got = append(got, string(item.SubStage)+":"+string(item.Status))
	}
	want := []string{"scrape:success", "filter:success", "analyze:pending"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lineage mismatch (-want +got):\n%s", diff)
	}
	if items[0].ResultMessage != "advanced to next stage" {
		t.Fatalf("root result message = %q", items[0].ResultMessage)
	}
	wantAncestry := []queue.Ancestor{items[0].AsAncestor(), items[1].AsAncestor()}
	if diff := cmp.Diff(wantAncestry, atAnalyze.Ancestry); diff != "" {
		t.Fatalf("ancestry mismatch (-want +got):\n%s", diff)
	}
	if len(h.events.Recent(0)) != 2 {
		t.Fatalf("each advanced item emits a terminal event, got %d", len(h.events.Recent(0)))
	}
}

func TestSpawnModeRejectionIsRecordedOnParent(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStaging(string(queue.ItemTypeListing), config.StagingSpawn),
		testsupport.WithMaxSpawnDepth(1),
	)
	h := newHarness(t, cfg, listingStages(&callLog{}, nil))
	root := testsupport.NewRoot(t, h.store, cfg, queue.ItemTypeListing, "https://jobs.example.com/10")

	final, err := h.mgr.Drive(context.Background(), root.ID, "")
	if err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if final.Status != queue.StatusSuccess || final.SubStage != queue.StageFilter || final.SpawnDepth != 1 {
		t.Fatalf("unexpected final item: %+v", final)
	}
	if !strings.Contains(final.ResultMessage, "continuation blocked (depth)") {
		t.Fatalf("rejection not recorded: %q", final.ResultMessage)
	}
}

func TestFollowUpsGoThroughGuard(t *testing.T) {
	orgTarget := lineage.Target{URL: "https://acme.example", Type: queue.ItemTypeOrganization, SubStage: queue.StageFetch}
	save := stage.Func(func(context.Context, *queue.Item) (stage.Outcome, error) {
		fu := stage.FollowUp{Target: orgTarget, Fields: lineage.ChildFields{OrganizationName: "Acme"}}
		return stage.Done("saved", fu, fu), nil
	})
	h := newHarness(t, testsupport.NewConfig(t), listingStages(&callLog{}, workflow.TypeStages{queue.StageSave: save}))
	root := testsupport.NewRoot(t, h.store, h.cfg, queue.ItemTypeListing, "https://jobs.example.com/11")
	ctx := context.Background()

	if _, err := h.mgr.Drive(ctx, root.ID, ""); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	orgs, err := h.store.Query(ctx, queue.Filter{Type: queue.ItemTypeOrganization})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(orgs) != 1 {
		t.Fatalf("duplicate follow-up should be rejected, got %d organization items", len(orgs))
	}
	org := orgs[0]
	if org.TrackingID != root.TrackingID || org.SpawnDepth != 1 || org.OrganizationName != "Acme" {
		t.Fatalf("unexpected follow-up: %+v", org)
	}
	if org.Ancestry[0].SubStage != queue.StageSave {
		t.Fatalf("parent ancestry entry should record the save stage, got %+v", org.Ancestry[0])
	}
}

func TestProcessOneRequiresClaim(t *testing.T) {
	h := newHarness(t, testsupport.NewConfig(t), listingStages(&callLog{}, nil))
	root := testsupport.NewRoot(t, h.store, h.cfg, queue.ItemTypeListing, "https://jobs.example.com/12")
	if _, err := h.mgr.ProcessOne(context.Background(), root); !errors.Is(err, queue.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict for unclaimed item, got %v", err)
	}
}

func TestManagerStartProcessesInBackground(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.QueuePollInterval = 0
	h := newHarness(t, cfg, listingStages(&callLog{}, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.mgr.Stop()
	if err := h.mgr.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	root := testsupport.NewRoot(t, h.store, cfg, queue.ItemTypeListing, "https://jobs.example.com/13")
	deadline := time.Now().Add(5 * time.Second)
	for {
		item := h.get(t, root.ID)
		if item.Status == queue.StatusSuccess {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("item not processed in time: %+v", item)
		}
		time.Sleep(20 * time.Millisecond)
	}

	status := h.mgr.Status(ctx)
	if !status.Running || status.Terminal[queue.StatusSuccess] != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(status.Lanes) != 1 || status.Lanes[0].Type != queue.ItemTypeListing || status.Lanes[0].Mode != config.StagingInPlace {
		t.Fatalf("unexpected lanes: %+v", status.Lanes)
	}
}

func TestStartWithoutStagesFails(t *testing.T) {
	h := newHarness(t, testsupport.NewConfig(t), nil)
	if err := h.mgr.Start(context.Background()); err == nil {
		t.Fatal("expected error when no stages are configured")
	}
}
