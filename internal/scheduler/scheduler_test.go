package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jobsift/internal/config"
	"jobsift/internal/logging"
	"jobsift/internal/notifications"
	"jobsift/internal/queue"
	"jobsift/internal/scheduler"
	"jobsift/internal/testsupport"
)

type recordingPoller struct {
	mu      sync.Mutex
	polled  []string
	results map[string]scheduler.PollResult
	errs    map[string]error
}

func (p *recordingPoller) Poll(_ context.Context, src *queue.Source) (scheduler.PollResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polled = append(p.polled, src.Name)
	return p.results[src.Name], p.errs[src.Name]
}

func seedSources(t *testing.T, store *queue.Store) {
	t.Helper()
	at := func(minute int) *time.Time {
		v := time.Date(2026, 3, 1, 10, minute, 0, 0, time.UTC)
		return &v
	}
	for _, src := range []*queue.Source{
		{Name: "A", URL: "https://a.example/jobs", Type: "rss", Enabled: true},
		{Name: "B", URL: "https://b.example/jobs", Type: "rss", Enabled: true, LastScrapedAt: at(10)},
		{Name: "C", URL: "https://c.example/jobs", Type: "rss", Enabled: true, LastScrapedAt: at(5)},
	} {
		if err := store.CreateSource(context.Background(), src); err != nil {
			t.Fatalf("CreateSource %s: %v", src.Name, err)
		}
	}
}

func newScheduler(t *testing.T, cfg *config.Config, store *queue.Store, poller scheduler.Poller, opts ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(cfg, store, poller, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	return s
}

func TestTickPollsOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seedSources(t, store)
	poller := &recordingPoller{results: map[string]scheduler.PollResult{"A": {JobsFound: 4, PotentialMatches: 1}}}

	report, err := newScheduler(t, cfg, store, poller).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "C", "B"}, poller.polled); diff != "" {
		t.Fatalf("poll order mismatch (-want +got):\n%s", diff)
	}
	if !report.Active || report.EarlyExit || report.JobsFound != 4 || report.PotentialMatches != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	sources, err := store.ListSources(context.Background())
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	for _, src := range sources {
		if src.LastScrapedAt == nil {
			t.Fatalf("source %s not stamped", src.Name)
		}
		if src.Name == "A" && (src.TotalJobsFound != 4 || src.TotalJobsMatched != 1) {
			t.Fatalf("counters not recorded for A: %+v", src)
		}
	}
}

func TestTickStopsAtTargetMatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scheduler.TargetMatches = 3
	store := testsupport.MustOpenStore(t, cfg)
	seedSources(t, store)
	poller := &recordingPoller{results: map[string]scheduler.PollResult{
		"A": {JobsFound: 5, PotentialMatches: 2},
		"C": {JobsFound: 5, PotentialMatches: 2},
		"B": {JobsFound: 5, PotentialMatches: 2},
	}}

	sched := newScheduler(t, cfg, store, poller)
	if _, ok := sched.LastReport(); ok {
		t.Fatal("expected no report before the first tick")
	}
	report, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if last, ok := sched.LastReport(); !ok || last.PotentialMatches != report.PotentialMatches {
		t.Fatalf("LastReport = %+v, %v", last, ok)
	}
	if diff := cmp.Diff([]string{"A", "C"}, poller.polled); diff != "" {
		t.Fatalf("expected early exit after two sources (-want +got):\n%s", diff)
	}
	if !report.EarlyExit || report.PotentialMatches != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
	b, _ := store.FindSourceByURL(context.Background(), "https://b.example/jobs")
	if b.LastScrapedAt == nil || !b.LastScrapedAt.Equal(time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC)) {
		t.Fatalf("unpolled source B should keep its scrape time, got %v", b.LastScrapedAt)
	}
}

func TestTickRecordsFailuresAndDisables(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scheduler.DisableAfterFailures = 2
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.CreateSource(context.Background(), &queue.Source{Name: "Flaky", URL: "https://flaky.example/feed", Type: "rss", Enabled: true}); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	poller := &recordingPoller{errs: map[string]error{"Flaky": errors.New("connection reset")}}
	sched := newScheduler(t, cfg, store, poller)

	first, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick 1: %v", err)
	}
	if first.Failures != 1 || first.Sources[0].Disabled {
		t.Fatalf("unexpected first report %+v", first)
	}
	second, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if !second.Sources[0].Disabled || second.Sources[0].Error != "connection reset" {
		t.Fatalf("expected source disabled after two failures: %+v", second.Sources[0])
	}
	third, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick 3: %v", err)
	}
	if len(third.Sources) != 0 {
		t.Fatalf("disabled source polled again: %+v", third.Sources)
	}
}

func TestTickOutsideWindowIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithActiveWindow("09:00", "17:00", "UTC"))
	store := testsupport.MustOpenStore(t, cfg)
	seedSources(t, store)
	poller := &recordingPoller{}
	night := func() time.Time { return time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC) }

	report, err := newScheduler(t, cfg, store, poller, scheduler.WithClock(night)).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Active || len(poller.polled) != 0 {
		t.Fatalf("expected no-op outside window, report %+v polled %v", report, poller.polled)
	}
}

func TestWindowContains(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	day := scheduler.Window{Start: 9 * time.Hour, End: 17 * time.Hour, Location: time.UTC}
	overnight := scheduler.Window{Start: 22 * time.Hour, End: 6 * time.Hour, Location: time.UTC}
	always := scheduler.Window{Start: 8 * time.Hour, End: 8 * time.Hour, Location: time.UTC}
	local := scheduler.Window{Start: 9 * time.Hour, End: 17 * time.Hour, Location: ny}

	at := func(h, m int) time.Time { return time.Date(2026, 6, 1, h, m, 0, 0, time.UTC) }
	cases := []struct {
		name   string
		window scheduler.Window
		t      time.Time
		want   bool
	}{
		{"day start inclusive", day, at(9, 0), true},
		{"day end exclusive", day, at(17, 0), false},
		{"day before", day, at(8, 59), false},
		{"overnight late", overnight, at(23, 30), true},
		{"overnight early", overnight, at(5, 59), true},
		{"overnight midday", overnight, at(12, 0), false},
		{"equal bounds always", always, at(3, 0), true},
		{"timezone shifted", local, at(14, 0), true},
		{"timezone shifted early", local, at(12, 0), false},
	}
	for _, tc := range cases {
		if got := tc.window.Contains(tc.t); got != tc.want {
			t.Fatalf("%s: Contains(%s) = %v, want %v", tc.name, tc.t, got, tc.want)
		}
	}
}

type summaryCapture struct {
	notifications.Service
	summaries []notifications.Summary
}

func (c *summaryCapture) NotifySchedulerSummary(_ context.Context, s notifications.Summary) error {
	c.summaries = append(c.summaries, s)
	return nil
}

func TestTickSendsSummaryWhenEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.SchedulerSummary = true
	store := testsupport.MustOpenStore(t, cfg)
	seedSources(t, store)
	poller := &recordingPoller{
		results: map[string]scheduler.PollResult{"A": {JobsFound: 3, PotentialMatches: 1}},
		errs:    map[string]error{"B": errors.New("boom")},
	}
	capture := &summaryCapture{}

	if _, err := newScheduler(t, cfg, store, poller, scheduler.WithNotifier(capture)).Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(capture.summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(capture.summaries))
	}
	got := capture.summaries[0]
	if got.SourcesPolled != 3 || got.JobsFound != 3 || got.Matches != 1 || got.Failures != 1 {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestNewRejectsBadWindow(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithActiveWindow("9am", "17:00", "UTC"))
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := scheduler.New(cfg, store, &recordingPoller{}, logging.NewNop()); err == nil {
		t.Fatal("expected invalid window to fail construction")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seedSources(t, store)
	poller := &recordingPoller{}
	sched := newScheduler(t, cfg, store, poller)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx, 20*time.Millisecond) }()
	time.Sleep(70 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	poller.mu.Lock()
	defer poller.mu.Unlock()
	if len(poller.polled) < 3 {
		t.Fatalf("expected at least one full tick, polled %v", poller.polled)
	}
}
