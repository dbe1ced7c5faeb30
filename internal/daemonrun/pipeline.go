package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"jobsift/internal/analysis"
	"jobsift/internal/config"
	"jobsift/internal/discovery"
	"jobsift/internal/events"
	"jobsift/internal/fetch"
	"jobsift/internal/filter"
	"jobsift/internal/listing"
	"jobsift/internal/logging"
	"jobsift/internal/notifications"
	"jobsift/internal/organization"
	"jobsift/internal/queue"
	"jobsift/internal/scheduler"
	"jobsift/internal/services/llm"
	"jobsift/internal/workflow"
)

const eventRingSize = 256

// Pipeline is the fully wired processing stack shared by the daemon and the
// one-shot CLI commands.
type Pipeline struct {
	Manager   *workflow.Manager
	Scheduler *scheduler.Scheduler
	Fetcher   *fetch.Registry
	Notifier  notifications.Service
	Events    *events.Ring
	Metrics   *prometheus.Registry

	closers []func() error
}

// NewPipeline builds the event sinks, adapters, analyzer, stage handlers,
// workflow manager, and scheduler for cfg over store.
func NewPipeline(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("pipeline requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	p := &Pipeline{
		Notifier: notifications.NewService(cfg),
		Events:   events.NewRing(eventRingSize),
		Metrics:  prometheus.NewRegistry(),
	}

	sink, err := p.buildSinks(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	p.Fetcher = fetch.NewRegistry(fetch.NewClient(cfg.Fetch))
	analyzer := analysis.NewLLMAnalyzer(llm.NewClient(llm.ConfigFrom(cfg.LLM)), logger)

	p.Manager = workflow.NewManager(cfg, store, logger, workflow.WithEventSink(sink))
	p.Manager.ConfigureStages(StageSet(cfg, store, p.Fetcher, analyzer, logger))

	poller := scheduler.NewListingPoller(cfg, p.Fetcher, store, p.Manager, logger)
	p.Scheduler, err = scheduler.New(cfg, store, poller, logger, scheduler.WithNotifier(p.Notifier))
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// StageSet registers the listing, organization, and source discovery
// handlers.
func StageSet(cfg *config.Config, store *queue.Store, fetcher *fetch.Registry, analyzer analysis.Analyzer, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		queue.ItemTypeListing: listing.Stages(listing.Dependencies{
			Fetcher:               fetcher,
			Filter:                filter.New(),
			FilterPolicy:          filter.PolicyFromConfig(cfg.Filter),
			Analyzer:              analyzer,
			AnalysisPolicy:        analysis.Policy{MinScore: cfg.Analysis.MinScore, Profile: cfg.Analysis.Profile},
			Store:                 store,
			Logger:                logger,
			ResearchOrganizations: cfg.Analysis.ResearchOrganizations,
		}),
		queue.ItemTypeOrganization: organization.Stages(organization.Dependencies{
			Fetcher:         fetcher,
			Analyzer:        analyzer,
			AnalysisPolicy:  analysis.Policy{MinScore: cfg.Analysis.OrganizationMinScore, Profile: cfg.Analysis.Profile},
			Store:           store,
			Logger:          logger,
			DiscoverSources: cfg.Analysis.DiscoverSources,
		}),
		queue.ItemTypeSourceDiscovery: discovery.Stages(discovery.Dependencies{
			Fetcher: fetcher,
			Lister:  fetcher,
			Store:   store,
			Logger:  logger,
		}),
	}
}

func (p *Pipeline) buildSinks(cfg *config.Config, store *queue.Store, logger *slog.Logger) (events.Sink, error) {
	sinks := events.Multi{
		events.NewLogSink(logger),
		p.Events,
		notifications.NewSink(p.Notifier, cfg.Notifications),
	}

	if cfg.Events.Metrics {
		metrics, err := events.NewMetricsSink(p.Metrics)
		if err != nil {
			return nil, fmt.Errorf("register event metrics: %w", err)
		}
		sinks = append(sinks, metrics)
		for _, c := range []prometheus.Collector{
			events.NewQueueCollector(store),
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		} {
			if err := p.Metrics.Register(c); err != nil {
				return nil, fmt.Errorf("register collector: %w", err)
			}
		}
	}

	if cfg.Events.NATSURL != "" {
		natsSink, err := events.DialNATS(cfg.Events.NATSURL, cfg.Events.NATSSubject)
		if err != nil {
			logging.WarnWithContext(logger, "event bus unavailable; continuing without NATS", "nats_unavailable",
				logging.Error(err),
				logging.ErrorHint("check events.nats_url and that the NATS server is running"),
				logging.Impact("terminal events are not published to the bus"),
			)
		} else {
			sinks = append(sinks, natsSink)
			p.closers = append(p.closers, natsSink.Close)
		}
	}
	return sinks, nil
}

// Close releases connections owned by the pipeline.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, closeFn := range p.closers {
		errs = append(errs, closeFn())
	}
	p.closers = nil
	return errors.Join(errs...)
}
