package events

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"jobsift/internal/queue"
)

const metricPrefix = "jobsift_"

// MetricsSink counts terminal transitions and observes final-pass durations.
type MetricsSink struct {
	terminal *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewMetricsSink registers the event metrics with reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		terminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "items_terminal_total",
			Help: "Items that reached a terminal status",
		}, []string{"item_type", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "stage_duration_seconds",
			Help:    "Duration of the final processing pass of terminal items",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"item_type", "sub_stage"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "item_retries_total",
			Help: "Retries consumed by items that reached a terminal status",
		}, []string{"item_type"}),
	}
	for _, c := range []prometheus.Collector{s.terminal, s.duration, s.retries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Emit records the event.
func (s *MetricsSink) Emit(_ context.Context, e Event) error {
	itemType := string(e.ItemType)
	s.terminal.WithLabelValues(itemType, string(e.Status)).Inc()
	s.duration.WithLabelValues(itemType, string(e.SubStage)).Observe((time.Duration(e.DurationMs) * time.Millisecond).Seconds())
	if e.RetryCount > 0 {
		s.retries.WithLabelValues(itemType).Add(float64(e.RetryCount))
	}
	return nil
}

// StatsReader is the store surface the queue collector reads.
type StatsReader interface {
	Stats(ctx context.Context) (map[queue.ItemType]map[queue.Status]int, error)
}

var queueDepthDesc = prometheus.NewDesc(
	metricPrefix+"queue_items",
	"Items in the queue by type and status",
	[]string{"item_type", "status"},
	nil,
)

// QueueCollector exposes live queue counts at scrape time.
type QueueCollector struct {
	store   StatsReader
	timeout time.Duration
}

// NewQueueCollector reads counts from store on every scrape.
func NewQueueCollector(store StatsReader) *QueueCollector {
	return &QueueCollector{store: store, timeout: 5 * time.Second}
}

func (c *QueueCollector) Describe(desc chan<- *prometheus.Desc) {
	desc <- queueDepthDesc
}

func (c *QueueCollector) Collect(metrics chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	stats, err := c.store.Stats(ctx)
	if err != nil {
		metrics <- prometheus.NewInvalidMetric(queueDepthDesc, err)
		return
	}
	for itemType, byStatus := range stats {
		for status, count := range byStatus {
			metrics <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(count), string(itemType), string(status))
		}
	}
}
