package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const jobName = "idol_worker"

var (
	tasksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idol_worker_tasks_received_total",
			Help: "Total number of tasks received by the worker, partitioned by task kind.",
		},
		[]string{"kind"},
	)
	turnOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idol_worker_turn_outcomes_total",
			Help: "Applied negotiation turns, partitioned by outcome (generated, fallback, duplicate).",
		},
		[]string{"outcome"},
	)
	fallbackReasons = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idol_worker_fallback_reasons_total",
			Help: "Fallback replies, partitioned by the generation failure that caused them.",
		},
		[]string{"reason"},
	)
	artifactsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idol_worker_artifacts_total",
			Help: "Enrichment task results, partitioned by status.",
		},
		[]string{"status"},
	)
	turnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "idol_worker_turn_duration_seconds",
			Help:    "Time from task receipt to committed reply.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
	sweptTurns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idol_worker_swept_turns_total",
			Help: "Stale turns answered by the sweeper with the fallback reply.",
		},
	)
)

// MetricsPusher периодически отправляет метрики воркера в Pushgateway.
type MetricsPusher struct {
	pusher   *push.Pusher
	interval time.Duration
	logger   *zap.Logger
}

// NewMetricsPusher создает pusher с группировкой по инстансу и проверяет соединение первой отправкой.
func NewMetricsPusher(url string, interval time.Duration, logger *zap.Logger) (*MetricsPusher, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	p := push.New(url, jobName).Gatherer(prometheus.DefaultGatherer).Grouping("instance", instanceID)
	if err := p.Push(); err != nil {
		return nil, fmt.Errorf("could not push initial metrics to Pushgateway: %w", err)
	}
	logger.Info("Pushgateway pusher initialized", zap.String("url", url), zap.String("instance", instanceID))
	return &MetricsPusher{pusher: p, interval: interval, logger: logger.Named("MetricsPusher")}, nil
}

// Run отправляет метрики до отмены ctx, затем удаляет группу инстанса.
func (m *MetricsPusher) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := m.pusher.Delete(); err != nil {
				m.logger.Warn("Failed to delete metrics from Pushgateway", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := m.pusher.Push(); err != nil {
				m.logger.Warn("Failed to push metrics", zap.Error(err))
			}
		}
	}
}
