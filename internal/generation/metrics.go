package generation

import (
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idol_generation_requests_total",
			Help: "Total number of requests to the text generation provider.",
		},
		[]string{"provider", "purpose", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idol_generation_request_duration_seconds",
			Help:    "Histogram of text generation request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "purpose"},
	)
	promptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idol_generation_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"provider", "purpose"},
	)
	completionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idol_generation_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"provider", "purpose"},
	)
)

// Статусы запросов для метрики requestsTotal.
const (
	statusSuccess   = "success"
	statusTransport = "error_transport"
	statusSafety    = "error_safety"
	statusEmpty     = "error_empty"
)

func observe(provider, purpose, status string, started time.Time) {
	requestsTotal.WithLabelValues(provider, purpose, status).Inc()
	if status == statusSuccess {
		requestDuration.WithLabelValues(provider, purpose).Observe(time.Since(started).Seconds())
	}
}

func observeTokens(provider, purpose string, prompt, completion int) {
	if prompt > 0 {
		promptTokens.WithLabelValues(provider, purpose).Observe(float64(prompt))
	}
	if completion > 0 {
		completionTokens.WithLabelValues(provider, purpose).Observe(float64(completion))
	}
}

// EstimateTokens - приблизительное число токенов, когда провайдер не вернул usage.
// Для незнакомых tiktoken моделей используется cl100k_base.
func EstimateTokens(model, text string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}
	return len(enc.Encode(text, nil, nil))
}
