package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"slotify/pkg/kafka"
)

// Metrics holds producer counters.
type Metrics struct {
	published      atomic.Int64
	failed         atomic.Int64
	durationTotal  atomic.Int64 // Nanoseconds
	lastFailureUTC atomic.Int64 // Unix seconds, 0 when none
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Published          int64  `json:"published"`
	Failed             int64  `json:"failed"`
	AvgPublishDuration string `json:"avgPublishDuration"`
	LastFailure        string `json:"lastFailure,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	m.published.Store(0)
	m.failed.Store(0)
	m.durationTotal.Store(0)
	m.lastFailureUTC.Store(0)
}

// AvgPublishDuration returns the mean duration of successful publishes.
func (m *Metrics) AvgPublishDuration() time.Duration {
	published := m.published.Load()
	if published == 0 {
		return 0
	}
	return time.Duration(m.durationTotal.Load() / published)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Published:          m.published.Load(),
		Failed:             m.failed.Load(),
		AvgPublishDuration: m.AvgPublishDuration().String(),
	}
	if ts := m.lastFailureUTC.Load(); ts > 0 {
		s.LastFailure = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return s
}

// MetricsProducerMiddleware tracks producer metrics
func MetricsProducerMiddleware(m *Metrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		if err != nil {
			m.failed.Add(1)
			m.lastFailureUTC.Store(time.Now().Unix())
		} else {
			m.published.Add(1)
			m.durationTotal.Add(int64(time.Since(start)))
		}

		return err
	}
}
