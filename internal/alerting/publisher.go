// Package alerting turns confirmed matches into alert events on the alert
// topic. Duplicate alerts for the same (query, document) pair are suppressed
// through a Redis TTL window so downstream consumers see each firing once.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/querystream/percolator/internal/matcher"
	"github.com/querystream/percolator/internal/monitor"
	"github.com/querystream/percolator/pkg/kafka"
	"github.com/querystream/percolator/pkg/metrics"
	"github.com/querystream/percolator/pkg/redis"
	"github.com/querystream/percolator/pkg/resilience"
)

// Alert is one query firing on one document.
type Alert struct {
	QueryID    string            `json:"query_id"`
	DocumentID string            `json:"document_id"`
	Hits       matcher.FieldHits `json:"hits"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	FiredAt    time.Time         `json:"fired_at"`
}

// Producer is the publishing boundary; satisfied by kafka.Producer.
type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// MetadataLookup resolves the caller metadata attached to a query id, used
// to enrich alerts. It may return nil.
type MetadataLookup func(queryID string) map[string]string

// Publisher fans confirmed matches out as alerts.
type Publisher struct {
	producer Producer
	dedupe   *redis.Client
	ttl      time.Duration
	lookup   MetadataLookup
	metrics  *metrics.Metrics
	breaker  *resilience.CircuitBreaker
	logger   *slog.Logger
}

// NewPublisher creates a Publisher. dedupe may be nil, in which case every
// alert is published; lookup and m may also be nil.
func NewPublisher(producer Producer, dedupe *redis.Client, ttl time.Duration, lookup MetadataLookup, m *metrics.Metrics) *Publisher {
	return &Publisher{
		producer: producer,
		dedupe:   dedupe,
		ttl:      ttl,
		lookup:   lookup,
		metrics:  m,
		breaker:  resilience.NewCircuitBreaker("alert-publish", resilience.CircuitBreakerConfig{}),
		logger:   slog.Default().With("component", "alert-publisher"),
	}
}

// PublishMatches emits one alert per confirmed query in the result.
// Individual publish failures are logged and counted but do not stop the
// remaining alerts.
func (p *Publisher) PublishMatches(ctx context.Context, result *monitor.Matches) {
	for queryID, hits := range result.Matches {
		if !p.shouldPublish(ctx, queryID, result.DocID) {
			p.count("suppressed")
			continue
		}
		alert := Alert{
			QueryID:    queryID,
			DocumentID: result.DocID,
			Hits:       hits,
			FiredAt:    time.Now().UTC(),
		}
		if p.lookup != nil {
			alert.Metadata = p.lookup(queryID)
		}
		if err := p.publish(ctx, alert); err != nil {
			p.logger.Error("publishing alert failed",
				"query_id", queryID,
				"doc_id", result.DocID,
				"error", err,
			)
			p.count("error")
			continue
		}
		p.count("sent")
	}
}

func (p *Publisher) publish(ctx context.Context, alert Alert) error {
	event := kafka.Event{
		Key:   alert.QueryID,
		Value: alert,
	}
	return p.breaker.Execute(func() error {
		return resilience.Retry(ctx, "alert-publish", resilience.RetryConfig{MaxAttempts: 3}, func() error {
			return p.producer.Publish(ctx, event)
		})
	})
}

// shouldPublish claims the (query, doc) pair in Redis. A claim that already
// exists inside the TTL window means a duplicate. Redis being down never
// blocks alerting; it only disables suppression.
func (p *Publisher) shouldPublish(ctx context.Context, queryID, docID string) bool {
	if p.dedupe == nil || p.ttl <= 0 {
		return true
	}
	key := fmt.Sprintf("alert:%s:%s", queryID, docID)
	claimed, err := p.dedupe.SetNX(ctx, key, 1, p.ttl)
	if err != nil {
		p.logger.Warn("alert dedupe unavailable, publishing anyway", "error", err)
		return true
	}
	return claimed
}

func (p *Publisher) count(status string) {
	if p.metrics != nil {
		p.metrics.AlertsPublished.WithLabelValues(status).Inc()
	}
}
