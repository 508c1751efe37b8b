// Package ingest reads document events from Kafka, matches them against the
// registered queries, and hands the confirmed matches to the alert
// publisher.
package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/querystream/percolator/internal/alerting"
	"github.com/querystream/percolator/internal/analysis"
	"github.com/querystream/percolator/internal/docindex"
	"github.com/querystream/percolator/internal/monitor"
	"github.com/querystream/percolator/pkg/config"
	"github.com/querystream/percolator/pkg/errors"
	"github.com/querystream/percolator/pkg/kafka"
	"github.com/querystream/percolator/pkg/metrics"
	"github.com/querystream/percolator/pkg/tracing"
)

// DocumentEvent is the Kafka message payload for an incoming document.
// Either Text (single implicit field) or Fields must be present.
type DocumentEvent struct {
	ID       string            `json:"id"`
	Analyzer string            `json:"analyzer,omitempty"`
	Text     string            `json:"text,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// ToDocument converts the event into an analyzable document.
func (e DocumentEvent) ToDocument(defaultAnalyzer string) (docindex.Document, error) {
	if e.ID == "" {
		return docindex.Document{}, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "document event has no id")
	}
	name := e.Analyzer
	if name == "" {
		name = defaultAnalyzer
	}
	analyzer := analysis.ForName(name)
	if len(e.Fields) == 0 {
		if e.Text == "" {
			return docindex.Document{}, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "document %q has no text or fields", e.ID)
		}
		return docindex.NewText(e.ID, e.Text, analyzer), nil
	}
	doc := docindex.New(e.ID)
	for field, text := range e.Fields {
		doc.AddField(field, text, analyzer)
	}
	return doc, nil
}

// Handler returns a Kafka MessageHandler that matches each document event
// and publishes alerts for its confirmed matches. Undecodable events and
// match failures are logged and dropped, never retried forever.
func Handler(mon *monitor.Monitor, publisher *alerting.Publisher, m *metrics.Metrics, cfg config.MatcherConfig) kafka.MessageHandler {
	logger := slog.Default().With("component", "document-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event", "key", string(key), "error", err)
			m.DocumentsConsumed.WithLabelValues("invalid").Inc()
			return nil
		}
		doc, err := event.ToDocument(cfg.DefaultAnalyzer)
		if err != nil {
			logger.Error("rejecting document event", "doc_id", event.ID, "error", err)
			m.DocumentsConsumed.WithLabelValues("invalid").Inc()
			return nil
		}

		spanCtx, span := tracing.StartSpan(ctx, "document-percolate", doc.ID)
		defer func() {
			span.End()
			span.Log()
		}()

		matchCtx := spanCtx
		if cfg.MatchTimeout > 0 {
			var cancel context.CancelFunc
			matchCtx, cancel = context.WithTimeout(spanCtx, cfg.MatchTimeout)
			defer cancel()
		}
		start := time.Now()
		matchCtx, matchSpan := tracing.StartChildSpan(matchCtx, "match")
		result, err := mon.Match(matchCtx, doc)
		matchSpan.End()
		if err != nil {
			logger.Error("matching document failed", "doc_id", doc.ID, "error", err)
			m.DocumentsConsumed.WithLabelValues("error").Inc()
			m.MatchesTotal.WithLabelValues("error").Inc()
			return nil
		}
		matchSpan.SetAttr("candidates", result.Candidates)
		matchSpan.SetAttr("matches", result.MatchCount())
		observeMatch(m, result, time.Since(start))
		m.DocumentsConsumed.WithLabelValues("ok").Inc()

		if result.MatchCount() > 0 {
			publishCtx, publishSpan := tracing.StartChildSpan(spanCtx, "publish-alerts")
			publisher.PublishMatches(publishCtx, result)
			publishSpan.End()
		}
		logger.Debug("document processed",
			"doc_id", doc.ID,
			"matches", result.MatchCount(),
			"candidates", result.Candidates,
			"partial", result.Partial,
		)
		return nil
	}
}

// observeMatch records the per-document match metrics.
func observeMatch(m *metrics.Metrics, result *monitor.Matches, elapsed time.Duration) {
	m.MatchLatency.Observe(elapsed.Seconds())
	m.CandidatesPerDoc.Observe(float64(result.Candidates))
	m.MatchesPerDoc.Observe(float64(result.MatchCount()))
	m.QueryErrorsTotal.Add(float64(len(result.Errors)))
	switch {
	case result.Partial:
		m.MatchesTotal.WithLabelValues("partial").Inc()
	case result.MatchCount() > 0:
		m.MatchesTotal.WithLabelValues("matched").Inc()
	default:
		m.MatchesTotal.WithLabelValues("zero_match").Inc()
	}
}
