// Package monitor ties the query registry, the presearcher, and the matcher
// together behind a single engine facade. The registry and candidate index
// are published as immutable snapshots through an atomic pointer: a match
// call runs entirely against the snapshot it loaded at its start, so a
// concurrent registration is either fully visible to it or fully invisible,
// never half-applied. Mutations are serialised by a mutex and build a fresh
// snapshot via copy-on-write.
package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/querystream/percolator/internal/docindex"
	"github.com/querystream/percolator/internal/matcher"
	"github.com/querystream/percolator/internal/presearcher"
	"github.com/querystream/percolator/internal/query"
	"github.com/querystream/percolator/pkg/errors"
)

// snapshot is one consistent view of the registry and its derived candidate
// index. Both maps are treated as immutable once the snapshot is published.
type snapshot struct {
	queries    map[string]*query.MonitorQuery
	candidates *presearcher.CandidateIndex
}

// Monitor is the stored-query matching engine.
type Monitor struct {
	mu            sync.Mutex
	snap          atomic.Pointer[snapshot]
	closed        atomic.Bool
	maxConcurrent int
	logger        *slog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMaxConcurrent bounds how many candidate queries are evaluated in
// parallel within a single match call.
func WithMaxConcurrent(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxConcurrent = n
		}
	}
}

// New creates an empty Monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		maxConcurrent: runtime.GOMAXPROCS(0),
		logger:        slog.Default().With("component", "monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.snap.Store(&snapshot{
		queries:    make(map[string]*query.MonitorQuery),
		candidates: presearcher.NewCandidateIndex(),
	})
	return m
}

// NewWithQueries creates a Monitor and registers the given queries.
func NewWithQueries(queries ...*query.MonitorQuery) (*Monitor, error) {
	m := New()
	if len(queries) > 0 {
		if err := m.Register(queries...); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register inserts or replaces queries by id. Every query is validated and
// term-extracted before any index mutation becomes visible, so a call that
// fails leaves the engine exactly as it was. Failures across the batch are
// aggregated.
func (m *Monitor) Register(queries ...*query.MonitorQuery) error {
	if m.closed.Load() {
		return errors.ErrMonitorClosed
	}

	type indexed struct {
		q   *query.MonitorQuery
		ext presearcher.Extraction
	}
	prepared := make([]indexed, 0, len(queries))
	var errs *multierror.Error
	for _, q := range queries {
		if err := q.Validate(); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		ext, err := presearcher.Extract(q.Query)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		prepared = append(prepared, indexed{q: q, ext: ext})
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.cloneLocked()
	for _, p := range prepared {
		next.queries[p.q.ID] = p.q
		next.candidates.Add(p.q.ID, p.ext)
	}
	m.snap.Store(next)
	m.logger.Debug("queries registered", "count", len(prepared), "total", len(next.queries))
	return nil
}

// Update is register-or-replace; it exists for symmetry with the public
// API surface.
func (m *Monitor) Update(queries ...*query.MonitorQuery) error {
	return m.Register(queries...)
}

// Remove deletes a query by id, dropping it from every candidate bucket.
// Removing an unknown id is a no-op.
func (m *Monitor) Remove(id string) {
	if m.closed.Load() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.snap.Load()
	if _, ok := cur.queries[id]; !ok {
		return
	}
	next := m.cloneLocked()
	delete(next.queries, id)
	next.candidates.Remove(id)
	m.snap.Store(next)
	m.logger.Debug("query removed", "query_id", id, "total", len(next.queries))
}

// Get returns the registered query for id.
func (m *Monitor) Get(id string) (*query.MonitorQuery, error) {
	q, ok := m.snap.Load().queries[id]
	if !ok {
		return nil, errors.Newf(errors.ErrQueryNotFound, http.StatusNotFound, "id %q", id)
	}
	return q, nil
}

// Count returns the number of registered queries.
func (m *Monitor) Count() int {
	return len(m.snap.Load().queries)
}

// Close marks the engine closed. Subsequent registrations are rejected and
// match calls fail; in-flight calls finish against their snapshots.
func (m *Monitor) Close() error {
	m.closed.Store(true)
	return nil
}

// Match evaluates the document against all candidate queries and returns
// the aggregated matches. It fails only when no queries are registered;
// individual candidate failures are isolated into per-query diagnostics.
// When ctx expires mid-evaluation the result covers the candidates
// evaluated so far and is marked partial.
func (m *Monitor) Match(ctx context.Context, doc docindex.Document) (*Matches, error) {
	if m.closed.Load() {
		return nil, errors.ErrMonitorClosed
	}
	snap := m.snap.Load()
	if len(snap.queries) == 0 {
		return nil, errors.Newf(errors.ErrNoQueries, http.StatusConflict,
			"document %q matched against empty registry", doc.ID)
	}

	idx := docindex.Build(doc)
	candidates := snap.candidates.Candidates(idx.Terms())

	result := newMatches(doc.ID)
	result.Candidates = len(candidates)

	var (
		resultMu sync.Mutex
		g        errgroup.Group
	)
	g.SetLimit(m.maxConcurrent)
	for id := range candidates {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			// A candidate may have been removed after the candidate index
			// snapshot was derived; stale ids are simply no longer candidates.
			q, ok := snap.queries[id]
			if !ok {
				return nil
			}
			matched, err := matcher.Evaluate(q.Query, idx)
			if err != nil {
				resultMu.Lock()
				result.recordError(id, err)
				resultMu.Unlock()
				return nil
			}
			var hits matcher.FieldHits
			if matched {
				hits = matcher.ExtractAllHits(q.HighlightExprs(), idx)
				if hits == nil {
					// The highlight query found nothing in this document; the
					// primary query's own occurrences are the evidence then.
					hits = matcher.ExtractHits(q.Query, idx)
				}
			}

			resultMu.Lock()
			defer resultMu.Unlock()
			result.QueriesRun++
			if matched {
				result.record(id, hits)
			}
			return nil
		})
	}
	// Goroutines never return errors; failures are isolated per query.
	_ = g.Wait()

	if ctx.Err() != nil {
		result.Partial = true
	}
	m.logger.Debug("document matched",
		"doc_id", doc.ID,
		"candidates", result.Candidates,
		"queries_run", result.QueriesRun,
		"matches", result.MatchCount(),
		"partial", result.Partial,
	)
	return result, nil
}

// cloneLocked deep-copies the current snapshot. Callers hold m.mu.
func (m *Monitor) cloneLocked() *snapshot {
	cur := m.snap.Load()
	queries := make(map[string]*query.MonitorQuery, len(cur.queries))
	for id, q := range cur.queries {
		queries[id] = q
	}
	return &snapshot{
		queries:    queries,
		candidates: cur.candidates.Clone(),
	}
}
