package monitor

import (
	"github.com/querystream/percolator/internal/matcher"
)

// Matches is the aggregated outcome of matching one document against the
// registered queries: for every confirmed query id, the per-field positional
// hits proving the match, plus per-query diagnostics for candidates whose
// evaluation failed.
type Matches struct {
	DocID      string                       `json:"docId"`
	Matches    map[string]matcher.FieldHits `json:"matches"`
	Errors     map[string]string            `json:"errors,omitempty"`
	Candidates int                          `json:"candidates"`
	QueriesRun int                          `json:"queriesRun"`
	// Partial is set when a deadline or cancellation stopped evaluation
	// before every candidate was checked.
	Partial bool `json:"partial,omitempty"`
}

func newMatches(docID string) *Matches {
	return &Matches{
		DocID:   docID,
		Matches: make(map[string]matcher.FieldHits),
	}
}

// record adds a confirmed match. Hit insertion order within a field is
// preserved and overlapping hits are kept as-is.
func (m *Matches) record(queryID string, hits matcher.FieldHits) {
	if hits == nil {
		hits = matcher.FieldHits{}
	}
	m.Matches[queryID] = hits
}

// recordError stores a per-query diagnostic without failing the match call.
func (m *Matches) recordError(queryID string, err error) {
	if m.Errors == nil {
		m.Errors = make(map[string]string)
	}
	m.Errors[queryID] = err.Error()
}

// MatchCount returns the number of queries confirmed as matches.
func (m *Matches) MatchCount() int {
	return len(m.Matches)
}

// Matched reports whether the query id matched the document.
func (m *Matches) Matched(queryID string) bool {
	_, ok := m.Matches[queryID]
	return ok
}

// Hits returns the hits for one query in one field, nil when there are none.
func (m *Matches) Hits(queryID, field string) []matcher.Hit {
	return m.Matches[queryID][field]
}

// HitCount returns the total number of hits for a query across all fields.
func (m *Matches) HitCount(queryID string) int {
	n := 0
	for _, hits := range m.Matches[queryID] {
		n += len(hits)
	}
	return n
}
