// Package query defines the stored-query model: the boolean expression tree
// evaluated against documents and the MonitorQuery envelope that registers
// an expression under an id.
//
// Expressions arrive pre-parsed as a tagged variant of four node kinds:
// a single-term match, a boolean composite with per-clause occurrence
// marking, and a match-all node. Term extraction and evaluation are
// structural recursions over the tag.
package query

import (
	"fmt"
	"net/http"

	"github.com/querystream/percolator/pkg/errors"
)

// Occur marks how a boolean clause participates in the match decision.
type Occur string

const (
	// OccurMust clauses are mandatory: the clause has to match.
	OccurMust Occur = "must"
	// OccurShould clauses are optional; when a boolean has no must clauses,
	// at least one should clause has to match.
	OccurShould Occur = "should"
	// OccurMustNot clauses are prohibitive: the clause must not match.
	OccurMustNot Occur = "must_not"
)

// Expr is a node in a query expression tree.
type Expr interface {
	exprNode()
}

// Term matches documents whose named field contains the given term.
type Term struct {
	Field string
	Text  string
}

func (Term) exprNode() {}

func (t Term) String() string {
	return fmt.Sprintf("%s:%s", t.Field, t.Text)
}

// Clause is a sub-expression of a Boolean with its occurrence marking.
type Clause struct {
	Occur Occur
	Expr  Expr
}

// Boolean combines clauses. Semantics follow the usual boolean-query rules:
// every must clause has to match, no must_not clause may match, and when
// there are no must clauses at least one should clause has to match.
type Boolean struct {
	Clauses []Clause
}

func (Boolean) exprNode() {}

// MatchAll matches every document.
type MatchAll struct{}

func (MatchAll) exprNode() {}

// Validate walks the expression and rejects shapes the engine cannot index:
// nil nodes, empty terms, booleans without clauses, and unknown occurrence
// markers.
func Validate(expr Expr) error {
	switch e := expr.(type) {
	case nil:
		return errors.Newf(errors.ErrInvalidQuery, http.StatusBadRequest, "nil expression")
	case Term:
		if e.Field == "" || e.Text == "" {
			return errors.Newf(errors.ErrInvalidQuery, http.StatusBadRequest, "term node needs field and text, got %q:%q", e.Field, e.Text)
		}
		return nil
	case MatchAll:
		return nil
	case Boolean:
		if len(e.Clauses) == 0 {
			return errors.Newf(errors.ErrInvalidQuery, http.StatusBadRequest, "boolean node has no clauses")
		}
		for i, c := range e.Clauses {
			switch c.Occur {
			case OccurMust, OccurShould, OccurMustNot:
			default:
				return errors.Newf(errors.ErrInvalidQuery, http.StatusBadRequest, "clause %d has unknown occur %q", i, c.Occur)
			}
			if err := Validate(c.Expr); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Newf(errors.ErrInvalidQuery, http.StatusBadRequest, "unsupported expression node %T", expr)
	}
}

// Fields returns the distinct field names referenced by the expression, in
// first-appearance order. A match-all node references no field.
func Fields(expr Expr) []string {
	var fields []string
	seen := make(map[string]struct{})
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case Term:
			if _, ok := seen[n.Field]; !ok {
				seen[n.Field] = struct{}{}
				fields = append(fields, n.Field)
			}
		case Boolean:
			for _, c := range n.Clauses {
				walk(c.Expr)
			}
		}
	}
	walk(expr)
	return fields
}

// MonitorQuery is a registered query: the primary expression decides
// match/no-match, and the optional highlight expressions compute positional
// hit evidence once a match is confirmed. When no highlight expression is
// given the primary expression doubles as the highlight query. Metadata is
// an open-ended attachment map for caller bookkeeping; the engine never
// interprets it.
type MonitorQuery struct {
	ID         string
	Query      Expr
	Highlights []Expr
	Metadata   map[string]string
}

// NewMonitorQuery builds a MonitorQuery with optional highlight expressions.
func NewMonitorQuery(id string, expr Expr, highlights ...Expr) *MonitorQuery {
	return &MonitorQuery{
		ID:         id,
		Query:      expr,
		Highlights: highlights,
	}
}

// Validate checks the envelope and every expression it carries.
func (q *MonitorQuery) Validate() error {
	if q.ID == "" {
		return errors.Newf(errors.ErrInvalidQuery, http.StatusBadRequest, "query has no id")
	}
	if err := Validate(q.Query); err != nil {
		return fmt.Errorf("query %q: %w", q.ID, err)
	}
	for i, h := range q.Highlights {
		if err := Validate(h); err != nil {
			return fmt.Errorf("query %q highlight %d: %w", q.ID, i, err)
		}
	}
	return nil
}

// HighlightExprs returns the expressions used for hit extraction: the
// highlight expressions when present, otherwise the primary expression.
func (q *MonitorQuery) HighlightExprs() []Expr {
	if len(q.Highlights) > 0 {
		return q.Highlights
	}
	return []Expr{q.Query}
}
