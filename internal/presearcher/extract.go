// Package presearcher narrows candidate selection: it extracts a
// conservative set of required terms from every registered query and
// maintains an inverted index from those terms to query ids. For a given
// document only the queries whose extracted terms intersect the document's
// terms (plus the queries that could match any document at all) need to be
// evaluated.
//
// Extraction is sound by construction: a query that could match a document
// always lands in that document's candidate set. False positives are
// expected and filtered by full evaluation; a false negative is a
// correctness bug.
package presearcher

import (
	"net/http"

	"github.com/querystream/percolator/internal/query"
	"github.com/querystream/percolator/pkg/errors"
)

// TermSet is a set of (field, term) pairs.
type TermSet map[query.Term]struct{}

// Extraction is the result of analysing one query expression: either a
// finite term set that gates the query, or Always, meaning no finite term
// set is a safe filter and the query must be evaluated against every
// document.
type Extraction struct {
	Terms  TermSet
	Always bool
}

// Extract walks the expression tree and computes its extraction.
//
// A term node requires exactly its own term. For a conjunction any single
// mandatory clause is a valid conservative filter, so the smallest
// extractable mandatory clause is chosen to minimise fan-out. A disjunction
// is gated by the union of its clause sets, unless any clause is itself
// unextractable, in which case the whole expression is an always-candidate.
// Purely prohibitive booleans and match-all nodes are always-candidates.
func Extract(expr query.Expr) (Extraction, error) {
	switch e := expr.(type) {
	case query.Term:
		return Extraction{Terms: TermSet{e: {}}}, nil
	case query.MatchAll:
		return Extraction{Always: true}, nil
	case query.Boolean:
		return extractBoolean(e)
	default:
		return Extraction{}, errors.Newf(errors.ErrInvalidQuery, http.StatusBadRequest,
			"cannot extract terms from expression node %T", expr)
	}
}

func extractBoolean(b query.Boolean) (Extraction, error) {
	if len(b.Clauses) == 0 {
		return Extraction{}, errors.Newf(errors.ErrInvalidQuery, http.StatusBadRequest,
			"boolean node has no clauses")
	}

	var musts, shoulds []Extraction
	for _, c := range b.Clauses {
		switch c.Occur {
		case query.OccurMust, query.OccurShould:
			sub, err := Extract(c.Expr)
			if err != nil {
				return Extraction{}, err
			}
			if c.Occur == query.OccurMust {
				musts = append(musts, sub)
			} else {
				shoulds = append(shoulds, sub)
			}
		case query.OccurMustNot:
			// Absence of a term can never be used as a filter.
		default:
			return Extraction{}, errors.Newf(errors.ErrInvalidQuery, http.StatusBadRequest,
				"clause has unknown occur %q", c.Occur)
		}
	}

	if len(musts) > 0 {
		// Any one mandatory clause failing fails the whole conjunction, so
		// the smallest finite mandatory set is a valid conservative filter.
		best := Extraction{Always: true}
		for _, m := range musts {
			if m.Always {
				continue
			}
			if best.Always || len(m.Terms) < len(best.Terms) {
				best = m
			}
		}
		return best, nil
	}

	if len(shoulds) == 0 {
		// Only prohibitive clauses: satisfiable by term absence.
		return Extraction{Always: true}, nil
	}

	union := make(TermSet)
	for _, s := range shoulds {
		if s.Always {
			return Extraction{Always: true}, nil
		}
		for t := range s.Terms {
			union[t] = struct{}{}
		}
	}
	return Extraction{Terms: union}, nil
}
