// Package matcher evaluates query expressions against a single document
// index and extracts the positional hits that prove a confirmed match.
package matcher

import (
	"fmt"

	"github.com/querystream/percolator/internal/docindex"
	"github.com/querystream/percolator/internal/query"
)

// Evaluate reports whether the expression matches the document. Field
// references absent from the document simply fail their term tests; they
// are not an error.
func Evaluate(expr query.Expr, idx *docindex.Index) (bool, error) {
	switch e := expr.(type) {
	case query.Term:
		return idx.HasTerm(e.Field, e.Text), nil
	case query.MatchAll:
		return true, nil
	case query.Boolean:
		return evaluateBoolean(e, idx)
	default:
		return false, fmt.Errorf("evaluating unsupported expression node %T", expr)
	}
}

func evaluateBoolean(b query.Boolean, idx *docindex.Index) (bool, error) {
	musts, shoulds := 0, 0
	shouldMatched := false
	for _, c := range b.Clauses {
		matched, err := Evaluate(c.Expr, idx)
		if err != nil {
			return false, err
		}
		switch c.Occur {
		case query.OccurMust:
			musts++
			if !matched {
				return false, nil
			}
		case query.OccurMustNot:
			if matched {
				return false, nil
			}
		case query.OccurShould:
			shoulds++
			if matched {
				shouldMatched = true
			}
		default:
			return false, fmt.Errorf("evaluating clause with unknown occur %q", c.Occur)
		}
	}
	if musts == 0 && shoulds > 0 {
		return shouldMatched, nil
	}
	if musts == 0 && shoulds == 0 {
		// Purely prohibitive boolean: all must_not clauses passed.
		return true, nil
	}
	return true, nil
}
