package matcher

import (
	"github.com/querystream/percolator/internal/docindex"
	"github.com/querystream/percolator/internal/query"
)

// Hit is one matched term occurrence: its token position range and byte
// offset range within the original field text.
type Hit struct {
	StartPosition int `json:"startPosition"`
	StartOffset   int `json:"startOffset"`
	EndPosition   int `json:"endPosition"`
	EndOffset     int `json:"endOffset"`
}

// FieldHits maps field names to the ordered hits extracted for that field.
type FieldHits map[string][]Hit

// ExtractHits walks the positive term leaves of the expression and turns
// every occurrence of those terms in the document into a Hit, grouped per
// field. Occurrences keep their extraction order; overlapping hits are kept,
// overlap is meaningful to consumers. Leaves under a must_not clause
// contribute nothing, and match-all nodes carry no positional evidence.
func ExtractHits(expr query.Expr, idx *docindex.Index) FieldHits {
	hits := make(FieldHits)
	collectHits(expr, idx, hits)
	if len(hits) == 0 {
		return nil
	}
	return hits
}

// ExtractAllHits merges the hits of several highlight expressions, in
// expression order.
func ExtractAllHits(exprs []query.Expr, idx *docindex.Index) FieldHits {
	merged := make(FieldHits)
	for _, expr := range exprs {
		collectHits(expr, idx, merged)
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func collectHits(expr query.Expr, idx *docindex.Index, out FieldHits) {
	switch e := expr.(type) {
	case query.Term:
		for _, p := range idx.Postings(e.Field, e.Text) {
			out[e.Field] = append(out[e.Field], Hit{
				StartPosition: p.Position,
				StartOffset:   p.Start,
				EndPosition:   p.Position,
				EndOffset:     p.End,
			})
		}
	case query.Boolean:
		for _, c := range e.Clauses {
			if c.Occur == query.OccurMustNot {
				continue
			}
			collectHits(c.Expr, idx, out)
		}
	}
}
