package matcher

import (
	"reflect"
	"testing"

	"github.com/querystream/percolator/internal/analysis"
	"github.com/querystream/percolator/internal/docindex"
	"github.com/querystream/percolator/internal/query"
)

func indexText(t *testing.T, text string) *docindex.Index {
	t.Helper()
	return docindex.Build(docindex.NewText("doc1", text, analysis.Whitespace{}))
}

func TestEvaluateTerm(t *testing.T) {
	idx := indexText(t, "This is a test document")

	matched, err := Evaluate(query.Term{Field: "text", Text: "test"}, idx)
	if err != nil || !matched {
		t.Errorf("present term: matched=%v err=%v", matched, err)
	}

	matched, err = Evaluate(query.Term{Field: "text", Text: "absent"}, idx)
	if err != nil || matched {
		t.Errorf("absent term: matched=%v err=%v", matched, err)
	}

	matched, err = Evaluate(query.Term{Field: "title", Text: "test"}, idx)
	if err != nil || matched {
		t.Errorf("absent field: matched=%v err=%v", matched, err)
	}
}

func TestEvaluateMatchAll(t *testing.T) {
	idx := indexText(t, "anything")
	matched, err := Evaluate(query.MatchAll{}, idx)
	if err != nil || !matched {
		t.Errorf("matched=%v err=%v", matched, err)
	}
}

func TestEvaluateBoolean(t *testing.T) {
	idx := indexText(t, "the breach was reported today")

	tests := []struct {
		name string
		expr query.Expr
		want bool
	}{
		{
			"must all present",
			query.Boolean{Clauses: []query.Clause{
				{Occur: query.OccurMust, Expr: query.Term{Field: "text", Text: "breach"}},
				{Occur: query.OccurMust, Expr: query.Term{Field: "text", Text: "reported"}},
			}},
			true,
		},
		{
			"must one absent",
			query.Boolean{Clauses: []query.Clause{
				{Occur: query.OccurMust, Expr: query.Term{Field: "text", Text: "breach"}},
				{Occur: query.OccurMust, Expr: query.Term{Field: "text", Text: "absent"}},
			}},
			false,
		},
		{
			"should one present",
			query.Boolean{Clauses: []query.Clause{
				{Occur: query.OccurShould, Expr: query.Term{Field: "text", Text: "absent"}},
				{Occur: query.OccurShould, Expr: query.Term{Field: "text", Text: "breach"}},
			}},
			true,
		},
		{
			"should none present",
			query.Boolean{Clauses: []query.Clause{
				{Occur: query.OccurShould, Expr: query.Term{Field: "text", Text: "absent"}},
			}},
			false,
		},
		{
			"must with failing should still matches",
			query.Boolean{Clauses: []query.Clause{
				{Occur: query.OccurMust, Expr: query.Term{Field: "text", Text: "breach"}},
				{Occur: query.OccurShould, Expr: query.Term{Field: "text", Text: "absent"}},
			}},
			true,
		},
		{
			"must_not present",
			query.Boolean{Clauses: []query.Clause{
				{Occur: query.OccurMust, Expr: query.Term{Field: "text", Text: "breach"}},
				{Occur: query.OccurMustNot, Expr: query.Term{Field: "text", Text: "today"}},
			}},
			false,
		},
		{
			"pure must_not all absent",
			query.Boolean{Clauses: []query.Clause{
				{Occur: query.OccurMustNot, Expr: query.Term{Field: "text", Text: "absent"}},
			}},
			true,
		},
		{
			"nested boolean",
			query.Boolean{Clauses: []query.Clause{
				{Occur: query.OccurMust, Expr: query.Boolean{Clauses: []query.Clause{
					{Occur: query.OccurShould, Expr: query.Term{Field: "text", Text: "breach"}},
					{Occur: query.OccurShould, Expr: query.Term{Field: "text", Text: "absent"}},
				}}},
			}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr, idx)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateUnknownOccur(t *testing.T) {
	idx := indexText(t, "x")
	expr := query.Boolean{Clauses: []query.Clause{
		{Occur: "maybe", Expr: query.Term{Field: "text", Text: "x"}},
	}}
	if _, err := Evaluate(expr, idx); err == nil {
		t.Error("expected error for unknown occur")
	}
}

func TestExtractHitsSingleTerm(t *testing.T) {
	idx := indexText(t, "This is a test document")

	hits := ExtractHits(query.Term{Field: "text", Text: "test"}, idx)
	want := FieldHits{"text": {{StartPosition: 3, StartOffset: 10, EndPosition: 3, EndOffset: 14}}}
	if !reflect.DeepEqual(hits, want) {
		t.Errorf("ExtractHits() = %v, want %v", hits, want)
	}
}

func TestExtractHitsRepeatedTerm(t *testing.T) {
	idx := indexText(t, "test and test again")

	hits := ExtractHits(query.Term{Field: "text", Text: "test"}, idx)
	want := FieldHits{"text": {
		{StartPosition: 0, StartOffset: 0, EndPosition: 0, EndOffset: 4},
		{StartPosition: 2, StartOffset: 9, EndPosition: 2, EndOffset: 13},
	}}
	if !reflect.DeepEqual(hits, want) {
		t.Errorf("ExtractHits() = %v, want %v", hits, want)
	}
}

func TestExtractHitsSkipsMustNot(t *testing.T) {
	idx := indexText(t, "breach and drill")

	expr := query.Boolean{Clauses: []query.Clause{
		{Occur: query.OccurMust, Expr: query.Term{Field: "text", Text: "breach"}},
		{Occur: query.OccurMustNot, Expr: query.Term{Field: "text", Text: "drill"}},
	}}
	hits := ExtractHits(expr, idx)
	if len(hits["text"]) != 1 {
		t.Fatalf("got %v, want only the mandatory term's hit", hits)
	}
	if hits["text"][0].StartOffset != 0 || hits["text"][0].EndOffset != 6 {
		t.Errorf("unexpected hit %+v", hits["text"][0])
	}
}

func TestExtractHitsMatchAllNil(t *testing.T) {
	idx := indexText(t, "anything")
	if hits := ExtractHits(query.MatchAll{}, idx); hits != nil {
		t.Errorf("match-all hits = %v, want nil", hits)
	}
}

func TestExtractHitsMultiField(t *testing.T) {
	doc := docindex.New("doc1")
	doc.AddField("field1", "this is a test of field one", analysis.Whitespace{})
	doc.AddField("field2", "and this is an additional test", analysis.Whitespace{})
	idx := docindex.Build(doc)

	expr := query.Boolean{Clauses: []query.Clause{
		{Occur: query.OccurShould, Expr: query.Term{Field: "field1", Text: "test"}},
		{Occur: query.OccurShould, Expr: query.Term{Field: "field2", Text: "test"}},
	}}
	hits := ExtractHits(expr, idx)
	want := FieldHits{
		"field1": {{StartPosition: 3, StartOffset: 10, EndPosition: 3, EndOffset: 14}},
		"field2": {{StartPosition: 5, StartOffset: 26, EndPosition: 5, EndOffset: 30}},
	}
	if !reflect.DeepEqual(hits, want) {
		t.Errorf("ExtractHits() = %v, want %v", hits, want)
	}
}

func TestExtractAllHitsMerges(t *testing.T) {
	idx := indexText(t, "breach and leak")

	hits := ExtractAllHits([]query.Expr{
		query.Term{Field: "text", Text: "breach"},
		query.Term{Field: "text", Text: "leak"},
	}, idx)
	if len(hits["text"]) != 2 {
		t.Fatalf("got %v, want two hits", hits)
	}
	if hits["text"][0].StartOffset != 0 || hits["text"][1].StartOffset != 11 {
		t.Errorf("unexpected hit order %v", hits["text"])
	}
}
