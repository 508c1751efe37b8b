package query

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/querystream/percolator/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		expr    Expr
		wantErr bool
	}{
		{"term", Term{Field: "text", Text: "breach"}, false},
		{"match all", MatchAll{}, false},
		{"nil expression", nil, true},
		{"term without field", Term{Text: "breach"}, true},
		{"term without text", Term{Field: "text"}, true},
		{"empty boolean", Boolean{}, true},
		{
			"boolean with unknown occur",
			Boolean{Clauses: []Clause{{Occur: "maybe", Expr: Term{Field: "text", Text: "x"}}}},
			true,
		},
		{
			"nested invalid clause",
			Boolean{Clauses: []Clause{
				{Occur: OccurMust, Expr: Boolean{Clauses: []Clause{{Occur: OccurShould, Expr: Term{}}}}},
			}},
			true,
		},
		{
			"valid boolean",
			Boolean{Clauses: []Clause{
				{Occur: OccurMust, Expr: Term{Field: "text", Text: "breach"}},
				{Occur: OccurMustNot, Expr: Term{Field: "text", Text: "drill"}},
			}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrInvalidQuery) {
				t.Errorf("error %v is not ErrInvalidQuery", err)
			}
		})
	}
}

func TestMonitorQueryValidate(t *testing.T) {
	q := NewMonitorQuery("", Term{Field: "text", Text: "breach"})
	if err := q.Validate(); !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("missing id: error = %v, want ErrInvalidQuery", err)
	}

	q = NewMonitorQuery("q1", Term{Field: "text", Text: "breach"}, Term{})
	if err := q.Validate(); !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("bad highlight: error = %v, want ErrInvalidQuery", err)
	}

	q = NewMonitorQuery("q1", Term{Field: "text", Text: "breach"})
	if err := q.Validate(); err != nil {
		t.Errorf("valid query: unexpected error %v", err)
	}
}

func TestFields(t *testing.T) {
	expr := Boolean{Clauses: []Clause{
		{Occur: OccurMust, Expr: Term{Field: "title", Text: "breach"}},
		{Occur: OccurShould, Expr: Term{Field: "body", Text: "leak"}},
		{Occur: OccurShould, Expr: Term{Field: "title", Text: "exposure"}},
	}}
	got := Fields(expr)
	want := []string{"title", "body"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}

	if got := Fields(MatchAll{}); len(got) != 0 {
		t.Errorf("Fields(MatchAll) = %v, want none", got)
	}
}

func TestHighlightExprs(t *testing.T) {
	primary := Term{Field: "text", Text: "breach"}
	q := NewMonitorQuery("q1", primary)
	got := q.HighlightExprs()
	if len(got) != 1 || got[0] != Expr(primary) {
		t.Errorf("HighlightExprs() = %v, want primary expression", got)
	}

	hl := Term{Field: "text", Text: "leak"}
	q = NewMonitorQuery("q1", primary, hl)
	got = q.HighlightExprs()
	if len(got) != 1 || got[0] != Expr(hl) {
		t.Errorf("HighlightExprs() = %v, want highlight expression", got)
	}
}

func TestExprJSONRoundTrip(t *testing.T) {
	expr := Boolean{Clauses: []Clause{
		{Occur: OccurMust, Expr: Term{Field: "text", Text: "breach"}},
		{Occur: OccurMustNot, Expr: Term{Field: "text", Text: "drill"}},
		{Occur: OccurShould, Expr: MatchAll{}},
	}}

	data, err := MarshalExpr(expr)
	if err != nil {
		t.Fatalf("MarshalExpr() error = %v", err)
	}
	back, err := UnmarshalExpr(data)
	if err != nil {
		t.Fatalf("UnmarshalExpr() error = %v", err)
	}
	if !reflect.DeepEqual(back, Expr(expr)) {
		t.Errorf("round trip = %#v, want %#v", back, expr)
	}
}

func TestUnmarshalExprUnknownType(t *testing.T) {
	if _, err := UnmarshalExpr([]byte(`{"type":"fuzzy","field":"text","term":"x"}`)); err == nil {
		t.Error("expected error for unknown node type")
	}
}

func TestMonitorQueryJSON(t *testing.T) {
	raw := `{
		"id": "q1",
		"query": {"type": "term", "field": "text", "term": "breach"},
		"highlights": [{"type": "term", "field": "text", "term": "leak"}],
		"metadata": {"owner": "secops"}
	}`

	var q MonitorQuery
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if q.ID != "q1" {
		t.Errorf("ID = %q, want q1", q.ID)
	}
	if q.Query != Expr(Term{Field: "text", Text: "breach"}) {
		t.Errorf("unexpected primary expression %#v", q.Query)
	}
	if len(q.Highlights) != 1 || q.Highlights[0] != Expr(Term{Field: "text", Text: "leak"}) {
		t.Errorf("unexpected highlights %#v", q.Highlights)
	}
	if q.Metadata["owner"] != "secops" {
		t.Errorf("metadata = %v", q.Metadata)
	}

	data, err := json.Marshal(&q)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var back MonitorQuery
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("re-Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(back.Query, q.Query) || back.ID != q.ID {
		t.Errorf("round trip mismatch: %#v vs %#v", back, q)
	}
}

func TestMonitorQueryJSONMissingExpression(t *testing.T) {
	var q MonitorQuery
	if err := json.Unmarshal([]byte(`{"id":"q1"}`), &q); err == nil {
		t.Error("expected error for query without expression")
	}
}
