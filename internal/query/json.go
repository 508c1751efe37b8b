package query

import (
	"encoding/json"
	"fmt"
)

// exprJSON is the wire form of an expression node, discriminated by Type.
type exprJSON struct {
	Type    string       `json:"type"`
	Field   string       `json:"field,omitempty"`
	Term    string       `json:"term,omitempty"`
	Clauses []clauseJSON `json:"clauses,omitempty"`
}

type clauseJSON struct {
	Occur Occur           `json:"occur"`
	Query json.RawMessage `json:"query"`
}

// MarshalExpr encodes an expression tree as tagged JSON.
func MarshalExpr(expr Expr) ([]byte, error) {
	wire, err := toWire(expr)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// UnmarshalExpr decodes a tagged JSON expression tree.
func UnmarshalExpr(data []byte) (Expr, error) {
	var wire exprJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decoding expression: %w", err)
	}
	return fromWire(wire)
}

func toWire(expr Expr) (*exprJSON, error) {
	switch e := expr.(type) {
	case Term:
		return &exprJSON{Type: "term", Field: e.Field, Term: e.Text}, nil
	case MatchAll:
		return &exprJSON{Type: "match_all"}, nil
	case Boolean:
		clauses := make([]clauseJSON, 0, len(e.Clauses))
		for _, c := range e.Clauses {
			sub, err := MarshalExpr(c.Expr)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clauseJSON{Occur: c.Occur, Query: sub})
		}
		return &exprJSON{Type: "boolean", Clauses: clauses}, nil
	default:
		return nil, fmt.Errorf("encoding expression: unsupported node %T", expr)
	}
}

func fromWire(wire exprJSON) (Expr, error) {
	switch wire.Type {
	case "term":
		return Term{Field: wire.Field, Text: wire.Term}, nil
	case "match_all":
		return MatchAll{}, nil
	case "boolean":
		clauses := make([]Clause, 0, len(wire.Clauses))
		for _, c := range wire.Clauses {
			sub, err := UnmarshalExpr(c.Query)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, Clause{Occur: c.Occur, Expr: sub})
		}
		return Boolean{Clauses: clauses}, nil
	default:
		return nil, fmt.Errorf("decoding expression: unknown type %q", wire.Type)
	}
}

// monitorQueryJSON is the wire form of a MonitorQuery.
type monitorQueryJSON struct {
	ID         string            `json:"id"`
	Query      json.RawMessage   `json:"query"`
	Highlights []json.RawMessage `json:"highlights,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (q *MonitorQuery) MarshalJSON() ([]byte, error) {
	primary, err := MarshalExpr(q.Query)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", q.ID, err)
	}
	wire := monitorQueryJSON{
		ID:       q.ID,
		Query:    primary,
		Metadata: q.Metadata,
	}
	for _, h := range q.Highlights {
		data, err := MarshalExpr(h)
		if err != nil {
			return nil, fmt.Errorf("query %q highlight: %w", q.ID, err)
		}
		wire.Highlights = append(wire.Highlights, data)
	}
	return json.Marshal(wire)
}

func (q *MonitorQuery) UnmarshalJSON(data []byte) error {
	var wire monitorQueryJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding monitor query: %w", err)
	}
	if len(wire.Query) == 0 {
		return fmt.Errorf("monitor query %q has no expression", wire.ID)
	}
	primary, err := UnmarshalExpr(wire.Query)
	if err != nil {
		return fmt.Errorf("query %q: %w", wire.ID, err)
	}
	highlights := make([]Expr, 0, len(wire.Highlights))
	for _, h := range wire.Highlights {
		expr, err := UnmarshalExpr(h)
		if err != nil {
			return fmt.Errorf("query %q highlight: %w", wire.ID, err)
		}
		highlights = append(highlights, expr)
	}
	q.ID = wire.ID
	q.Query = primary
	q.Highlights = highlights
	q.Metadata = wire.Metadata
	return nil
}
