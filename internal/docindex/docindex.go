// Package docindex builds the ephemeral, queryable in-memory index for a
// single incoming document. The index lives only for the duration of one
// match call: it is built from the document's fields, consulted while the
// candidate queries are evaluated, and then discarded.
package docindex

import (
	"sort"

	"github.com/querystream/percolator/internal/analysis"
	"github.com/querystream/percolator/internal/query"
)

// DefaultField is the implicit field name used when a caller supplies only
// raw text.
const DefaultField = "text"

// Field is one named, analyzed text field of a document.
type Field struct {
	Name     string
	Text     string
	Analyzer analysis.Analyzer
}

// Document is the unit of matching: an opaque id plus a set of named fields.
// The engine holds no reference to it after the match call returns.
type Document struct {
	ID     string
	Fields []Field
}

// New creates a document from explicit fields.
func New(id string, fields ...Field) Document {
	return Document{ID: id, Fields: fields}
}

// NewText creates a single-field document over DefaultField.
func NewText(id, text string, analyzer analysis.Analyzer) Document {
	return Document{ID: id, Fields: []Field{{Name: DefaultField, Text: text, Analyzer: analyzer}}}
}

// AddField appends a field to the document.
func (d *Document) AddField(name, text string, analyzer analysis.Analyzer) {
	d.Fields = append(d.Fields, Field{Name: name, Text: text, Analyzer: analyzer})
}

// Posting is one occurrence of a term within a field: its ordinal token
// position and byte offsets into the original field text.
type Posting struct {
	Position int
	Start    int
	End      int
}

// Index is the per-document inverted index: field name → term → ordered
// postings. It is call-local and needs no synchronisation.
type Index struct {
	docID  string
	fields map[string]map[string][]Posting
}

// Build tokenises every field of the document into an Index.
func Build(doc Document) *Index {
	idx := &Index{
		docID:  doc.ID,
		fields: make(map[string]map[string][]Posting, len(doc.Fields)),
	}
	for _, f := range doc.Fields {
		terms := idx.fields[f.Name]
		if terms == nil {
			terms = make(map[string][]Posting)
			idx.fields[f.Name] = terms
		}
		for _, tok := range f.Analyzer.Analyze(f.Text) {
			terms[tok.Term] = append(terms[tok.Term], Posting{
				Position: tok.Position,
				Start:    tok.Start,
				End:      tok.End,
			})
		}
	}
	return idx
}

// DocID returns the id of the indexed document.
func (x *Index) DocID() string {
	return x.docID
}

// HasTerm reports whether the field contains the term.
func (x *Index) HasTerm(field, term string) bool {
	return len(x.fields[field][term]) > 0
}

// Postings returns the ordered occurrences of term in field, nil when the
// field or term is absent.
func (x *Index) Postings(field, term string) []Posting {
	return x.fields[field][term]
}

// Fields returns the document's field names in sorted order.
func (x *Index) Fields() []string {
	names := make([]string, 0, len(x.fields))
	for name := range x.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Terms returns the distinct (field, term) pairs present in the document.
// This is the input to candidate selection.
func (x *Index) Terms() []query.Term {
	var out []query.Term
	for field, terms := range x.fields {
		for term := range terms {
			out = append(out, query.Term{Field: field, Text: term})
		}
	}
	return out
}
