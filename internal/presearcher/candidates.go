package presearcher

import (
	"github.com/querystream/percolator/internal/query"
)

// CandidateIndex maps extracted terms to the ids of the queries they gate,
// plus the set of always-candidate query ids. It is an immutable snapshot
// once published: mutations go through Clone, so in-flight match calls keep
// reading a consistent index.
type CandidateIndex struct {
	buckets map[query.Term]map[string]struct{}
	always  map[string]struct{}
	entries map[string]Extraction
}

// NewCandidateIndex creates an empty candidate index.
func NewCandidateIndex() *CandidateIndex {
	return &CandidateIndex{
		buckets: make(map[query.Term]map[string]struct{}),
		always:  make(map[string]struct{}),
		entries: make(map[string]Extraction),
	}
}

// Clone deep-copies the index for copy-on-write mutation.
func (ci *CandidateIndex) Clone() *CandidateIndex {
	clone := &CandidateIndex{
		buckets: make(map[query.Term]map[string]struct{}, len(ci.buckets)),
		always:  make(map[string]struct{}, len(ci.always)),
		entries: make(map[string]Extraction, len(ci.entries)),
	}
	for term, ids := range ci.buckets {
		bucket := make(map[string]struct{}, len(ids))
		for id := range ids {
			bucket[id] = struct{}{}
		}
		clone.buckets[term] = bucket
	}
	for id := range ci.always {
		clone.always[id] = struct{}{}
	}
	for id, ext := range ci.entries {
		clone.entries[id] = ext
	}
	return clone
}

// Add indexes a query id under its extraction, replacing any previous
// indexing of the same id.
func (ci *CandidateIndex) Add(id string, ext Extraction) {
	ci.Remove(id)
	ci.entries[id] = ext
	if ext.Always {
		ci.always[id] = struct{}{}
		return
	}
	for term := range ext.Terms {
		bucket := ci.buckets[term]
		if bucket == nil {
			bucket = make(map[string]struct{})
			ci.buckets[term] = bucket
		}
		bucket[id] = struct{}{}
	}
}

// Remove drops a query id from every bucket and the always set. Removing an
// unknown id is a no-op.
func (ci *CandidateIndex) Remove(id string) {
	ext, ok := ci.entries[id]
	if !ok {
		return
	}
	delete(ci.entries, id)
	if ext.Always {
		delete(ci.always, id)
		return
	}
	for term := range ext.Terms {
		if bucket := ci.buckets[term]; bucket != nil {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(ci.buckets, term)
			}
		}
	}
}

// Candidates returns a superset of the ids of queries that could match a
// document containing the given terms: the union of the touched term
// buckets plus every always-candidate.
func (ci *CandidateIndex) Candidates(terms []query.Term) map[string]struct{} {
	out := make(map[string]struct{}, len(ci.always))
	for id := range ci.always {
		out[id] = struct{}{}
	}
	for _, term := range terms {
		for id := range ci.buckets[term] {
			out[id] = struct{}{}
		}
	}
	return out
}

// Size returns the number of indexed query ids.
func (ci *CandidateIndex) Size() int {
	return len(ci.entries)
}
