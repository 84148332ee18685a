// Package vectorindex provides an immutable in-memory cosine similarity index
// over embedded fragments.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"repochat/internal/chunking"
)

// Result is a fragment with its similarity to the query.
type Result struct {
	Fragment chunking.Fragment
	Score    float64
}

// Index holds fragments and their pre-computed norms. It is read-only after
// Build and safe for concurrent searches.
type Index struct {
	fragments []chunking.Fragment
	norms     []float64
	dims      int
}

// Build indexes fragments. Every fragment must carry an embedding of the same length.
func Build(fragments []chunking.Fragment) (*Index, error) {
	idx := &Index{
		fragments: make([]chunking.Fragment, len(fragments)),
		norms:     make([]float64, len(fragments)),
	}
	copy(idx.fragments, fragments)
	for i, f := range idx.fragments {
		if len(f.Embedding) == 0 {
			return nil, fmt.Errorf("fragment %d (%s) has no embedding", i, f.Path)
		}
		if idx.dims == 0 {
			idx.dims = len(f.Embedding)
		} else if len(f.Embedding) != idx.dims {
			return nil, fmt.Errorf("fragment %d (%s) has %d dimensions, want %d", i, f.Path, len(f.Embedding), idx.dims)
		}
		idx.norms[i] = norm(f.Embedding)
	}
	return idx, nil
}

// Len returns the number of indexed fragments.
func (idx *Index) Len() int { return len(idx.fragments) }

// Dimensions returns the embedding length, or 0 for an empty index.
func (idx *Index) Dimensions() int { return idx.dims }

// Search returns up to k fragments ordered by descending cosine similarity.
// Ties keep ingestion order.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if k <= 0 || len(idx.fragments) == 0 {
		return nil, nil
	}
	if len(query) != idx.dims {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(query), idx.dims)
	}
	qn := norm(query)

	results := make([]Result, len(idx.fragments))
	for i, f := range idx.fragments {
		results[i] = Result{Fragment: f, Score: cosine(query, f.Embedding, qn, idx.norms[i])}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
