package rag

import (
	"math"
	"sort"
)

// Match is a chunk returned from a similarity search.
type Match struct {
	Text  string
	Score float64
}

// VectorIndex is an in-memory set of chunk embeddings searched by cosine
// similarity. It is immutable after construction.
type VectorIndex struct {
	texts   []string
	vectors [][]float32
}

func NewVectorIndex(texts []string, vectors [][]float32) *VectorIndex {
	return &VectorIndex{texts: texts, vectors: vectors}
}

func (v *VectorIndex) Len() int {
	return len(v.texts)
}

// Search returns the k chunks most similar to query, best first.
func (v *VectorIndex) Search(query []float32, k int) []Match {
	if k <= 0 || len(v.texts) == 0 {
		return nil
	}

	matches := make([]Match, len(v.texts))
	for i, vec := range v.vectors {
		matches[i] = Match{Text: v.texts[i], Score: cosineSimilarity(query, vec)}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}

// Texts returns the chunk texts of matches.
func Texts(matches []Match) []string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return texts
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
