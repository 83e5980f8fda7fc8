package treenlp

import "math"

// SparseVector is a TF-IDF weighted token vector with its precomputed L2 norm.
type SparseVector struct {
	Weights map[string]float64
	Norm    float64
}

// IDF computes smoothed inverse document frequencies over the corpus:
// log((N+1)/(df+1)) + 1.
func IDF(documents [][]string) map[string]float64 {
	df := make(map[string]int)
	for _, doc := range documents {
		for t := range toSet(doc) {
			df[t]++
		}
	}
	n := float64(len(documents))
	idf := make(map[string]float64, len(df))
	for t, freq := range df {
		idf[t] = math.Log((n+1.0)/(float64(freq)+1.0)) + 1.0
	}
	return idf
}

// TFIDF vectorizes every document against the corpus-wide IDF.
func TFIDF(documents [][]string) []SparseVector {
	if len(documents) == 0 {
		return nil
	}
	idf := IDF(documents)
	vectors := make([]SparseVector, 0, len(documents))
	for _, doc := range documents {
		sv := SparseVector{Weights: make(map[string]float64)}
		if len(doc) == 0 {
			vectors = append(vectors, sv)
			continue
		}
		tf := make(map[string]int, len(doc))
		for _, t := range doc {
			tf[t]++
		}
		total := float64(len(doc))
		var normSq float64
		for t, count := range tf {
			w := (float64(count) / total) * idf[t]
			sv.Weights[t] = w
			normSq += w * w
		}
		if normSq > 0 {
			sv.Norm = math.Sqrt(normSq)
		}
		vectors = append(vectors, sv)
	}
	return vectors
}

// Cosine is the cosine similarity of two sparse vectors.
func Cosine(a, b SparseVector) float64 {
	if a.Norm == 0 || b.Norm == 0 {
		return 0
	}
	fewer, more := a, b
	if len(fewer.Weights) > len(more.Weights) {
		fewer, more = more, fewer
	}
	var dot float64
	for t, wa := range fewer.Weights {
		if wb, ok := more.Weights[t]; ok {
			dot += wa * wb
		}
	}
	return dot / (a.Norm * b.Norm)
}
