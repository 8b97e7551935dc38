package similarity

import "gonum.org/v1/gonum/floats"

// cosine returns the cosine similarity of a and b given their L2 norms.
// A zero vector is similar to nothing.
func cosine(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

// euclideanSimilarity maps the L2 distance into (0, 1].
func euclideanSimilarity(a, b []float64) float64 {
	return 1 / (1 + floats.Distance(a, b, 2))
}

// distance is the neighbor index metric: cosine distance or L2 distance.
func distance(metric Metric, a, b []float64, normA, normB float64) float64 {
	if metric == MetricEuclidean {
		return floats.Distance(a, b, 2)
	}
	return 1 - cosine(a, b, normA, normB)
}

func rowNorms(rows int, row func(int) []float64) []float64 {
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = floats.Norm(row(i), 2)
	}
	return out
}
