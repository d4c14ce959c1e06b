package vectorstore

import "math"

// cosineSimilarity returns dot(a,b) / (‖a‖·‖b‖).
//
// Mismatched lengths and zero-norm vectors yield 0 rather than an error, so
// a query never fails against inconsistent persisted data. Accumulation is
// done in float64 to keep the result stable for long vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
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
