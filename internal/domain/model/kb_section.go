package model

import "math"

// KBSection is one chunk of the renderer knowledge base, keyed
// "file.md::Heading". Embeddings are stored L2-normalized so retrieval can
// rank by plain dot product.
type KBSection struct {
	ID        string
	Body      string
	Embedding []float32
}

// Normalize scales v to unit length in place and returns it.
// Zero vectors are returned untouched.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Dot returns the inner product of two equal-length vectors; for
// normalized vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
