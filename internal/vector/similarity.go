package vector

import "math"

// dot returns the inner product of two equal-length vectors. For normalized
// inputs this equals cosine similarity.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize returns a unit-norm copy of v. A zero vector is returned as a
// copy unchanged rather than divided by zero; it scores 0 against everything,
// which is the defined degenerate behavior.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range out {
		out[i] *= norm
	}
	return out
}
