package embed

import (
	"errors"
	"math"
)

var errDimensionMismatch = errors.New("embedding dimensions differ")

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// MeanPool averages vectors of equal dimension and normalises the result.
func MeanPool(vecs [][]float32) ([]float32, error) {
	if len(vecs) == 0 {
		return nil, errors.New("no vectors to pool")
	}
	if len(vecs) == 1 {
		return Normalize(vecs[0]), nil
	}

	dim := len(vecs[0])
	acc := make([]float64, dim)
	for _, v := range vecs {
		if len(v) != dim {
			return nil, errDimensionMismatch
		}
		for i, x := range v {
			acc[i] += float64(x)
		}
	}

	out := make([]float32, dim)
	for i := range acc {
		out[i] = float32(acc[i] / float64(len(vecs)))
	}
	return Normalize(out), nil
}
