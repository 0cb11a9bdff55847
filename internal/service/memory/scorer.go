package memory

import (
	"math"
	"sort"
	"time"

	"github.com/sandevgo/recall/internal/core"
)

// NormEpsilon keeps min-max normalisation finite when every semantic score is equal.
const NormEpsilon = 1e-8

// Score computes semantic, recency and hybrid scores for each candidate.
// Candidates whose embedding dimension does not match the query are dropped;
// the second return value counts them. Output keeps input order.
func Score(candidates []core.Candidate, query []float32, w core.Weights, now time.Time) ([]core.ScoredCandidate, int) {
	scored := make([]core.ScoredCandidate, 0, len(candidates))
	skipped := 0

	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			skipped++
			continue
		}
		scored = append(scored, core.ScoredCandidate{
			Candidate: c,
			Semantic:  dot(c.Embedding, query),
			Recency:   Recency(c.CreatedAt, now),
		})
	}

	if len(scored) == 0 {
		return scored, skipped
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scored {
		lo = math.Min(lo, s.Semantic)
		hi = math.Max(hi, s.Semantic)
	}

	span := hi - lo
	if span == 0 {
		span = NormEpsilon
	}

	for i := range scored {
		if len(scored) == 1 {
			scored[i].SemanticNorm = 1.0
		} else {
			scored[i].SemanticNorm = (scored[i].Semantic - lo) / span
		}
		scored[i].Score = w.Semantic*scored[i].SemanticNorm + w.Recency*scored[i].Recency
	}

	return scored, skipped
}

// Rank orders scored candidates by descending hybrid score. The sort is stable:
// equal scores keep their input order, which is ascending message id.
func Rank(scored []core.ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}

// Recency decays as 1/(1+hours). Timestamps in the future count as age zero.
func Recency(created, now time.Time) float64 {
	hours := now.Sub(created).Hours()
	if hours < 0 {
		hours = 0
	}
	return 1 / (1 + hours)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
