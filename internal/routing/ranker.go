package routing

import (
	"bytes"
	"sort"
)

// Scoring weights. Ratings run 0..5; a full five-star rating is worth 50
// points, a featured flag 25, and tier boosts come from the subscription
// plan itself.
const (
	ratingWeight  = 10.0
	featuredBoost = 25.0
)

// Score computes a candidate's priority score.
func Score(c Candidate) float64 {
	score := c.Rating * ratingWeight
	score += float64(c.PriorityBoost)
	if c.Featured {
		score += featuredBoost
	}
	return score
}

// Rank orders candidates by descending score. Ties fall to the candidate
// with more ratings, then to ascending business id so the order is stable
// across runs.
func Rank(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := Score(ranked[i]), Score(ranked[j])
		if si != sj {
			return si > sj
		}
		if ranked[i].RatingCount != ranked[j].RatingCount {
			return ranked[i].RatingCount > ranked[j].RatingCount
		}
		return bytes.Compare(ranked[i].BusinessID[:], ranked[j].BusinessID[:]) < 0
	})
	return ranked
}
