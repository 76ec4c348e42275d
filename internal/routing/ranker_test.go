package routing

import (
	"testing"

	"github.com/google/uuid"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name string
		cand Candidate
		want float64
	}{
		{"rating only", Candidate{Rating: 4.5}, 45},
		{"tier boost added", Candidate{Rating: 3.0, PriorityBoost: 20}, 50},
		{"featured added", Candidate{Rating: 4.0, Featured: true}, 65},
		{"all components", Candidate{Rating: 5.0, PriorityBoost: 30, Featured: true}, 105},
		{"zero candidate", Candidate{}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.cand); got != tc.want {
				t.Errorf("Score() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRankOrdersByScore(t *testing.T) {
	low := Candidate{BusinessID: uuid.New(), Rating: 3.0}
	boosted := Candidate{BusinessID: uuid.New(), Rating: 3.0, PriorityBoost: 20}
	featured := Candidate{BusinessID: uuid.New(), Rating: 4.0, Featured: true}

	ranked := Rank([]Candidate{low, boosted, featured})

	if ranked[0].BusinessID != featured.BusinessID {
		t.Errorf("expected featured candidate first, got %s", ranked[0].BusinessID)
	}
	if ranked[1].BusinessID != boosted.BusinessID {
		t.Errorf("expected boosted candidate second, got %s", ranked[1].BusinessID)
	}
	if ranked[2].BusinessID != low.BusinessID {
		t.Errorf("expected unboosted candidate last, got %s", ranked[2].BusinessID)
	}
}

func TestRankTieBreaks(t *testing.T) {
	// Equal scores: more ratings wins.
	fewRatings := Candidate{BusinessID: uuid.New(), Rating: 4.0, RatingCount: 3}
	manyRatings := Candidate{BusinessID: uuid.New(), Rating: 4.0, RatingCount: 120}

	ranked := Rank([]Candidate{fewRatings, manyRatings})
	if ranked[0].BusinessID != manyRatings.BusinessID {
		t.Errorf("expected candidate with more ratings first")
	}

	// Fully tied: ascending business id, so the order is reproducible.
	idA := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idB := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	tiedA := Candidate{BusinessID: idA, Rating: 4.0, RatingCount: 10}
	tiedB := Candidate{BusinessID: idB, Rating: 4.0, RatingCount: 10}

	for _, input := range [][]Candidate{{tiedA, tiedB}, {tiedB, tiedA}} {
		ranked := Rank(input)
		if ranked[0].BusinessID != idA {
			t.Errorf("expected lowest business id first regardless of input order")
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	first := Candidate{BusinessID: uuid.New(), Rating: 1.0}
	second := Candidate{BusinessID: uuid.New(), Rating: 5.0}
	input := []Candidate{first, second}

	Rank(input)

	if input[0].BusinessID != first.BusinessID {
		t.Error("Rank mutated its input slice")
	}
}
