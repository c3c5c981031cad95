// Package ranking scores upstream search candidates against search criteria
// so every adapter picks the same canonical match for repeated queries.
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/shelfwise/shelfwise/internal/collectable"
)

// Score weights.
const (
	ExactTitleBonus     = 50.0
	SubstringTitleBonus = 25.0
	ExactYearBonus      = 20.0
	NearYearBonus       = 10.0
	CloseYearBonus      = 5.0
	DatedCandidateBonus = 2.0
	ImageBonus          = 2.0
	MaxVoteContribution = 10.0
	VotesPerPoint       = 100.0
)

// Candidate is one raw upstream record plus the signals the ranker reads.
type Candidate[T any] struct {
	Title      string
	Year       int
	Popularity float64
	VoteCount  int
	HasImage   bool
	Raw        T
}

// Ranked is a scored candidate. SourceIndex is its position in the upstream response.
type Ranked[T any] struct {
	Candidate[T]
	Score       float64
	SourceIndex int
}

// Rank scores every candidate and returns them best first. Equal scores keep
// upstream order.
func Rank[T any](candidates []Candidate[T], criteria collectable.SearchCriteria) []Ranked[T] {
	query := collectable.NormalizeText(criteria.Title)

	ranked := make([]Ranked[T], len(candidates))
	for i, c := range candidates {
		ranked[i] = Ranked[T]{
			Candidate:   c,
			Score:       score(query, criteria.Year, c.Title, c.Year, c.Popularity, c.VoteCount, c.HasImage),
			SourceIndex: i,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// PickBest returns the top ranked candidate, or false when there are none.
func PickBest[T any](candidates []Candidate[T], criteria collectable.SearchCriteria) (Ranked[T], bool) {
	ranked := Rank(candidates, criteria)
	if len(ranked) == 0 {
		return Ranked[T]{}, false
	}
	return ranked[0], true
}

// Top returns at most limit ranked candidates. A non-positive limit returns all.
func Top[T any](candidates []Candidate[T], criteria collectable.SearchCriteria, limit int) []Ranked[T] {
	ranked := Rank(candidates, criteria)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Score computes the relevance of a single candidate for criteria.
func Score[T any](c Candidate[T], criteria collectable.SearchCriteria) float64 {
	return score(collectable.NormalizeText(criteria.Title), criteria.Year, c.Title, c.Year, c.Popularity, c.VoteCount, c.HasImage)
}

func score(query string, wantYear int, title string, year int, popularity float64, votes int, hasImage bool) float64 {
	var s float64

	// Popularity is log-damped so it never outweighs an exact title match.
	if popularity > 0 {
		s += math.Log1p(popularity)
	}

	s += titleScore(query, collectable.NormalizeText(title))
	s += yearScore(wantYear, year)

	if votes > 0 {
		s += math.Min(float64(votes)/VotesPerPoint, MaxVoteContribution)
	}
	if hasImage {
		s += ImageBonus
	}
	return s
}

func titleScore(query, title string) float64 {
	if query == "" || title == "" {
		return 0
	}
	if query == title {
		return ExactTitleBonus
	}
	if strings.Contains(title, query) || strings.Contains(query, title) {
		return SubstringTitleBonus
	}
	return 0
}

func yearScore(want, got int) float64 {
	switch {
	case want > 0 && got > 0:
		diff := want - got
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff == 0:
			return ExactYearBonus
		case diff == 1:
			return NearYearBonus
		case diff <= 2:
			return CloseYearBonus
		default:
			return -float64(diff)
		}
	case got > 0:
		return DatedCandidateBonus
	default:
		return 0
	}
}
