package matcher

import "math"

// Weights tunes CalculateSimilarity. Title, Artist and Year are the share of
// the score each term can contribute; YearMismatchPenalty is subtracted when
// both years are known and further apart than ReissueTolerance.
type Weights struct {
	Title               float64 `toml:"title_weight"`
	Artist              float64 `toml:"artist_weight"`
	Year                float64 `toml:"year_weight"`
	ReissueTolerance    int     `toml:"reissue_tolerance"`
	ReissueCredit       float64 `toml:"reissue_credit"`
	YearMismatchPenalty float64 `toml:"year_mismatch_penalty"`
}

// DefaultWeights classifies a same title/artist release one year apart at
// 0.95 and unrelated releases well below 0.5.
func DefaultWeights() Weights {
	return Weights{
		Title:               0.60,
		Artist:              0.30,
		Year:                0.10,
		ReissueTolerance:    1,
		ReissueCredit:       0.5,
		YearMismatchPenalty: 0.15,
	}
}

// Fields is the matchable part of a listing. Year 0 means unknown.
type Fields struct {
	Title  string
	Artist string
	Year   int
}

// CalculateSimilarity returns a weighted similarity in [0,1] between two
// releases. Inputs are normalized first, so raw listing text is accepted.
func CalculateSimilarity(a, b Fields, w Weights) float64 {
	return normalizedSimilarity(
		Fields{Title: NormalizeText(a.Title), Artist: NormalizeArtist(a.Artist), Year: a.Year},
		Fields{Title: NormalizeText(b.Title), Artist: NormalizeArtist(b.Artist), Year: b.Year},
		w,
	)
}

// normalizedSimilarity expects fields already passed through NormalizeText
// and NormalizeArtist.
func normalizedSimilarity(a, b Fields, w Weights) float64 {
	score := w.Title*stringSimilarity(a.Title, b.Title) +
		w.Artist*stringSimilarity(a.Artist, b.Artist) +
		yearTerm(a.Year, b.Year, w)

	if math.IsNaN(score) {
		return 0
	}
	return math.Min(1.0, math.Max(0.0, score))
}

func yearTerm(a, b int, w Weights) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return w.Year
	case diff <= w.ReissueTolerance:
		return w.Year * w.ReissueCredit
	default:
		return -w.YearMismatchPenalty
	}
}

// stringSimilarity is the Levenshtein ratio 1 - d/max(len). An empty side
// contributes nothing rather than a penalty.
func stringSimilarity(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0
	}
	if s1 == s2 {
		return 1.0
	}

	r1, r2 := []rune(s1), []rune(s2)
	maxLen := math.Max(float64(len(r1)), float64(len(r2)))
	distance := levenshteinDistance(r1, r2)

	return math.Max(0, 1.0-float64(distance)/maxLen)
}

// levenshteinDistance calculates edit distance between two rune slices
func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
