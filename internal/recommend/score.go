package recommend

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/guarzo/vinyldeals/internal/model"
)

// DetermineDealScore bands a score value. Each band includes its lower bound.
func DetermineDealScore(v float64) model.DealScore {
	switch {
	case v >= 90:
		return model.DealExcellent
	case v >= 75:
		return model.DealVeryGood
	case v >= 60:
		return model.DealGood
	case v >= 40:
		return model.DealFair
	default:
		return model.DealPoor
	}
}

// bundleBonus grows with ln(n) and saturates at 100 once n reaches saturation.
func bundleBonus(n, saturation int) float64 {
	if n <= 1 || saturation <= 1 {
		return 0
	}
	return 100 * math.Min(1, math.Log(float64(n))/math.Log(float64(saturation)))
}

// priceCompetitiveness scores a price against the run median of its item: 50
// at the median, higher when cheaper, clamped to [0,100].
func priceCompetitiveness(price, median decimal.Decimal, listings int) float64 {
	if listings <= 1 || !median.IsPositive() {
		return 50
	}
	rel := median.Sub(price).Div(median).InexactFloat64()
	return clamp100(50 + 50*rel)
}

func median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

func clamp100(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
