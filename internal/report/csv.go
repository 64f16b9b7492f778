package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/guarzo/vinyldeals/internal/model"
)

var csvHeaders = []string{
	"Rank", "Seller", "SellerKey", "Type", "Score", "ScoreValue", "Items", "WantlistMatches",
	"ItemsCost", "ShippingCost", "TotalCost", "Currency", "ListingIDs", "Breakdown",
}

// WriteRecommendationsCSV writes recommendations in ranked order. Text cells
// are escaped against formula injection; numeric cells are written as is.
func WriteRecommendationsCSV(w io.Writer, recs []model.DealRecommendation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i, r := range recs {
		row := []string{
			strconv.Itoa(i + 1),
			EscapeCSVCell(r.SellerName),
			EscapeCSVCell(r.SellerKey),
			string(r.Type),
			string(r.Score),
			strconv.FormatFloat(r.ScoreValue, 'f', 1, 64),
			strconv.Itoa(r.TotalItems),
			strconv.Itoa(r.WantlistMatches),
			r.ItemsCost.Amount.StringFixed(2),
			r.ShippingCost.Amount.StringFixed(2),
			r.EstimatedTotalCost.Amount.StringFixed(2),
			r.EstimatedTotalCost.Currency,
			EscapeCSVCell(strings.Join(r.ListingIDs, ";")),
			EscapeCSVCell(r.Breakdown),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
