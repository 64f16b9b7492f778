package report

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/guarzo/vinyldeals/internal/model"
)

// RecommendationsTable renders ranked recommendations for a terminal.
func RecommendationsTable(recs []model.DealRecommendation) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Seller", "Deal", "Score", "Items", "Wanted", "Items Cost", "Shipping", "Total"})

	for i, r := range recs {
		tw.AppendRow(table.Row{
			i + 1,
			r.SellerName,
			dealLabel(r.Type),
			fmt.Sprintf("%s (%.1f)", r.Score, r.ScoreValue),
			r.TotalItems,
			r.WantlistMatches,
			money(r.ItemsCost),
			money(r.ShippingCost),
			money(r.EstimatedTotalCost),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})
	return tw.Render()
}

// SnapshotSummary renders the run header and any warnings.
func SnapshotSummary(snap *model.AnalysisSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search run %s (analysis %s)\n", snap.SearchRunID, snap.AnalysisID)
	fmt.Fprintf(&b, "Created %s, destination %s, currency %s\n",
		snap.CreatedAt.Format("2006-01-02 15:04:05 MST"), orDash(snap.Destination), snap.Currency)
	fmt.Fprintf(&b, "Listings: %d received, %d analyzed, %d malformed; %d items, %d sellers (%d skipped)\n",
		snap.Stats.ListingsReceived, snap.Stats.ListingsAnalyzed, snap.Stats.ListingsMalformed,
		len(snap.Items), len(snap.Sellers), snap.Stats.SellersSkipped)
	if snap.Stats.EmptyResultSet {
		b.WriteString("No usable listings in this run.\n")
	}

	if len(snap.Warnings) > 0 {
		tw := table.NewWriter()
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Warning", "Ref", "Message"})
		for _, w := range snap.Warnings {
			tw.AppendRow(table.Row{w.Kind, w.Ref, w.Message})
		}
		b.WriteString(tw.Render())
		b.WriteString("\n")
	}
	return b.String()
}

func dealLabel(t model.DealType) string {
	if t == model.MultiItemDeal {
		return "bundle"
	}
	return "single"
}

func money(m model.Money) string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
