package ingest

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/guarzo/vinyldeals/internal/model"
	"github.com/guarzo/vinyldeals/internal/seller"
)

// DiscogsListing is a marketplace listing as returned by the Discogs API.
type DiscogsListing struct {
	ID              json.Number    `json:"id"`
	Condition       string         `json:"condition"`
	SleeveCondition string         `json:"sleeve_condition"`
	ShipsFrom       string         `json:"ships_from"`
	Price           DiscogsPrice   `json:"price"`
	Seller          DiscogsSeller  `json:"seller"`
	Release         DiscogsRelease `json:"release"`
}

// DiscogsPrice is a Discogs price. Value may be a number or a string.
type DiscogsPrice struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
}

// DiscogsSeller carries the seller's rating summary.
type DiscogsSeller struct {
	ID       json.Number `json:"id"`
	Username string      `json:"username"`
	Location string      `json:"location"`
	Stats    struct {
		Rating string `json:"rating"` // percentage as text, e.g. "99.8"
		Total  int    `json:"total"`
	} `json:"stats"`
}

// DiscogsRelease is the release summary embedded in a listing.
type DiscogsRelease struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Artist      string      `json:"artist"`
	Year        json.Number `json:"year"`
	Description string      `json:"description"`
}

// Normalize converts the payload into a listing. It never fails; missing
// fields surface as validation problems later in the pipeline.
func (d DiscogsListing) Normalize() model.Listing {
	title, artist := d.Release.Title, d.Release.Artist
	if title == "" || artist == "" {
		descArtist, descTitle := splitArtistTitle(stripFormatSuffix(d.Release.Description))
		if title == "" {
			title = descTitle
		}
		if artist == "" {
			artist = descArtist
		}
	}

	location := d.Seller.Location
	if location == "" {
		location = d.ShipsFrom
	}
	rating, _ := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(d.Seller.Stats.Rating), "%"), 64)

	s := model.Seller{
		Platform:      model.PlatformDiscogs,
		SellerID:      sellerID(d.Seller.ID.String(), d.Seller.Username),
		DisplayName:   d.Seller.Username,
		Location:      location,
		CountryCode:   seller.NormalizeCountryCode(location),
		FeedbackScore: rating,
		FeedbackCount: d.Seller.Stats.Total,
		PositivePct:   rating,
	}

	return model.Listing{
		Platform:        model.PlatformDiscogs,
		ListingID:       d.ID.String(),
		ReleaseID:       d.Release.ID.String(),
		RawTitle:        title,
		RawArtist:       artist,
		RawYear:         d.Release.Year.String(),
		Price:           parseMoney(d.Price.Value.String(), d.Price.Currency),
		MediaCondition:  model.NormalizeCondition(d.Condition),
		SleeveCondition: model.NormalizeCondition(d.SleeveCondition),
		Seller:          s,
	}
}

// stripFormatSuffix drops a trailing "(LP, Album)" style format summary.
func stripFormatSuffix(desc string) string {
	desc = strings.TrimSpace(desc)
	if strings.HasSuffix(desc, ")") {
		if i := strings.LastIndex(desc, " ("); i > 0 {
			return desc[:i]
		}
	}
	return desc
}

// splitArtistTitle splits "Artist - Title". Without a separator the whole
// string is the title.
func splitArtistTitle(s string) (artist, title string) {
	if i := strings.Index(s, " - "); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+3:])
	}
	return "", strings.TrimSpace(s)
}

func sellerID(id, username string) string {
	if id != "" && id != "0" {
		return id
	}
	return username
}

// parseMoney keeps the amount exact. Unparseable amounts become a negative
// sentinel so validation rejects the listing instead of pricing it at zero.
func parseMoney(amount, currency string) model.Money {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		d = decimal.NewFromInt(-1)
	}
	return model.Money{Amount: d, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}
