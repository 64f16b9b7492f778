package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/guarzo/vinyldeals/internal/model"
	"github.com/guarzo/vinyldeals/internal/seller"
)

// EbayItem is an item summary from the eBay Browse API.
type EbayItem struct {
	ItemID           string       `json:"itemId"`
	LegacyItemID     string       `json:"legacyItemId"`
	Title            string       `json:"title"`
	Price            EbayAmount   `json:"price"`
	Condition        string       `json:"condition"`
	Seller           EbaySeller   `json:"seller"`
	ItemLocation     EbayLocation `json:"itemLocation"`
	LocalizedAspects []EbayAspect `json:"localizedAspects"`
}

// EbayAmount is a Browse API amount; value is a decimal string.
type EbayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// EbaySeller is the Browse API seller summary. FeedbackScore is a rating
// count, not a percentage.
type EbaySeller struct {
	Username           string `json:"username"`
	FeedbackPercentage string `json:"feedbackPercentage"`
	FeedbackScore      int    `json:"feedbackScore"`
}

// EbayLocation is where the item ships from.
type EbayLocation struct {
	City            string `json:"city"`
	StateOrProvince string `json:"stateOrProvince"`
	PostalCode      string `json:"postalCode"`
	Country         string `json:"country"`
}

// EbayAspect is one item specific such as "Artist" or "Release Year".
type EbayAspect struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// formatNoise matches format and grading words sellers pad eBay titles with.
var formatNoise = regexp.MustCompile(`(?i)\b\d{1,2}(?:"|''|in\b|inch\b)|\b(?:\d{2,3}\s?(?:g|gram)|lp|2lp|vinyl|` +
	`stereo|mono|sealed|mint|nm|vg|1st press(?:ing)?|first press(?:ing)?|reissue|import|limited edition|` +
	`colou?red vinyl|gatefold|free shipping)\b`)

// yearInTitle matches a standalone release year in a title.
var yearInTitle = regexp.MustCompile(`\b(19[0-9]{2}|20[0-9]{2})\b`)

// Normalize converts the payload into a listing. It never fails.
func (e EbayItem) Normalize() model.Listing {
	aspects := make(map[string]string, len(e.LocalizedAspects))
	for _, a := range e.LocalizedAspects {
		aspects[strings.ToLower(strings.TrimSpace(a.Name))] = htmlText(a.Value)
	}

	rawTitle := htmlText(e.Title)
	title := rawTitle
	artist := aspects["artist"]
	if a, t := splitArtistTitle(title); a != "" {
		if artist == "" {
			artist = a
		}
		title = t
	}
	if t := aspects["release title"]; t != "" {
		title = t
	} else {
		title = cleanEbayTitle(title)
	}

	year := aspects["release year"]
	if year == "" {
		year = aspects["year"]
	}
	if year == "" {
		year = titleYear(rawTitle, title)
	}

	condition := e.Condition
	if grade := aspects["record grading"]; grade != "" {
		condition = grade
	}

	percentage, _ := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(e.Seller.FeedbackPercentage), "%"), 64)
	location := ebayLocation(e.ItemLocation)
	country := strings.ToUpper(strings.TrimSpace(e.ItemLocation.Country))
	if len(country) != 2 {
		country = seller.NormalizeCountryCode(location)
	}

	id := e.LegacyItemID
	if id == "" {
		id = e.ItemID
	}

	return model.Listing{
		Platform:        model.PlatformEbay,
		ListingID:       id,
		ReleaseID:       aspects["discogs release id"],
		RawTitle:        title,
		RawArtist:       artist,
		RawYear:         year,
		Price:           parseMoney(e.Price.Value, e.Price.Currency),
		MediaCondition:  model.NormalizeCondition(condition),
		SleeveCondition: model.NormalizeCondition(aspects["sleeve grading"]),
		Seller: model.Seller{
			Platform:      model.PlatformEbay,
			SellerID:      e.Seller.Username,
			DisplayName:   e.Seller.Username,
			Location:      location,
			CountryCode:   country,
			FeedbackScore: percentage,
			FeedbackCount: e.Seller.FeedbackScore,
			PositivePct:   percentage,
		},
	}
}

// cleanEbayTitle removes format noise and years from a title. When only years
// are left the first one is the title, as in "1999 LP 1982".
func cleanEbayTitle(title string) string {
	cleaned := tidyTitle(formatNoise.ReplaceAllString(title, " "))
	if cleaned == "" {
		return title
	}
	if withoutYears := tidyTitle(yearInTitle.ReplaceAllString(cleaned, " ")); withoutYears != "" {
		return withoutYears
	}
	return strings.Fields(cleaned)[0]
}

func tidyTitle(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), " -/|,")
}

// titleYear returns the first year in rawTitle that is not a word of the
// release title itself.
func titleYear(rawTitle, title string) string {
	words := make(map[string]bool)
	for _, w := range strings.Fields(title) {
		words[w] = true
	}
	for _, m := range yearInTitle.FindAllString(rawTitle, -1) {
		if !words[m] {
			return m
		}
	}
	return ""
}

func ebayLocation(loc EbayLocation) string {
	var parts []string
	for _, p := range []string{loc.City, strings.TrimSpace(loc.StateOrProvince + " " + loc.PostalCode), loc.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
