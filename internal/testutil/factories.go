// Package testutil generates listing fixtures for tests.
package testutil

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/guarzo/vinyldeals/internal/model"
)

// sellerLocations pairs free text locations with the country code the seller
// analyzer derives from them.
var sellerLocations = [][2]string{
	{"Portland, OR", "US"},
	{"Brooklyn, NY", "US"},
	{"Hamburg, Germany", "DE"},
	{"London, United Kingdom", "GB"},
	{"Toronto, Canada", "CA"},
	{"Osaka, Japan", "JP"},
}

var conditions = []string{"Mint (M)", "Near Mint (NM or M-)", "Very Good Plus (VG+)", "Very Good (VG)", "Good Plus (G+)"}

// Release is a title/artist/year triple that generated listings repeat.
type Release struct {
	ID     string
	Title  string
	Artist string
	Year   int
}

// ListingFactory generates plausible vinyl listings. Factories built with the
// same non-zero seed produce the same values.
type ListingFactory struct {
	faker    *gofakeit.Faker
	releases []Release
	next     int
}

// NewListingFactory creates a factory. A zero seed is random.
func NewListingFactory(seed int64) *ListingFactory {
	return &ListingFactory{faker: gofakeit.New(seed)}
}

// Release returns a new random release and remembers it for Listings.
func (f *ListingFactory) Release() Release {
	r := Release{
		ID:     f.faker.Numerify("r######"),
		Title:  titleCase(f.faker.Adjective() + " " + f.faker.Noun()),
		Artist: f.artist(),
		Year:   f.faker.Number(1955, 2023),
	}
	f.releases = append(f.releases, r)
	return r
}

func (f *ListingFactory) artist() string {
	if f.faker.Bool() {
		return "The " + titleCase(f.faker.Adjective()+" "+f.faker.Noun()+"s")
	}
	return f.faker.FirstName() + " " + f.faker.LastName()
}

// Seller returns a seller on platform with a strong feedback record.
func (f *ListingFactory) Seller(platform model.Platform) model.Seller {
	loc := sellerLocations[f.faker.Number(0, len(sellerLocations)-1)]
	score := f.faker.Float64Range(95, 100)
	return model.Seller{
		Platform:      platform,
		SellerID:      strings.ToLower(f.faker.Username()),
		DisplayName:   f.faker.Company(),
		Location:      loc[0],
		CountryCode:   loc[1],
		FeedbackScore: score,
		FeedbackCount: f.faker.Number(50, 5000),
		PositivePct:   score,
	}
}

// Listing returns a listing of r offered by s.
func (f *ListingFactory) Listing(r Release, s model.Seller) model.Listing {
	f.next++
	price := decimal.NewFromFloat(f.faker.Price(8, 120)).Round(2)
	return model.Listing{
		Platform:        s.Platform,
		ListingID:       fmt.Sprintf("%d", 100000+f.next),
		ReleaseID:       r.ID,
		RawTitle:        r.Title,
		RawArtist:       r.Artist,
		RawYear:         fmt.Sprintf("%d", r.Year),
		Price:           model.Money{Amount: price, Currency: "USD"},
		MediaCondition:  model.NormalizeCondition(f.faker.RandomString(conditions)),
		SleeveCondition: model.NormalizeCondition(f.faker.RandomString(conditions)),
		Seller:          s,
	}
}

// Listings returns n listings spread over a few sellers on both platforms.
// Releases repeat across sellers so runs see competing offers.
func (f *ListingFactory) Listings(n int) []model.Listing {
	sellers := make([]model.Seller, 0, n/3+1)
	for i := 0; i < cap(sellers); i++ {
		platform := model.PlatformDiscogs
		if i%2 == 1 {
			platform = model.PlatformEbay
		}
		sellers = append(sellers, f.Seller(platform))
	}
	for len(f.releases) < n/2+1 {
		f.Release()
	}

	out := make([]model.Listing, 0, n)
	for i := 0; i < n; i++ {
		r := f.releases[f.faker.Number(0, len(f.releases)-1)]
		out = append(out, f.Listing(r, sellers[i%len(sellers)]))
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
