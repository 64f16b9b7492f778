package seller

import (
	"strings"
	"testing"

	"github.com/guarzo/vinyldeals/internal/model"
)

func TestIdentitiesResolve(t *testing.T) {
	ids, err := NewIdentities(Aliases{"ebay:S1": " DISCOGS:S1 "})
	if err != nil {
		t.Fatalf("NewIdentities: %v", err)
	}

	ebay := model.Seller{
		Platform:      model.PlatformEbay,
		SellerID:      "S1",
		DisplayName:   "S1 on eBay",
		Location:      "Hamburg",
		FeedbackScore: 99.1,
		FeedbackCount: 40,
	}
	got := ids.Resolve(ebay)
	if got.Key() != "DISCOGS:S1" {
		t.Errorf("Expected DISCOGS:S1, got %s", got.Key())
	}
	if got.DisplayName != ebay.DisplayName || got.Location != ebay.Location || got.FeedbackCount != 40 {
		t.Errorf("Expected profile fields kept, got %+v", got)
	}

	other := model.Seller{Platform: model.PlatformEbay, SellerID: "s1"}
	if got := ids.Resolve(other); got != other {
		t.Errorf("Expected seller ids to match exactly, got %+v", got)
	}
	canonical := model.Seller{Platform: model.PlatformDiscogs, SellerID: "S1"}
	if got := ids.Resolve(canonical); got != canonical {
		t.Errorf("Expected canonical seller unchanged, got %+v", got)
	}
	if ids.Len() != 1 {
		t.Errorf("Expected 1 alias, got %d", ids.Len())
	}
}

func TestIdentitiesResolve_Nil(t *testing.T) {
	var ids *Identities
	s := model.Seller{Platform: model.PlatformEbay, SellerID: "S1"}
	if got := ids.Resolve(s); got != s {
		t.Errorf("Expected nil resolver to return seller unchanged, got %+v", got)
	}
}

func TestAliasesValidate(t *testing.T) {
	tests := []struct {
		name    string
		aliases Aliases
		errMsg  string
	}{
		{"empty", nil, ""},
		{"valid", Aliases{"EBAY:a": "DISCOGS:a", "EBAY:b": "DISCOGS:a"}, ""},
		{"missing_separator", Aliases{"EBAY": "DISCOGS:a"}, "expected PLATFORM:sellerID"},
		{"unknown_platform", Aliases{"AMAZON:a": "DISCOGS:a"}, "unknown platform"},
		{"missing_id", Aliases{"EBAY:a": "DISCOGS: "}, "missing seller id"},
		{"self", Aliases{"EBAY:a": "ebay:a"}, "points at itself"},
		{"duplicate", Aliases{"EBAY:a": "DISCOGS:a", "ebay:a": "DISCOGS:b"}, "listed twice"},
		{"chain", Aliases{"EBAY:a": "DISCOGS:a", "DISCOGS:a": "EBAY:b"}, "itself an alias"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.aliases.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestNewIdentities_Invalid(t *testing.T) {
	if _, err := NewIdentities(Aliases{"EBAY:a": "EBAY:a"}); err == nil {
		t.Error("Expected error for self alias")
	}
}
