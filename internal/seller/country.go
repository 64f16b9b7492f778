package seller

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var countryNames = map[string]string{
	"united states": "US", "united states of america": "US", "usa": "US", "us": "US", "america": "US",
	"canada": "CA", "kanada": "CA",
	"united kingdom": "GB", "uk": "GB", "great britain": "GB", "england": "GB", "scotland": "GB", "wales": "GB",
	"northern ireland": "GB", "ireland": "IE", "eire": "IE",
	"germany": "DE", "deutschland": "DE", "france": "FR", "netherlands": "NL", "the netherlands": "NL",
	"holland": "NL", "belgium": "BE", "luxembourg": "LU", "spain": "ES", "espana": "ES", "portugal": "PT",
	"italy": "IT", "italia": "IT", "austria": "AT", "osterreich": "AT", "switzerland": "CH", "schweiz": "CH",
	"denmark": "DK", "sweden": "SE", "sverige": "SE", "norway": "NO", "norge": "NO", "finland": "FI",
	"iceland": "IS", "poland": "PL", "polska": "PL", "czech republic": "CZ", "czechia": "CZ", "slovakia": "SK",
	"hungary": "HU", "slovenia": "SI", "croatia": "HR", "greece": "GR", "romania": "RO", "bulgaria": "BG",
	"estonia": "EE", "latvia": "LV", "lithuania": "LT", "malta": "MT", "cyprus": "CY", "serbia": "RS",
	"ukraine": "UA", "russia": "RU", "russian federation": "RU", "turkey": "TR", "turkiye": "TR",
	"japan": "JP", "south korea": "KR", "korea": "KR", "china": "CN", "hong kong": "HK", "taiwan": "TW",
	"singapore": "SG", "malaysia": "MY", "thailand": "TH", "philippines": "PH", "indonesia": "ID",
	"india": "IN", "australia": "AU", "new zealand": "NZ", "mexico": "MX", "brazil": "BR", "brasil": "BR",
	"argentina": "AR", "chile": "CL", "colombia": "CO", "peru": "PE", "uruguay": "UY", "south africa": "ZA",
	"israel": "IL", "united arab emirates": "AE", "uae": "AE",
}

var isoCodes = map[string]bool{
	"us": true, "ca": true, "gb": true, "ie": true, "de": true, "fr": true, "nl": true, "be": true, "lu": true,
	"es": true, "pt": true, "it": true, "at": true, "ch": true, "dk": true, "se": true, "no": true, "fi": true,
	"is": true, "pl": true, "cz": true, "sk": true, "hu": true, "si": true, "hr": true, "gr": true, "ro": true,
	"bg": true, "ee": true, "lv": true, "lt": true, "mt": true, "cy": true, "rs": true, "ua": true, "ru": true,
	"tr": true, "jp": true, "kr": true, "cn": true, "hk": true, "tw": true, "sg": true, "my": true, "th": true,
	"ph": true, "id": true, "in": true, "au": true, "nz": true, "mx": true, "br": true, "ar": true, "cl": true,
	"co": true, "pe": true, "uy": true, "za": true, "il": true, "ae": true,
}

var usStates = map[string]bool{
	"al": true, "alabama": true, "ak": true, "alaska": true, "az": true, "arizona": true, "ar": true,
	"arkansas": true, "ca": true, "california": true, "co": true, "colorado": true, "ct": true,
	"connecticut": true, "de": true, "delaware": true, "fl": true, "florida": true, "ga": true, "georgia": true,
	"hi": true, "hawaii": true, "id": true, "idaho": true, "il": true, "illinois": true, "in": true,
	"indiana": true, "ia": true, "iowa": true, "ks": true, "kansas": true, "ky": true, "kentucky": true,
	"la": true, "louisiana": true, "me": true, "maine": true, "md": true, "maryland": true, "ma": true,
	"massachusetts": true, "mi": true, "michigan": true, "mn": true, "minnesota": true, "ms": true,
	"mississippi": true, "mo": true, "missouri": true, "mt": true, "montana": true, "ne": true,
	"nebraska": true, "nv": true, "nevada": true, "nh": true, "new hampshire": true, "nj": true,
	"new jersey": true, "nm": true, "new mexico": true, "ny": true, "new york": true, "nc": true,
	"north carolina": true, "nd": true, "north dakota": true, "oh": true, "ohio": true, "ok": true,
	"oklahoma": true, "or": true, "oregon": true, "pa": true, "pennsylvania": true, "ri": true,
	"rhode island": true, "sc": true, "south carolina": true, "sd": true, "south dakota": true, "tn": true,
	"tennessee": true, "tx": true, "texas": true, "ut": true, "utah": true, "vt": true, "vermont": true,
	"va": true, "virginia": true, "wa": true, "washington": true, "wv": true, "west virginia": true,
	"wi": true, "wisconsin": true, "wy": true, "wyoming": true, "dc": true, "district of columbia": true,
	"pr": true, "puerto rico": true,
}

var caProvinces = map[string]bool{
	"ab": true, "alberta": true, "bc": true, "british columbia": true, "mb": true, "manitoba": true,
	"nb": true, "new brunswick": true, "nl": true, "newfoundland": true, "newfoundland and labrador": true,
	"ns": true, "nova scotia": true, "on": true, "ontario": true, "pe": true, "prince edward island": true,
	"qc": true, "quebec": true, "sk": true, "saskatchewan": true, "nt": true, "northwest territories": true,
	"nu": true, "nunavut": true, "yt": true, "yukon": true,
}

var cities = map[string]string{
	"new york city": "US", "nyc": "US", "los angeles": "US", "chicago": "US", "houston": "US",
	"philadelphia": "US", "phoenix": "US", "san francisco": "US", "seattle": "US", "portland": "US",
	"austin": "US", "nashville": "US", "detroit": "US", "boston": "US", "brooklyn": "US", "denver": "US",
	"atlanta": "US", "miami": "US", "minneapolis": "US", "cleveland": "US", "pittsburgh": "US",
	"new orleans": "US", "las vegas": "US", "san diego": "US",
	"toronto": "CA", "montreal": "CA", "vancouver": "CA", "calgary": "CA", "ottawa": "CA", "edmonton": "CA",
	"winnipeg": "CA", "halifax": "CA",
	"london": "GB", "manchester": "GB", "glasgow": "GB", "berlin": "DE", "hamburg": "DE", "munich": "DE",
	"paris": "FR", "amsterdam": "NL", "tokyo": "JP", "osaka": "JP",
}

// zipPattern matches "ST 12345" or "ST 12345-6789" with a US state abbreviation.
var zipPattern = regexp.MustCompile(`\b([a-z]{2}) (\d{5})(?: (\d{4}))?\b`)

// containmentNames holds every multi-letter place name, longest first.
var containmentNames []string

func init() {
	seen := make(map[string]bool)
	add := func(name string) {
		if len(name) > 3 && !seen[name] {
			seen[name] = true
			containmentNames = append(containmentNames, name)
		}
	}
	for name := range countryNames {
		add(name)
	}
	for name := range usStates {
		add(name)
	}
	for name := range caProvinces {
		add(name)
	}
	for name := range cities {
		add(name)
	}
	sort.Slice(containmentNames, func(i, j int) bool {
		if len(containmentNames[i]) != len(containmentNames[j]) {
			return len(containmentNames[i]) > len(containmentNames[j])
		}
		return containmentNames[i] < containmentNames[j]
	})
}

// NormalizeCountryCode derives an ISO-3166 alpha-2 code from a free-text seller
// location, or "" when nothing is recognized.
func NormalizeCountryCode(location string) string {
	text := normalizeLocation(location)
	if text == "" {
		return ""
	}

	var segments []string
	for _, seg := range strings.Split(text, ",") {
		if seg = strings.Join(strings.Fields(seg), " "); seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return ""
	}

	if len(segments) == 1 && isoCodes[segments[0]] {
		return strings.ToUpper(segments[0])
	}

	for i := len(segments) - 1; i >= 0; i-- {
		if code := lookupSegment(segments[i]); code != "" {
			return code
		}
	}

	flat := " " + strings.Join(segments, " ") + " "
	for _, name := range containmentNames {
		if strings.Contains(flat, " "+name+" ") {
			return lookupSegment(name)
		}
	}

	for _, m := range zipPattern.FindAllStringSubmatch(flat, -1) {
		if usStates[m[1]] {
			return "US"
		}
	}

	return ""
}

// lookupSegment resolves a whole segment. State and province abbreviations
// are tried before bare ISO codes, so "Wilmington, DE" is Delaware.
func lookupSegment(seg string) string {
	if code, ok := countryNames[seg]; ok {
		return code
	}
	if usStates[seg] {
		return "US"
	}
	if caProvinces[seg] {
		return "CA"
	}
	if code, ok := cities[seg]; ok {
		return code
	}
	if isoCodes[seg] {
		return strings.ToUpper(seg)
	}
	return ""
}

// normalizeLocation lowercases, folds diacritics and reduces punctuation
// other than commas to spaces. Dots are dropped so "U.S.A." reads "usa".
func normalizeLocation(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == ',':
			b.WriteRune(r)
		case r == '.' || r == '\'':
		default:
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}
