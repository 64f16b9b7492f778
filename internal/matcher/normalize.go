package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText lowercases s, folds diacritics, strips bracketed qualifiers
// such as "(Remastered)" or "[Deluxe Edition]", and reduces everything that
// is not a letter or digit to single spaces. The result is idempotent:
// NormalizeText(NormalizeText(s)) == NormalizeText(s).
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	s = foldDiacritics(strings.ToLower(s))
	s = stripBrackets(s)

	src := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range src {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’' || r == '`':
			// don't -> dont
		case r == '.' && i > 0 && i+1 < len(src) && unicode.IsLetter(src[i-1]) && unicode.IsLetter(src[i+1]):
			// r.e.m -> rem
		case r == '&':
			b.WriteString(" and ")
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeArtist applies NormalizeText and then drops a leading or trailing
// "the" so "The Beatles" and Discogs' "Beatles, The" agree.
func NormalizeArtist(s string) string {
	words := strings.Fields(NormalizeText(s))
	for len(words) > 1 {
		switch {
		case words[0] == "the":
			words = words[1:]
		case words[len(words)-1] == "the":
			words = words[:len(words)-1]
		default:
			return strings.Join(words, " ")
		}
	}
	return strings.Join(words, " ")
}

func foldDiacritics(s string) string {
	// transform.Chain is stateful, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

var bracketPairs = map[rune]rune{')': '(', ']': '[', '}': '{'}

// stripBrackets removes balanced bracket groups with their contents and drops
// stray bracket characters. If removing the groups would leave nothing, only
// the bracket characters are dropped so a title like "[Untitled]" survives.
func stripBrackets(s string) string {
	if !strings.ContainsAny(s, "()[]{}") {
		return s
	}

	src := []rune(s)
	drop := make([]bool, len(src))
	type open struct {
		r   rune
		pos int
	}
	var stack []open
	for i, r := range src {
		switch r {
		case '(', '[', '{':
			stack = append(stack, open{r: r, pos: i})
		case ')', ']', '}':
			if n := len(stack); n > 0 && stack[n-1].r == bracketPairs[r] {
				for j := stack[n-1].pos; j <= i; j++ {
					drop[j] = true
				}
				stack = stack[:n-1]
			} else {
				drop[i] = true
			}
		}
	}
	for _, o := range stack {
		drop[o.pos] = true
	}

	var kept, bare strings.Builder
	for i, r := range src {
		if !drop[i] {
			kept.WriteRune(r)
		}
		if !strings.ContainsRune("()[]{}", r) {
			bare.WriteRune(r)
		}
	}
	if strings.TrimFunc(kept.String(), isSeparator) == "" {
		return bare.String()
	}
	return kept.String()
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
