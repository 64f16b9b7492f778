package matcher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ErrUnparseableYear is returned by ParseYear for year text that is present
// but cannot be coerced to a plausible release year.
var ErrUnparseableYear = errors.New("unparseable year")

// firstRecordYear is the year of the earliest commercial phonograph records.
const firstRecordYear = 1877

var absentYears = map[string]bool{
	"":        true,
	"0":       true,
	"unknown": true,
	"n/a":     true,
	"na":      true,
	"none":    true,
	"-":       true,
	"?":       true,
}

// ParseYear coerces raw year text. Absent markers yield 0 with no error. Text
// such as "1959-03-17" or "c. 1970" yields the first plausible 4-digit year.
func ParseYear(raw string) (int, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if absentYears[trimmed] {
		return 0, nil
	}

	maxYear := time.Now().Year() + 1
	var run []rune
	flush := func() (int, bool) {
		defer func() { run = run[:0] }()
		if len(run) != 4 {
			return 0, false
		}
		y, err := strconv.Atoi(string(run))
		if err != nil || y < firstRecordYear || y > maxYear {
			return 0, false
		}
		return y, true
	}

	for _, r := range trimmed {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			run = append(run, r)
			continue
		}
		if y, ok := flush(); ok {
			return y, nil
		}
	}
	if y, ok := flush(); ok {
		return y, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnparseableYear, raw)
}
