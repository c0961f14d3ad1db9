package scraper

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var errNoPrice = errors.New("no price")

// parsePrice reads a rupiah amount such as "Rp 12.500", "12,500" or "Rp12.500,00/kg".
// A trailing group of one or two digits is a decimal fraction and is rounded away.
// A minus sign or accounting parentheses make the amount negative and are rejected.
func parsePrice(raw string) (int64, error) {
	s := raw
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if strings.ContainsAny(s, "-(\u2212") {
		return 0, fmt.Errorf("price %q is negative", raw)
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s = strings.Trim(b.String(), ".,")
	if s == "" {
		return 0, errNoPrice
	}

	whole, frac := s, ""
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 <= 2 {
		whole, frac = s[:i], s[i+1:]
	}
	whole = strings.NewReplacer(".", "", ",", "").Replace(whole)

	v, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", raw, err)
	}
	if frac != "" && frac[0] >= '5' {
		v++
	}
	if v <= 0 {
		return 0, fmt.Errorf("price %q is not positive", raw)
	}
	return v, nil
}

// priceFromJSON accepts a JSON number or a formatted string
func priceFromJSON(v interface{}) (int64, error) {
	switch p := v.(type) {
	case float64:
		rounded := int64(math.Round(p))
		if rounded <= 0 {
			return 0, fmt.Errorf("price %v is not positive", p)
		}
		return rounded, nil
	case string:
		return parsePrice(p)
	case nil:
		return 0, errNoPrice
	default:
		return 0, fmt.Errorf("unsupported price type %T", v)
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2 January 2006",
}

// parseDate reads the observation date formats seen on government price pages
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}
