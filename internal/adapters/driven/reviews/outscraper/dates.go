package outscraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// usDateTime matches "MM/DD/YYYY HH:MM:SS", the layout of review_datetime_utc.
var usDateTime = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}[ T]\d{2}:\d{2}:\d{2}$`)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// parseDate accepts epoch seconds or milliseconds (as numbers or digit
// strings), US "MM/DD/YYYY HH:MM:SS" timestamps and common ISO layouts.
// Results are UTC.
func parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case float64:
		return fromEpoch(t)
	case int64:
		return fromEpoch(float64(t))
	case int:
		return fromEpoch(float64(t))
	case string:
		return parseDateString(t)
	default:
		return time.Time{}, false
	}
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && isDigits(s) {
		return fromEpoch(n)
	}
	if usDateTime.MatchString(s) {
		layout := "01/02/2006 15:04:05"
		if strings.Contains(s, "T") {
			layout = "01/02/2006T15:04:05"
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// fromEpoch treats values above 1e12 as milliseconds and above 1e9 as seconds.
func fromEpoch(n float64) (time.Time, bool) {
	switch {
	case n > 1e12:
		return time.UnixMilli(int64(n)).UTC(), true
	case n > 1e9:
		return time.Unix(int64(n), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
