package utils

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// IsValidQuery checks if input should be sent to the index: it must have
// something besides whitespace and be at most maxLen runes long (maxLen <= 0
// means unbounded).
func IsValidQuery(s string, maxLen int) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen
}

// FormatWithCommas formats an integer with comma separators
func FormatWithCommas(n int) string {
	if n < 0 {
		return "-" + FormatWithCommas(-n)
	}
	str := strconv.Itoa(n)
	if n < 1000 {
		return str
	}

	var b strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// MapsLink returns a Google Maps search URL for a coordinate.
func MapsLink(lat, lon float64) string {
	return "https://www.google.com/maps/search/" +
		strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}
