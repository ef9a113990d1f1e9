package utils

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// YearWindow returns the inclusive GitTimestamp bounds used to scope a yearly query.
func YearWindow(year int) (since, until string) {
	return fmt.Sprintf("%04d-01-01T00:00:00Z", year), fmt.Sprintf("%04d-12-31T23:59:59Z", year)
}

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// DayOfYear returns the zero-based index of t within its UTC calendar year.
func DayOfYear(t time.Time) int {
	return t.UTC().YearDay() - 1
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
// Invalid byte sequences are replaced first so the result is always valid UTF-8.
func Truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
