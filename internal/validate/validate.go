package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"menusync/internal/domain"
)

const (
	MaxNameLength        = 255
	MaxDescriptionLength = 500
)

var (
	reID       = regexp.MustCompile(`^#?[A-Za-z0-9_-]{1,192}$`)
	reCurrency = regexp.MustCompile(`^[A-Z]{3}$`)
	rePrice    = regexp.MustCompile(`^\$?([0-9]{1,7})(?:\.([0-9]{1,2}))?$`)
)

// Name trims and NFC-normalises a catalog name so that visually equal names compare equal.
func Name(s string) (string, bool) {
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" || utf8.RuneCountInString(s) > MaxNameLength {
		return "", false
	}
	return s, true
}

// Description cuts s to MaxDescriptionLength characters; truncated reports whether it did.
func Description(s string) (out string, truncated bool) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxDescriptionLength {
		return s, false
	}
	r := []rune(s)
	return string(r[:MaxDescriptionLength]), true
}

// Price parses "8.99", "$8.99" or "8" into minor units.
func Price(s string) (int64, bool) {
	m := rePrice.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	whole, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	frac := int64(0)
	switch len(m[2]) {
	case 1:
		frac, _ = strconv.ParseInt(m[2], 10, 64)
		frac *= 10
	case 2:
		frac, _ = strconv.ParseInt(m[2], 10, 64)
	}
	return whole*100 + frac, true
}

func Currency(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reCurrency.MatchString(s)
}

func Environment(s string) (domain.Environment, bool) {
	env, err := domain.ParseEnvironment(s)
	return env, err == nil
}

// RemoteID validates a server-issued or placeholder object id.
func RemoteID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Limit parses a page size, clamped to [1, max]; def is used when s is empty or invalid.
func Limit(s string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
