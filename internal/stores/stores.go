// Package stores owns the "#<number> <name>" location naming convention.
package stores

import (
	"strings"

	"menusync/internal/backend"
)

const TestSuffix = " - Catering Test"

type Store struct {
	Number  string
	Name    string
	Address backend.Address
	Phone   string
}

// FormatName renders "#8 Midtown East", optionally with the test suffix.
func FormatName(s Store, test bool) string {
	num := s.Number
	if num == "" {
		num = "0"
	}
	name := s.Name
	if name == "" {
		name = "Unknown Store"
	}
	out := "#" + num + " " + name
	if test {
		out += TestSuffix
	}
	return out
}

// ParseNumber extracts the store number from a formatted name.
func ParseNumber(name string) (string, bool) {
	if !strings.HasPrefix(name, "#") {
		return "", false
	}
	num, _, _ := strings.Cut(name[1:], " ")
	return num, num != ""
}

// ToLocation builds the remote location payload for s.
func ToLocation(s Store, test bool) backend.Location {
	addr := s.Address
	if addr.Country == "" {
		addr.Country = "US"
	}
	return backend.Location{
		Name:        FormatName(s, test),
		Type:        "PHYSICAL",
		Address:     &addr,
		PhoneNumber: s.Phone,
	}
}
