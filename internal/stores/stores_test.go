package stores_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"menusync/internal/stores"
)

func TestFormatAndParse(t *testing.T) {
	s := stores.Store{Number: "8", Name: "Midtown East (Lexington Ave)"}
	assert.Equal(t, "#8 Midtown East (Lexington Ave)", stores.FormatName(s, false))
	assert.Equal(t, "#8 Midtown East (Lexington Ave) - Catering Test", stores.FormatName(s, true))

	num, ok := stores.ParseNumber(stores.FormatName(s, true))
	assert.True(t, ok)
	assert.Equal(t, "8", num)

	_, ok = stores.ParseNumber("Main Street")
	assert.False(t, ok)
}

func TestToLocationDefaultsCountry(t *testing.T) {
	loc := stores.ToLocation(stores.Store{Number: "3", Name: "Tribeca", Phone: "212-555-0100"}, false)
	assert.Equal(t, "#3 Tribeca", loc.Name)
	assert.Equal(t, "US", loc.Address.Country)
	assert.Equal(t, "PHYSICAL", loc.Type)
}
