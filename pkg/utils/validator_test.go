package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Amount   float64      `json:"amount" validate:"gt=0"`
	Currency string       `json:"currency" validate:"required,currency_code"`
	Note     string       `json:"note" validate:"max=5"`
	Items    []sampleItem `json:"items" validate:"dive"`
}

type sampleItem struct {
	Name string `json:"name" validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(sample{Amount: 1, Currency: "USD"}))

	err := ValidateStruct(sample{Amount: 0, Currency: "usd", Note: "too long", Items: []sampleItem{{}}})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "amount must be greater than 0")
		assert.Contains(t, err.Error(), "currency must be a 3-letter currency code")
		assert.Contains(t, err.Error(), "note must be at most 5 characters")
		assert.Contains(t, err.Error(), "items[0].name is required")
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Taxi fare", SanitizeString("  Taxi\x00 fare\x7f\n"))
}
