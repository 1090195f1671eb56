package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-search-go/internal/apperr"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		category string
		want     *YearRange
	}{
		{"", nil},
		{"All", nil},
		{"  all ", nil},
		{"This Year", &YearRange{Gte: 2026, Lte: 2026}},
		{"this year", &YearRange{Gte: 2026, Lte: 2026}},
		{"Last 5 Years", &YearRange{Gte: 2021}},
		{"LAST 10 YEARS", &YearRange{Gte: 2016}},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got, err := Parse(tt.category, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Unknown(t *testing.T) {
	for _, category := range []string{"Last 3 Years", "year >= 2020", "recent"} {
		t.Run(category, func(t *testing.T) {
			got, err := Parse(category, now)
			assert.Nil(t, got)
			assert.True(t, apperr.IsInvalidInput(err))
		})
	}
}

func TestTranslator_StrictRejectsUnknown(t *testing.T) {
	tr := Translator{Strict: true, Now: func() time.Time { return now }}

	_, err := tr.Translate("Last 3 Years")
	assert.True(t, apperr.IsInvalidInput(err))

	got, err := tr.Translate("Last 5 Years")
	require.NoError(t, err)
	assert.Equal(t, &YearRange{Gte: 2021}, got)
}

func TestTranslator_LenientFallsBackToAll(t *testing.T) {
	tr := Translator{Strict: false, Now: func() time.Time { return now }}

	got, err := tr.Translate("Last 3 Years")
	require.NoError(t, err)
	assert.Nil(t, got)
}
