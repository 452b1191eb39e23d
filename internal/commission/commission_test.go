package commission

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		advance  float64
		refType  string
		expected Split
	}{
		{"standard", 1000, TypeStandard, Split{150, 100, 50}},
		{"special", 1000, TypeSpecial, Split{150, 150, 0}},
		{"none", 1000, TypeNone, Split{300, 0, 0}},
		{"blank type is none", 1000, "", Split{300, 0, 0}},
		{"lowercase type", 1000, "standard", Split{150, 100, 50}},
		{"unknown type falls back to none", 1000, "GOLD", Split{300, 0, 0}},
		{"zero advance", 0, TypeStandard, Split{}},
		{"negative advance", -50, TypeSpecial, Split{}},
		{"odd cents round half up", 333.33, TypeStandard, Split{50, 33.33, 16.67}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Calculate(tt.advance, tt.refType))
		})
	}
}

func TestSplitSumsToThirtyPercent(t *testing.T) {
	advances := []float64{1, 9.99, 100, 333.33, 1234.56, 2500, 99999.99}
	for _, refType := range []string{TypeNone, TypeStandard, TypeSpecial} {
		for _, advance := range advances {
			split := Calculate(advance, refType)
			assert.LessOrEqual(t, math.Abs(split.Total()-Round(advance*TotalRate)), Tolerance,
				"type=%s advance=%.2f", refType, advance)
			if refType == TypeNone {
				assert.Zero(t, split.ReferrerCommission)
				assert.Zero(t, split.CustomerDiscount)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	warning, err := Validate(1000, TypeStandard)
	require.NoError(t, err)
	assert.Empty(t, warning)

	_, err = Validate(1000, "PLATINUM")
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Validate(0, TypeSpecial)
	assert.Error(t, err)
}

func TestFinal(t *testing.T) {
	amounts := Final(5000, 1000, TypeStandard)

	assert.Equal(t, 50.0, amounts.CustomerDiscount)
	assert.Equal(t, 950.0, amounts.FinalAdvance)
	assert.Equal(t, 4050.0, amounts.DueAmount)

	none := Final(5000, 1000, TypeNone)
	assert.Equal(t, 1000.0, none.FinalAdvance)
	assert.Equal(t, 4000.0, none.DueAmount)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.01, Round(1.005))
	assert.Equal(t, 2.35, Round(2.345))
	assert.Equal(t, 2.34, Round(2.344))
	assert.Equal(t, 0.0, Round(0))
}
