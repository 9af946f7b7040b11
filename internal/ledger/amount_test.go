package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZero(t *testing.T) {
	z, err := Zero("usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", z.Curr().Code())
	assert.Equal(t, int64(0), MinorUnits(z))

	_, err = Zero("XYZ")
	assert.Error(t, err)
}

func TestAmountFromFloat(t *testing.T) {
	a, err := AmountFromFloat("USD", 19.999)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), MinorUnits(a))
	assert.InDelta(t, 20.0, Float(a), 1e-9)

	_, err = AmountFromFloat("USD", math.NaN())
	assert.Error(t, err)

	_, err = AmountFromFloat("XYZ", 1)
	assert.Error(t, err)
}
