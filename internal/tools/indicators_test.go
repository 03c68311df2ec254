package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	v, ok := SMA([]float64{1, 2, 3, 4, 5}, 2)
	require.True(t, ok)
	assert.InDelta(t, 4.5, v, 1e-9)

	_, ok = SMA([]float64{1}, 2)
	assert.False(t, ok)
}

func TestRSI(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	v, ok := RSI(rising, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	// seven +2 and seven -1 moves give RS 2
	zigzag := []float64{10}
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			zigzag = append(zigzag, zigzag[len(zigzag)-1]+2)
		} else {
			zigzag = append(zigzag, zigzag[len(zigzag)-1]-1)
		}
	}
	v, ok = RSI(zigzag, 14)
	require.True(t, ok)
	assert.InDelta(t, 100*2.0/3.0, v, 1e-9)

	_, ok = RSI(rising[:14], 14)
	assert.False(t, ok)
}
