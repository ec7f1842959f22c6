package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaiveKeepsWallClock(t *testing.T) {
	loc, err := time.LoadLocation("America/Guayaquil")
	require.NoError(t, err)

	local := time.Date(2025, 3, 10, 14, 30, 0, 0, loc)
	naive := Naive(local)

	assert.Equal(t, 14, naive.Hour())
	assert.Equal(t, 30, naive.Minute())
	assert.Equal(t, time.UTC, naive.Location())
}

func TestNewRejectsUnknownZone(t *testing.T) {
	_, err := New("Mars/Olympus")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	clk := NewFixed(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, 8, clk.Now().Hour())

	clk.Advance(90 * time.Minute)
	assert.Equal(t, 9, clk.Now().Hour())
	assert.Equal(t, 30, clk.Now().Minute())

	clk.Set(time.Date(2025, 3, 11, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, 11, clk.Now().Day())
}
