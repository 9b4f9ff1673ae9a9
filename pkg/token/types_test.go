package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseUnitsRoundTrip(t *testing.T) {
	// Converting a display amount to base units and back must land within
	// one base unit of the original, across the whole accepted range.
	amounts := []float64{
		0.000000001, // one base unit at 9 decimals
		0.1,
		1,
		999.999999999,
		1000,
		123456.789,
		1_000_000,
	}
	for _, amount := range amounts {
		base := BaseUnits(amount, DefaultDecimals)
		require.NotZero(t, base, "amount %v truncated to zero", amount)

		roundTripped := DisplayUnits(base, DefaultDecimals)
		oneBaseUnit := DisplayUnits(1, DefaultDecimals)
		assert.InDelta(t, amount, roundTripped, oneBaseUnit, "amount %v", amount)
	}
}

func TestBaseUnitsTruncatesTowardZero(t *testing.T) {
	// 1.9999999999 has more precision than 9 decimals can hold.
	assert.Equal(t, uint64(1_999_999_999), BaseUnits(1.9999999999, 9))
	assert.Equal(t, uint64(0), BaseUnits(0.0000000001, 9))
	assert.Equal(t, uint64(500_000_000), BaseUnits(500, 6))
}

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, 2.5, LamportsToSOL(2_500_000_000))
	assert.Equal(t, 0.0, LamportsToSOL(0))
}

func TestDisplayActivityCapsAtFive(t *testing.T) {
	snapshot := &MonitorSnapshot{CapturedAt: time.Now()}
	for i := 0; i < 8; i++ {
		snapshot.RecentActivity = append(snapshot.RecentActivity, ActivityRecord{ID: string(rune('a' + i))})
	}

	displayed := snapshot.DisplayActivity()
	require.Len(t, displayed, MaxActivityDisplayed)
	assert.Equal(t, snapshot.RecentActivity[0], displayed[0])

	short := &MonitorSnapshot{RecentActivity: snapshot.RecentActivity[:2]}
	assert.Len(t, short.DisplayActivity(), 2)
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "9WzDXwBb...9zYtAWWM", ShortAddress("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"))
	assert.Equal(t, "short", ShortAddress("short"))
}
