package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finopshq/mimir-cost-datasource/internal/apperr"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-02", m.String())

	for _, bad := range []string{"", "2024", "2024-13", "02-2024", "2024/02", "not-a-month"} {
		_, err := ParseMonth(bad)
		require.Error(t, err, "input %q", bad)
		assert.True(t, apperr.IsInvalidParameterType(err), "input %q", bad)
	}
}

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		name     string
		month    Month
		wantDays int
		wantLast time.Time
	}{
		{"january", NewMonth(2024, time.January), 31, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)},
		{"leap february", NewMonth(2024, time.February), 29, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)},
		{"plain february", NewMonth(2023, time.February), 28, time.Date(2023, 2, 28, 23, 59, 59, 0, time.UTC)},
		{"april", NewMonth(2024, time.April), 30, time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, time.Date(tt.month.year, tt.month.month, 1, 0, 0, 0, 0, time.UTC), tt.month.First())
			assert.Equal(t, tt.wantLast, tt.month.Last())
			assert.Equal(t, tt.wantDays, tt.month.Days())
		})
	}
}

func TestMonthNextAndAfter(t *testing.T) {
	dec := NewMonth(2023, time.December)
	jan := dec.Next()

	assert.Equal(t, "2024-01", jan.String())
	assert.True(t, jan.After(dec))
	assert.False(t, dec.After(jan))
	assert.False(t, jan.After(jan))
}

func TestMonthContains(t *testing.T) {
	feb := NewMonth(2024, time.February)

	assert.True(t, feb.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, feb.Contains(time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)))
	assert.False(t, feb.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	// Times are evaluated in UTC before bucketing.
	assert.True(t, feb.Contains(time.Date(2024, 3, 1, 0, 30, 0, 0, time.FixedZone("UTC+1", 3600))))
}

func TestMonthOf(t *testing.T) {
	m := MonthOf(time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, NewMonth(2024, time.July), m)
}
