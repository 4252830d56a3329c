package surveillance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonthsPreservesDay(t *testing.T) {
	assert.Equal(t, date(2026, time.January, 15), AddMonths(date(2025, time.January, 15), 12))
	assert.Equal(t, date(2025, time.April, 15), AddMonths(date(2025, time.January, 15), 3))
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	assert.Equal(t, date(2025, time.February, 28), AddMonths(date(2025, time.January, 31), 1))
	assert.Equal(t, date(2024, time.February, 29), AddMonths(date(2024, time.January, 31), 1))
	assert.Equal(t, date(2025, time.April, 30), AddMonths(date(2025, time.March, 31), 1))
	// Clamping does not stick: the next step works from the clamped day.
	assert.Equal(t, date(2025, time.March, 28), AddMonths(AddMonths(date(2025, time.January, 31), 1), 1))
}

func TestAddMonthsCrossesYears(t *testing.T) {
	assert.Equal(t, date(2026, time.February, 10), AddMonths(date(2025, time.November, 10), 3))
	assert.Equal(t, date(2030, time.January, 15), AddMonths(date(2025, time.January, 15), 60))
}

func TestAddMonthsNegative(t *testing.T) {
	assert.Equal(t, date(2024, time.December, 15), AddMonths(date(2025, time.January, 15), -1))
	assert.Equal(t, date(2024, time.February, 29), AddMonths(date(2024, time.March, 31), -1))
	assert.Equal(t, date(2023, time.November, 30), AddMonths(date(2024, time.March, 30), -4))
}

func TestAddMonthsZero(t *testing.T) {
	d := date(2025, time.June, 30)
	assert.Equal(t, d, AddMonths(d, 0))
}
