package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthName(t *testing.T) {
	assert.Equal(t, "January", MonthName(1))
	assert.Equal(t, "December", MonthName(12))
	assert.Equal(t, "Month-0", MonthName(0))
	assert.Equal(t, "Month-13", MonthName(13))
}

func TestUnitLabel(t *testing.T) {
	assert.Equal(t, "full year", UnitLabel(0))
	assert.Equal(t, "March", UnitLabel(3))
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		year     int
		month    int
		expected string
	}{
		{2024, 1, "2024-01-01 to 2024-01-31"},
		{2024, 2, "2024-02-01 to 2024-02-29"}, // leap year
		{2023, 2, "2023-02-01 to 2023-02-28"},
		{2024, 12, "2024-12-01 to 2024-12-31"},
		{2024, 0, "2024-01-01 to 2024-12-31"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, DateRange(tc.year, tc.month), "month %d", tc.month)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(2024, 2)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), end)

	start, end = MonthBounds(2024, 12)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestStagesOrder(t *testing.T) {
	assert.Equal(t, []Stage{StageValidated, StageCleaned, StageAggregated}, Stages())
}
