package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoversLeapBirthdays(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"feb 28 in a non-leap year", time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), true},
		{"feb 28 in a leap year", time.Date(2028, 2, 28, 0, 0, 0, 0, time.UTC), false},
		{"feb 29 itself", time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"feb 27", time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), false},
		{"mar 28", time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC), false},
		{"feb 28 in a century non-leap year", time.Date(2100, 2, 28, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coversLeapBirthdays(tt.day))
		})
	}
}

func TestIsLeapYear(t *testing.T) {
	assert.True(t, isLeapYear(2024))
	assert.True(t, isLeapYear(2000))
	assert.False(t, isLeapYear(2026))
	assert.False(t, isLeapYear(1900))
}
