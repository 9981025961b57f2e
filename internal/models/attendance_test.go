package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoursFor(t *testing.T) {
	tests := []struct {
		shift Shift
		want  string
	}{
		{ShiftOpening, "09:00-13:00"},
		{ShiftAfternoon, "13:00-17:00"},
		{ShiftClosing, "17:00-21:00"},
	}

	for _, tt := range tests {
		t.Run(string(tt.shift), func(t *testing.T) {
			h, err := HoursFor(tt.shift)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.String())
		})
	}
}

func TestHoursFor_UnknownShift(t *testing.T) {
	_, err := HoursFor("night")
	assert.ErrorIs(t, err, ErrUnknownShift)
}

func TestShiftHours_On(t *testing.T) {
	loc := time.FixedZone("CLT", -4*3600)
	date := time.Date(2025, 3, 14, 18, 45, 0, 0, loc)

	h, err := HoursFor(ShiftAfternoon)
	require.NoError(t, err)

	in, out := h.On(date)
	assert.Equal(t, time.Date(2025, 3, 14, 13, 0, 0, 0, loc), in)
	assert.Equal(t, time.Date(2025, 3, 14, 17, 0, 0, 0, loc), out)
}
