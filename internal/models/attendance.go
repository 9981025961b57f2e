package models

import (
	"fmt"
	"time"
)

// Shift is a fixed working block of the shop's day
type Shift string

const (
	ShiftOpening   Shift = "opening"
	ShiftAfternoon Shift = "afternoon"
	ShiftClosing   Shift = "closing"
)

const AttendanceStatusPresent = "present"

// ShopTimezone is the zone shift hours and "today" are evaluated in
var ShopTimezone = loadShopTimezone()

func loadShopTimezone() *time.Location {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorkDate truncates t to midnight of its calendar day in the shop's timezone
func WorkDate(t time.Time) time.Time {
	t = t.In(ShopTimezone)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ShopTimezone)
}

// ShiftHours is a time-of-day range in Chile local time
type ShiftHours struct {
	Start time.Duration // offset from midnight
	End   time.Duration
}

var shiftTable = map[Shift]ShiftHours{
	ShiftOpening:   {Start: 9 * time.Hour, End: 13 * time.Hour},
	ShiftAfternoon: {Start: 13 * time.Hour, End: 17 * time.Hour},
	ShiftClosing:   {Start: 17 * time.Hour, End: 21 * time.Hour},
}

// HoursFor looks up the working hours of a shift.
// Unknown shifts are rejected rather than defaulted.
func HoursFor(s Shift) (ShiftHours, error) {
	h, ok := shiftTable[s]
	if !ok {
		return ShiftHours{}, fmt.Errorf("%w: %q", ErrUnknownShift, s)
	}
	return h, nil
}

// On returns the concrete check-in and check-out instants of the shift on the given date
func (h ShiftHours) On(date time.Time) (time.Time, time.Time) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return day.Add(h.Start), day.Add(h.End)
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func (h ShiftHours) String() string {
	return formatClock(h.Start) + "-" + formatClock(h.End)
}

type Attendance struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Username  string    `json:"username,omitempty"` // set on management listings
	Date      time.Time `json:"date"`
	Shift     Shift     `json:"shift"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AttendanceFilter narrows the management attendance listing. Zero values match everything.
type AttendanceFilter struct {
	AccountID string
	From      time.Time // inclusive work date
	To        time.Time // inclusive work date
	Limit     int
	Offset    int
}

// AttendanceChanges lists the management-editable fields of a record; nil fields are left unchanged
type AttendanceChanges struct {
	Shift *Shift
	Date  *time.Time
	Notes *string
}
