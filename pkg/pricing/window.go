package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a time of day within a market's local timezone.
type ClockTime struct {
	Hour   int
	Minute int
}

func (t ClockTime) secondsOfDay() int {
	return t.Hour*3600 + t.Minute*60
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("pricing: invalid clock time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("pricing: invalid clock time %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("pricing: invalid clock time %q", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// MarketWindow defines when an equity market trades: [Open, Close) in the
// market's local timezone, weekdays only. Used solely by snapshot policy.
type MarketWindow struct {
	Open     ClockTime
	Close    ClockTime
	Location *time.Location
}

// IsOpen reports whether t falls inside the trading window. The open edge is
// inclusive, the close edge exclusive; weekends are always closed.
func (w MarketWindow) IsOpen(t time.Time) bool {
	local := t.In(w.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	sod := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return sod >= w.Open.secondsOfDay() && sod < w.Close.secondsOfDay()
}

// NewYorkWindow is the NYSE regular session: 09:30-16:00 America/New_York.
func NewYorkWindow() (MarketWindow, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return MarketWindow{}, fmt.Errorf("pricing: load market timezone: %w", err)
	}
	return MarketWindow{
		Open:     ClockTime{Hour: 9, Minute: 30},
		Close:    ClockTime{Hour: 16},
		Location: loc,
	}, nil
}
