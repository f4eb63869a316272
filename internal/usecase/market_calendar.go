package usecase

import (
	"sort"
	"time"
)

// TradingSession is one named market session with local open/close times.
type TradingSession struct {
	Name     string
	Location *time.Location
	// OpenHour/CloseHour are local times of day; a session is active in
	// [open, close).
	OpenHour  int
	CloseHour int
}

// MarketCalendar answers whether the market is open at a given instant. It is
// a pure function of time: no gateway calls, no failure modes.
type MarketCalendar struct {
	sessions []TradingSession
}

// NewMarketCalendar builds the default four-session forex calendar. Zones are
// resolved once; a host without tzdata falls back to fixed offsets.
func NewMarketCalendar() *MarketCalendar {
	return &MarketCalendar{sessions: []TradingSession{
		{Name: "Sydney", Location: loadLocation("Australia/Sydney", 10*3600), OpenHour: 7, CloseHour: 16},
		{Name: "Tokyo", Location: loadLocation("Asia/Tokyo", 9*3600), OpenHour: 9, CloseHour: 18},
		{Name: "London", Location: loadLocation("Europe/London", 0), OpenHour: 8, CloseHour: 17},
		{Name: "New York", Location: loadLocation("America/New_York", -5*3600), OpenHour: 8, CloseHour: 17},
	}}
}

func loadLocation(name string, fallbackOffset int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, fallbackOffset)
	}
	return loc
}

// IsWeekend reports whether t falls on Saturday or Sunday in UTC.
func (c *MarketCalendar) IsWeekend(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ActiveSessions returns the names of sessions open at t, empty on weekends.
func (c *MarketCalendar) ActiveSessions(t time.Time) []string {
	if c.IsWeekend(t) {
		return nil
	}
	var active []string
	for _, s := range c.sessions {
		local := t.In(s.Location)
		hour := local.Hour()
		if hour >= s.OpenHour && hour < s.CloseHour {
			active = append(active, s.Name)
		}
	}
	return active
}

// IsMarketOpen reports whether at least one session is open at t.
func (c *MarketCalendar) IsMarketOpen(t time.Time) bool {
	return !c.IsWeekend(t) && len(c.ActiveSessions(t)) > 0
}

// NextOpen returns the soonest future session open after t, together with the
// session's name. If a session's open has already passed today in its zone,
// the next calendar day's open is considered.
func (c *MarketCalendar) NextOpen(t time.Time) (string, time.Time) {
	type candidate struct {
		name string
		at   time.Time
	}
	var candidates []candidate
	for _, s := range c.sessions {
		local := t.In(s.Location)
		open := time.Date(local.Year(), local.Month(), local.Day(), s.OpenHour, 0, 0, 0, s.Location)
		if !open.After(t) {
			open = open.AddDate(0, 0, 1)
		}
		candidates = append(candidates, candidate{name: s.Name, at: open})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].at.Before(candidates[j].at)
	})
	return candidates[0].name, candidates[0].at
}
