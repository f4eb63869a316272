package usecase_test

import (
	"testing"
	"time"

	"github.com/vitos/fx_sequence_trader/internal/usecase"
)

func TestMarketCalendar_Weekend(t *testing.T) {
	cal := usecase.NewMarketCalendar()

	saturday := time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC)
	if !cal.IsWeekend(saturday) {
		t.Error("Expected Saturday to be a weekend")
	}
	if cal.IsMarketOpen(saturday) {
		t.Error("Expected market closed on Saturday")
	}
	if sessions := cal.ActiveSessions(saturday); len(sessions) != 0 {
		t.Errorf("Expected no active sessions on Saturday, got %v", sessions)
	}

	monday := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	if cal.IsWeekend(monday) {
		t.Error("Expected Monday not to be a weekend")
	}
}

func TestMarketCalendar_SessionHours(t *testing.T) {
	cal := usecase.NewMarketCalendar()

	hasLondon := func(at time.Time) bool {
		for _, s := range cal.ActiveSessions(at) {
			if s == "London" {
				return true
			}
		}
		return false
	}

	// January: London is on UTC. Open at 08:00 local, [open, close).
	before := time.Date(2026, 1, 6, 7, 30, 0, 0, time.UTC)
	if hasLondon(before) {
		t.Error("Expected London closed at 07:30 local")
	}
	during := time.Date(2026, 1, 6, 8, 30, 0, 0, time.UTC)
	if !hasLondon(during) {
		t.Error("Expected London open at 08:30 local")
	}
	if !cal.IsMarketOpen(during) {
		t.Error("Expected market open during London hours")
	}
	closeEdge := time.Date(2026, 1, 6, 17, 0, 0, 0, time.UTC)
	if hasLondon(closeEdge) {
		t.Error("Expected London closed at the 17:00 close boundary")
	}
}

func TestMarketCalendar_NextOpen(t *testing.T) {
	cal := usecase.NewMarketCalendar()

	at := time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC)
	name, open := cal.NextOpen(at)
	if name == "" {
		t.Fatal("Expected a session name")
	}
	if !open.After(at) {
		t.Errorf("Expected next open after %v, got %v", at, open)
	}
	if open.Sub(at) > 24*time.Hour {
		t.Errorf("Expected next open within a day, got %v", open.Sub(at))
	}
}
