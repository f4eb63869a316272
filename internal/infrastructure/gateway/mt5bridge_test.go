package gateway

import (
	"testing"

	"github.com/vitos/fx_sequence_trader/internal/domain"
)

func TestSequenceIDFrom(t *testing.T) {
	// Explicit tag wins over the comment.
	if got := sequenceIDFrom("2601061200B00142", "something else"); got != "2601061200B00142" {
		t.Errorf("Expected explicit tag, got %q", got)
	}
	// Legacy bridges carry the 16-char id in the comment.
	if got := sequenceIDFrom("", "2601061200B00142"); got != "2601061200B00142" {
		t.Errorf("Expected comment fallback, got %q", got)
	}
	// Comments of any other length are not sequence ids.
	if got := sequenceIDFrom("", "manual trade"); got != "" {
		t.Errorf("Expected empty id for a foreign comment, got %q", got)
	}
}

func TestTradeModeFromBridge(t *testing.T) {
	cases := map[int]domain.TradeMode{
		0: domain.TradeModeDisabled,
		1: domain.TradeModeCloseOnly,
		2: domain.TradeModeCloseOnly,
		3: domain.TradeModeCloseOnly,
		4: domain.TradeModeFull,
	}
	for mode, want := range cases {
		if got := tradeModeFromBridge(mode); got != want {
			t.Errorf("Mode %d: expected %v, got %v", mode, want, got)
		}
	}
}

func TestMT5Bridge_CloseIsSafeWithoutSession(t *testing.T) {
	b := NewMT5Bridge("ws://127.0.0.1:1")
	// Shutdown may find the session already gone (never dialed, or killed
	// after an I/O error). Close must be a clean no-op either way.
	if err := b.Close(); err != nil {
		t.Fatalf("Close on an unconnected bridge failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestBridgeOrderResult_ToDomain(t *testing.T) {
	ok := bridgeOrderResult{Retcode: retcodeDone, Order: 42}
	if res := ok.toDomain(); !res.OK || res.Ticket != 42 || res.Reason != "" {
		t.Errorf("Expected clean fill, got %+v", res)
	}

	rejected := bridgeOrderResult{Retcode: 10019, Comment: "No money"}
	res := rejected.toDomain()
	if res.OK {
		t.Fatal("Expected rejection")
	}
	if res.Reason == "" {
		t.Error("Expected a reason on rejection")
	}
}
