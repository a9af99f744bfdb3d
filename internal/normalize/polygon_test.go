package normalize

import (
	"testing"
	"time"

	"github.com/dlu/market-intel/internal/model"
)

func rawPolygon(payload string) model.RawEvent {
	return model.RawEvent{
		Venue:      "polygon",
		SessionID:  "polygon-1",
		ReceivedAt: time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC),
		Payload:    []byte(payload),
	}
}

func TestPolygonTrade(t *testing.T) {
	ticks, err := normalizePolygon(rawPolygon(`{"ev":"T","sym":"AAPL","p":150.25,"s":100,"t":1756218600000000000}`))
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("got %d ticks, want 1", len(ticks))
	}

	tick := ticks[0]
	if tick.VenueTicker != "AAPL" {
		t.Errorf("VenueTicker = %q, want AAPL", tick.VenueTicker)
	}
	if tick.Kind != model.KindTrade {
		t.Errorf("Kind = %v, want trade", tick.Kind)
	}
	if tick.Price != 150.25 {
		t.Errorf("Price = %v, want 150.25", tick.Price)
	}
	if tick.Size != 100 {
		t.Errorf("Size = %v, want 100", tick.Size)
	}
	if want := time.Unix(0, 1756218600000000000).UTC(); !tick.ObservedAt.Equal(want) {
		t.Errorf("ObservedAt = %v, want %v", tick.ObservedAt, want)
	}
}

func TestPolygonTrade_ArrayFrame(t *testing.T) {
	ticks, err := normalizePolygon(rawPolygon(`[{"ev":"T","sym":"AAPL","p":150.25,"s":100},{"ev":"T","sym":"MSFT","p":410.5,"s":50}]`))
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("got %d ticks, want 2", len(ticks))
	}
	if ticks[0].VenueTicker != "AAPL" || ticks[1].VenueTicker != "MSFT" {
		t.Errorf("tickers = %q, %q", ticks[0].VenueTicker, ticks[1].VenueTicker)
	}
}

func TestPolygonStatusFrameSkipped(t *testing.T) {
	ticks, err := normalizePolygon(rawPolygon(`[{"ev":"status","status":"connected","message":"Connected Successfully"}]`))
	if err != nil {
		t.Fatalf("status frame should not error: %v", err)
	}
	if len(ticks) != 0 {
		t.Errorf("status frame should not produce ticks, got %d", len(ticks))
	}
}

func TestPolygonTrade_MissingPrice(t *testing.T) {
	if _, err := normalizePolygon(rawPolygon(`{"ev":"T","sym":"AAPL","s":100}`)); err == nil {
		t.Error("expected an error for a priceless trade")
	}
}

func TestPolygonTrade_MissingTimestampUsesReceiveTime(t *testing.T) {
	ev := rawPolygon(`{"ev":"T","sym":"AAPL","p":150.25}`)
	ticks, err := normalizePolygon(ev)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if !ticks[0].ObservedAt.Equal(ev.ReceivedAt) {
		t.Errorf("ObservedAt = %v, want receive time %v", ticks[0].ObservedAt, ev.ReceivedAt)
	}
}
