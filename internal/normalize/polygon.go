package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dlu/market-intel/internal/model"
)

// AssetClassEquity is the asset class recorded for equity venues.
const AssetClassEquity = "equity"

// polygonTradeBody is the equity trade event:
// {"ev":"T","sym":"AAPL","p":150.25,"s":100,"t":<ns since epoch>}
type polygonTradeBody struct {
	Event     string   `json:"ev"`
	Symbol    string   `json:"sym"`
	Price     *float64 `json:"p"`
	Size      *float64 `json:"s"`
	Timestamp *int64   `json:"t"`
}

// normalizePolygon maps one raw equity frame to its trade ticks. The feed
// delivers events either as a JSON array per frame or as a single object;
// non-trade events in the frame are skipped.
func normalizePolygon(ev model.RawEvent) ([]*partialTick, error) {
	payload := ev.Payload

	var bodies []polygonTradeBody
	if len(payload) > 0 && payload[0] == '[' {
		if err := json.Unmarshal(payload, &bodies); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
	} else {
		var body polygonTradeBody
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		bodies = append(bodies, body)
	}

	var ticks []*partialTick
	for _, body := range bodies {
		if body.Event != "T" {
			// Status and aggregate events are not subscribed kinds.
			continue
		}
		if body.Symbol == "" {
			return nil, fmt.Errorf("trade event missing sym")
		}
		if body.Price == nil {
			return nil, fmt.Errorf("trade for %s missing price", body.Symbol)
		}

		observedAt := ev.ReceivedAt
		if body.Timestamp != nil {
			observedAt = time.Unix(0, *body.Timestamp).UTC()
		}

		var size float64
		if body.Size != nil {
			size = *body.Size
		}

		ticks = append(ticks, &partialTick{
			VenueTicker: body.Symbol,
			Kind:        model.KindTrade,
			Price:       *body.Price,
			Size:        size,
			ObservedAt:  observedAt,
		})
	}

	return ticks, nil
}
