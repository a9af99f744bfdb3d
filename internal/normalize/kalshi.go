package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dlu/market-intel/internal/model"
)

// Event-contract prices are quoted in cents, 0-100, representing probability.
const centsPerContract = 100.0

// AssetClassEventContract is the asset class recorded for event-contract
// venues.
const AssetClassEventContract = "event_contract"

// partialTick is a normalized event before instrument resolution.
type partialTick struct {
	VenueTicker string
	Kind        model.EventKind
	Price       float64
	Size        float64
	ObservedAt  time.Time
}

// kalshiTickerBody covers every known ticker variant. Older feeds used
// bid/ask, current ones use yes_bid/yes_ask, and a last price may or may
// not be present.
type kalshiTickerBody struct {
	MarketTicker string   `json:"market_ticker"`
	Price        *float64 `json:"price"`
	LastPrice    *float64 `json:"last_price"`
	YesBid       *float64 `json:"yes_bid"`
	YesAsk       *float64 `json:"yes_ask"`
	Bid          *float64 `json:"bid"`
	Ask          *float64 `json:"ask"`
	Volume       *float64 `json:"volume"`
}

// resolvePrice applies the ordered fallback chain and reports which shapes
// were usable. Order matters: a direct last price wins over any derived
// midpoint, and the current bid/ask field names win over the legacy pair.
func (b kalshiTickerBody) resolvePrice() (float64, bool) {
	if b.Price != nil {
		return *b.Price, true
	}
	if b.LastPrice != nil {
		return *b.LastPrice, true
	}
	if b.YesBid != nil && b.YesAsk != nil {
		return (*b.YesBid + *b.YesAsk) / 2, true
	}
	if b.Bid != nil && b.Ask != nil {
		return (*b.Bid + *b.Ask) / 2, true
	}
	return 0, false
}

type kalshiTradeBody struct {
	MarketTicker string   `json:"market_ticker"`
	Price        *float64 `json:"price"`
	Quantity     *float64 `json:"quantity"`
	Timestamp    *int64   `json:"timestamp"`
}

type kalshiBookBody struct {
	MarketTicker string      `json:"market_ticker"`
	Yes          [][]float64 `json:"yes"`
	No           [][]float64 `json:"no"`
}

// normalizeKalshi maps one raw event to at most one partial tick. A nil
// result with nil error means the message is a control frame or an
// unsubscribed kind, which is not an error.
func normalizeKalshi(ev model.RawEvent) (*partialTick, error) {
	env, err := parseEnvelope(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	switch env.Type {
	case "ticker":
		return kalshiTicker(env, ev)
	case "trade", "trades":
		return kalshiTrade(env, ev)
	case "orderbook_snapshot", "orderbook_delta":
		return kalshiBook(env, ev)
	case "subscribed", "unsubscribed", "error", "ok", "":
		// Control frames, handled upstream.
		return nil, nil
	default:
		return nil, nil
	}
}

func kalshiTicker(env envelope, ev model.RawEvent) (*partialTick, error) {
	raw, err := env.body()
	if err != nil {
		return nil, err
	}

	var body kalshiTickerBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode ticker body: %w", err)
	}
	if body.MarketTicker == "" {
		return nil, fmt.Errorf("ticker body missing market_ticker")
	}

	cents, ok := body.resolvePrice()
	if !ok {
		return nil, fmt.Errorf("ticker for %s carries no usable price", body.MarketTicker)
	}

	var size float64
	if body.Volume != nil {
		size = *body.Volume
	}

	return &partialTick{
		VenueTicker: body.MarketTicker,
		Kind:        model.KindQuote,
		Price:       cents / centsPerContract,
		Size:        size,
		ObservedAt:  ev.ReceivedAt,
	}, nil
}

func kalshiTrade(env envelope, ev model.RawEvent) (*partialTick, error) {
	raw, err := env.body()
	if err != nil {
		return nil, err
	}

	var body kalshiTradeBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode trade body: %w", err)
	}
	if body.MarketTicker == "" {
		return nil, fmt.Errorf("trade body missing market_ticker")
	}
	if body.Price == nil {
		return nil, fmt.Errorf("trade for %s missing price", body.MarketTicker)
	}

	observedAt := ev.ReceivedAt
	if body.Timestamp != nil {
		observedAt = time.Unix(*body.Timestamp, 0).UTC()
	}

	var size float64
	if body.Quantity != nil {
		size = *body.Quantity
	}

	return &partialTick{
		VenueTicker: body.MarketTicker,
		Kind:        model.KindTrade,
		Price:       *body.Price / centsPerContract,
		Size:        size,
		ObservedAt:  observedAt,
	}, nil
}

func kalshiBook(env envelope, ev model.RawEvent) (*partialTick, error) {
	raw, err := env.body()
	if err != nil {
		return nil, err
	}

	var body kalshiBookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode orderbook body: %w", err)
	}
	if body.MarketTicker == "" {
		return nil, fmt.Errorf("orderbook body missing market_ticker")
	}

	// Best bid is the highest yes level, best ask the lowest no level.
	// Levels are [price_cents, quantity] pairs.
	bestYes, haveYes := bestLevel(body.Yes, func(a, b float64) bool { return a > b })
	bestNo, haveNo := bestLevel(body.No, func(a, b float64) bool { return a < b })

	var cents float64
	switch {
	case haveYes && haveNo:
		cents = (bestYes + bestNo) / 2
	case haveYes:
		cents = bestYes
	case haveNo:
		cents = bestNo
	default:
		return nil, fmt.Errorf("orderbook for %s has no levels", body.MarketTicker)
	}

	return &partialTick{
		VenueTicker: body.MarketTicker,
		Kind:        model.KindBookUpdate,
		Price:       cents / centsPerContract,
		ObservedAt:  ev.ReceivedAt,
	}, nil
}

func bestLevel(levels [][]float64, better func(a, b float64) bool) (float64, bool) {
	var best float64
	found := false
	for _, lvl := range levels {
		if len(lvl) == 0 {
			continue
		}
		if !found || better(lvl[0], best) {
			best = lvl[0]
			found = true
		}
	}
	return best, found
}
