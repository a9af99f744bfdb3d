package gateway

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dlu/market-intel/internal/model"
)

// Coordinator merges strategy decisions into order intents. With a single
// strategy there is nothing to reconcile, so coordination is a pass-through:
// buy/sell decisions become intents, hold/no-action decisions are recorded
// and dropped.
type Coordinator struct {
	in <-chan model.StrategyDecision

	intents      chan model.OrderIntent
	recDecisions chan model.StrategyDecision
	recIntents   chan model.OrderIntent

	logger *slog.Logger

	produced atomic.Int64
}

// NewCoordinator creates a Coordinator. All three output channels are
// closed by Run when the decision stream ends.
func NewCoordinator(in <-chan model.StrategyDecision, buffer int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		in:           in,
		intents:      make(chan model.OrderIntent, buffer),
		recDecisions: make(chan model.StrategyDecision, buffer),
		recIntents:   make(chan model.OrderIntent, buffer),
		logger:       logger,
	}
}

// Intents returns the intent stream consumed by the gateway.
func (c *Coordinator) Intents() <-chan model.OrderIntent { return c.intents }

// RecordedDecisions returns every decision, actionable or not, for the
// recorder.
func (c *Coordinator) RecordedDecisions() <-chan model.StrategyDecision { return c.recDecisions }

// RecordedIntents returns a copy of every produced intent for the recorder.
func (c *Coordinator) RecordedIntents() <-chan model.OrderIntent { return c.recIntents }

// Run consumes decisions until the input closes, then closes all outputs.
func (c *Coordinator) Run() {
	c.logger.Info("coordinator started")

	for decision := range c.in {
		c.recDecisions <- decision

		intent, ok := c.coordinate(decision)
		if !ok {
			continue
		}

		c.logger.Debug("order intent produced",
			"intent_id", intent.ID,
			"instrument_id", intent.InstrumentID,
			"side", intent.Side,
		)

		c.recIntents <- intent
		c.intents <- intent
		c.produced.Add(1)
	}

	close(c.intents)
	close(c.recDecisions)
	close(c.recIntents)
	c.logger.Info("coordinator stopped", "intents", c.produced.Load())
}

// Produced returns the number of intents produced so far.
func (c *Coordinator) Produced() int64 {
	return c.produced.Load()
}

// coordinate maps one decision to at most one intent.
func (c *Coordinator) coordinate(decision model.StrategyDecision) (model.OrderIntent, bool) {
	var side model.OrderSide
	switch decision.Action {
	case model.ActionBuy:
		side = model.SideBuy
	case model.ActionSell:
		side = model.SideSell
	default:
		// Hold and no-action carry no order.
		return model.OrderIntent{}, false
	}

	orderType := model.TypeMarket
	if decision.LimitPrice != nil {
		orderType = model.TypeLimit
	}

	return model.OrderIntent{
		ID:           uuid.New(),
		InstrumentID: decision.InstrumentID,
		StrategyID:   decision.StrategyID,
		Side:         side,
		Quantity:     decision.Quantity,
		OrderType:    orderType,
		LimitPrice:   decision.LimitPrice,
		RefPrice:     decision.Price,
		ObservedAt:   decision.ObservedAt,
		CreatedAt:    time.Now().UTC(),
	}, true
}
