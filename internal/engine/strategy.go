package engine

import (
	"github.com/dlu/market-intel/internal/model"
)

// Strategy evaluates one tick against an instrument's prior state. Evaluate
// must be a pure function of its arguments: no blocking I/O, no shared
// mutable state.
type Strategy interface {
	// Evaluate returns a decision for the tick, or nil when the strategy
	// has nothing to say.
	Evaluate(tick model.CanonicalTick, state *InstrumentState) *model.StrategyDecision

	ID() string
	Name() string
}

// SMACrossover signals when price diverges from its short moving average:
// buy when price runs ahead of the average, sell when it falls behind.
type SMACrossover struct {
	// Threshold is the fractional divergence required to signal, e.g.
	// 0.01 for 1%.
	Threshold float64
	// Quantity is the fixed size attached to every signal.
	Quantity float64
	// Confidence reported on every decision.
	Confidence float64
}

// NewSMACrossover returns the strategy with its standard parameters.
func NewSMACrossover() *SMACrossover {
	return &SMACrossover{
		Threshold:  0.01,
		Quantity:   10,
		Confidence: 0.6,
	}
}

func (s *SMACrossover) ID() string   { return "sma_crossover_v1" }
func (s *SMACrossover) Name() string { return "SMA Crossover" }

// Evaluate signals only once the instrument's price window is full.
func (s *SMACrossover) Evaluate(tick model.CanonicalTick, state *InstrumentState) *model.StrategyDecision {
	sma, ok := state.SMA()
	if !ok {
		return nil
	}

	var action model.DecisionAction
	switch {
	case tick.Price > sma*(1+s.Threshold):
		action = model.ActionBuy
	case tick.Price < sma*(1-s.Threshold):
		action = model.ActionSell
	default:
		return nil
	}

	return &model.StrategyDecision{
		StrategyID:   s.ID(),
		StrategyName: s.Name(),
		InstrumentID: tick.InstrumentID,
		ObservedAt:   tick.ObservedAt,
		Action:       action,
		Quantity:     s.Quantity,
		LimitPrice:   nil, // Market order
		Price:        tick.Price,
		Confidence:   s.Confidence,
	}
}
