package gateway

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dlu/market-intel/internal/model"
)

// SimVenue tags executions produced by the simulated gateway.
const SimVenue = "simulation"

// SimGateway fills every intent immediately: limit orders at their limit
// price, market orders at the reference price the decision was made
// against. No real venue is touched.
type SimGateway struct {
	in         <-chan model.OrderIntent
	executions chan model.OrderExecution
	logger     *slog.Logger

	filled atomic.Int64
}

// NewSimGateway creates a simulated gateway. The execution stream is closed
// by Run when the intent stream ends.
func NewSimGateway(in <-chan model.OrderIntent, buffer int, logger *slog.Logger) *SimGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimGateway{
		in:         in,
		executions: make(chan model.OrderExecution, buffer),
		logger:     logger,
	}
}

// Executions returns the execution stream for the recorder.
func (g *SimGateway) Executions() <-chan model.OrderExecution { return g.executions }

// Run fills intents until the input closes, then closes the execution
// stream.
func (g *SimGateway) Run() {
	g.logger.Info("simulated gateway started")

	for intent := range g.in {
		exec := g.fill(intent)

		g.logger.Info("simulated fill",
			"intent_id", intent.ID,
			"instrument_id", intent.InstrumentID,
			"side", intent.Side,
			"quantity", intent.Quantity,
			"price", exec.Price,
		)

		g.executions <- exec
		g.filled.Add(1)
	}

	close(g.executions)
	g.logger.Info("simulated gateway stopped", "filled", g.filled.Load())
}

// Filled returns the number of simulated fills so far.
func (g *SimGateway) Filled() int64 {
	return g.filled.Load()
}

func (g *SimGateway) fill(intent model.OrderIntent) model.OrderExecution {
	price := intent.RefPrice
	if intent.LimitPrice != nil {
		price = *intent.LimitPrice
	}

	return model.OrderExecution{
		IntentID:     intent.ID,
		InstrumentID: intent.InstrumentID,
		Venue:        SimVenue,
		ExecutedAt:   time.Now().UTC(),
		Price:        price,
		Quantity:     intent.Quantity,
		Status:       model.StatusFilled,
		VenueOrderID: fmt.Sprintf("SIM-%s", intent.ID),
	}
}
