package engine

import (
	"time"

	"github.com/dlu/market-intel/internal/model"
)

// smaWindow is the number of ticks in the moving-average window.
const smaWindow = 5

// InstrumentState is the per-instrument state a shard maintains across
// ticks. Owned by exactly one shard.
type InstrumentState struct {
	InstrumentID int64
	LastPrice    float64
	LastSeen     time.Time
	TickCount    int64

	// Rolling window for the moving average.
	history []float64
}

// NewInstrumentState creates empty state for an instrument.
func NewInstrumentState(instrumentID int64) *InstrumentState {
	return &InstrumentState{
		InstrumentID: instrumentID,
		history:      make([]float64, 0, smaWindow),
	}
}

// Update folds one tick into the state.
func (s *InstrumentState) Update(tick model.CanonicalTick) {
	s.LastPrice = tick.Price
	s.LastSeen = tick.ObservedAt
	s.TickCount++

	s.history = append(s.history, tick.Price)
	if len(s.history) > smaWindow {
		s.history = s.history[1:]
	}
}

// SMA returns the moving average over the window, and false until the
// window is full.
func (s *InstrumentState) SMA() (float64, bool) {
	if len(s.history) < smaWindow {
		return 0, false
	}
	var sum float64
	for _, p := range s.history {
		sum += p
	}
	return sum / float64(len(s.history)), true
}
