package gateway

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dlu/market-intel/internal/model"
)

func decision(action model.DecisionAction) model.StrategyDecision {
	return model.StrategyDecision{
		StrategyID:   "sma_crossover_v1",
		StrategyName: "SMA Crossover",
		InstrumentID: 42,
		ObservedAt:   time.Now().UTC(),
		Action:       action,
		Quantity:     10,
		Price:        0.63,
		Confidence:   0.6,
	}
}

func TestCoordinator_BuyDecisionBecomesIntent(t *testing.T) {
	in := make(chan model.StrategyDecision, 10)
	c := NewCoordinator(in, 10, nil)

	go c.Run()

	in <- decision(model.ActionBuy)
	close(in)

	intent, ok := <-c.Intents()
	if !ok {
		t.Fatal("expected an intent")
	}

	if intent.ID == uuid.Nil {
		t.Error("intent should carry a fresh id")
	}
	if intent.Side != model.SideBuy {
		t.Errorf("Side = %v, want buy", intent.Side)
	}
	if intent.OrderType != model.TypeMarket {
		t.Errorf("OrderType = %v, want market (no limit price)", intent.OrderType)
	}
	if intent.RefPrice != 0.63 {
		t.Errorf("RefPrice = %v, want 0.63", intent.RefPrice)
	}
	if intent.InstrumentID != 42 {
		t.Errorf("InstrumentID = %d, want 42", intent.InstrumentID)
	}
	if intent.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	// The recorder sees the decision and the same intent.
	recDec, ok := <-c.RecordedDecisions()
	if !ok || recDec.Action != model.ActionBuy {
		t.Errorf("recorded decision = %+v", recDec)
	}
	recIntent, ok := <-c.RecordedIntents()
	if !ok || recIntent.ID != intent.ID {
		t.Errorf("recorded intent id = %v, want %v", recIntent.ID, intent.ID)
	}
}

func TestCoordinator_LimitDecision(t *testing.T) {
	in := make(chan model.StrategyDecision, 10)
	c := NewCoordinator(in, 10, nil)
	go c.Run()

	limit := 0.55
	d := decision(model.ActionSell)
	d.LimitPrice = &limit
	in <- d
	close(in)

	intent := <-c.Intents()
	if intent.OrderType != model.TypeLimit {
		t.Errorf("OrderType = %v, want limit", intent.OrderType)
	}
	if intent.LimitPrice == nil || *intent.LimitPrice != 0.55 {
		t.Errorf("LimitPrice = %v, want 0.55", intent.LimitPrice)
	}
	if intent.Side != model.SideSell {
		t.Errorf("Side = %v, want sell", intent.Side)
	}
}

func TestCoordinator_HoldProducesNoIntent(t *testing.T) {
	in := make(chan model.StrategyDecision, 10)
	c := NewCoordinator(in, 10, nil)
	go c.Run()

	in <- decision(model.ActionHold)
	in <- decision(model.ActionNoAction)
	close(in)

	if _, ok := <-c.Intents(); ok {
		t.Error("hold/no-action must not produce intents")
	}

	// Both decisions are still recorded.
	var recorded int
	for range c.RecordedDecisions() {
		recorded++
	}
	if recorded != 2 {
		t.Errorf("recorded %d decisions, want 2", recorded)
	}
	if c.Produced() != 0 {
		t.Errorf("Produced = %d, want 0", c.Produced())
	}
}

func TestCoordinator_FreshIntentIDs(t *testing.T) {
	in := make(chan model.StrategyDecision, 10)
	c := NewCoordinator(in, 10, nil)
	go c.Run()

	in <- decision(model.ActionBuy)
	in <- decision(model.ActionBuy)
	close(in)

	a := <-c.Intents()
	b := <-c.Intents()
	if a.ID == b.ID {
		t.Error("each intent must get its own id")
	}
}

func TestSimGateway_FillsAtRefPrice(t *testing.T) {
	in := make(chan model.OrderIntent, 10)
	g := NewSimGateway(in, 10, nil)
	go g.Run()

	intent := model.OrderIntent{
		ID:           uuid.New(),
		InstrumentID: 42,
		StrategyID:   "sma_crossover_v1",
		Side:         model.SideBuy,
		Quantity:     10,
		OrderType:    model.TypeMarket,
		RefPrice:     0.63,
		CreatedAt:    time.Now().UTC(),
	}
	in <- intent
	close(in)

	exec, ok := <-g.Executions()
	if !ok {
		t.Fatal("expected an execution")
	}

	if exec.IntentID != intent.ID {
		t.Errorf("IntentID = %v, want %v", exec.IntentID, intent.ID)
	}
	if exec.Price != 0.63 {
		t.Errorf("Price = %v, want ref price 0.63", exec.Price)
	}
	if exec.Status != model.StatusFilled {
		t.Errorf("Status = %v, want filled", exec.Status)
	}
	if exec.Venue != SimVenue {
		t.Errorf("Venue = %q, want %q", exec.Venue, SimVenue)
	}
	if want := "SIM-" + intent.ID.String(); exec.VenueOrderID != want {
		t.Errorf("VenueOrderID = %q, want %q", exec.VenueOrderID, want)
	}

	if _, ok := <-g.Executions(); ok {
		t.Error("execution stream should close after input drains")
	}
	if g.Filled() != 1 {
		t.Errorf("Filled = %d, want 1", g.Filled())
	}
}

func TestSimGateway_FillsAtLimitPrice(t *testing.T) {
	in := make(chan model.OrderIntent, 10)
	g := NewSimGateway(in, 10, nil)
	go g.Run()

	limit := 0.55
	in <- model.OrderIntent{
		ID:         uuid.New(),
		Side:       model.SideSell,
		Quantity:   10,
		OrderType:  model.TypeLimit,
		LimitPrice: &limit,
		RefPrice:   0.63,
	}
	close(in)

	exec := <-g.Executions()
	if exec.Price != 0.55 {
		t.Errorf("Price = %v, want limit price 0.55", exec.Price)
	}
}
