package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Pipeline Types
// -----------------------------------------------------------------------------

// RawEvent is a vendor message as received from a venue session, before
// normalization. It lives for a single pipeline pass and is never persisted.
type RawEvent struct {
	Venue      string    // Originating venue (e.g., "kalshi")
	SessionID  string    // Session that received the message (e.g., "kalshi-1")
	ReceivedAt time.Time // Local receive timestamp
	Payload    []byte    // Raw message bytes from the wire
}

// EventKind classifies a canonical tick.
type EventKind string

const (
	KindQuote      EventKind = "quote"
	KindTrade      EventKind = "trade"
	KindBookUpdate EventKind = "book_update"
)

// CanonicalTick is the engine's unified representation of a price/size
// observation, independent of originating venue. Immutable once produced.
type CanonicalTick struct {
	InstrumentID int64     // Resolved instrument identity
	Venue        string    // Originating venue
	Kind         EventKind // quote, trade, or book_update
	Price        float64   // [0.0, 1.0] for probability venues, native decimal otherwise
	Size         float64   // Contracts/shares; 0 when the vendor omits it
	ObservedAt   time.Time // Vendor timestamp, or receive time when absent
	IngestedAt   time.Time // Local receive timestamp
}

// -----------------------------------------------------------------------------
// Identity Types
// -----------------------------------------------------------------------------

// Instrument is the engine's internal identity for a tradable entity,
// resolved from a venue-specific ticker. Identity is keyed by
// (venue_ticker, asset_class, venue). Instruments created lazily on first
// sight carry NeedsEnrichment=true until an external batch process attaches
// human-readable metadata.
type Instrument struct {
	ID              int64
	VenueTicker     string
	DisplayName     string
	AssetClass      string
	Venue           string
	Status          string
	NeedsEnrichment bool
}

// -----------------------------------------------------------------------------
// Engine Output Types
// -----------------------------------------------------------------------------

// DecisionAction is the action a strategy recommends.
type DecisionAction string

const (
	ActionBuy      DecisionAction = "buy"
	ActionSell     DecisionAction = "sell"
	ActionHold     DecisionAction = "hold"
	ActionNoAction DecisionAction = "no_action"
)

// StrategyDecision is a write-once record of a strategy's evaluation of one
// tick. ObservedAt references the triggering tick.
type StrategyDecision struct {
	StrategyID   string
	StrategyName string
	InstrumentID int64
	ObservedAt   time.Time
	Action       DecisionAction
	Quantity     float64
	LimitPrice   *float64 // nil = market order
	Price        float64  // Tick price at evaluation time
	Confidence   float64  // 0.0 to 1.0
}

// OrderSide is the side of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType distinguishes market and limit intents.
type OrderType string

const (
	TypeMarket OrderType = "market"
	TypeLimit  OrderType = "limit"
)

// OrderIntent is a hypothetical or actual action derived from a strategy
// decision, ready for gateway processing. Write-once.
type OrderIntent struct {
	ID           uuid.UUID
	InstrumentID int64
	StrategyID   string
	Side         OrderSide
	Quantity     float64
	OrderType    OrderType
	LimitPrice   *float64
	RefPrice     float64 // Tick price the decision was made against
	ObservedAt   time.Time
	CreatedAt    time.Time
}

// ExecutionStatus is the outcome of an order intent.
type ExecutionStatus string

const (
	StatusFilled    ExecutionStatus = "filled"
	StatusRejected  ExecutionStatus = "rejected"
	StatusCancelled ExecutionStatus = "cancelled"
)

// OrderExecution confirms the outcome of an OrderIntent. Write-once.
type OrderExecution struct {
	IntentID     uuid.UUID
	InstrumentID int64
	Venue        string
	ExecutedAt   time.Time
	Price        float64
	Quantity     float64
	Status       ExecutionStatus
	VenueOrderID string
}
