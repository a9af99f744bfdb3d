// Package model defines shared data types used across the Intelligence Engine.
//
// Conventions:
//   - Prices: float64; probability venues normalize cents (0-100) to
//     [0.0, 1.0], quote venues keep the vendor's native decimal unit
//   - Timestamps: time.Time in UTC
//   - IDs: int64 for instruments (database identity), uuid.UUID for
//     order intents
package model
