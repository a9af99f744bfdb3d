// Package engine evaluates strategies against the canonical tick stream.
//
// The engine runs as a fixed set of shards, each consuming one router
// partition. A shard owns the per-instrument state for every instrument the
// router assigns to it, so state is never shared across shards and strategy
// evaluation needs no locking. Strategies are pure: given a tick and the
// instrument's prior state they return a decision or nothing, with no
// blocking I/O, so the engine never backpressures the router for longer
// than one evaluation.
package engine
