// Package gateway turns strategy decisions into order intents and routes
// intents for execution.
//
// The Coordinator is the single merge point for decisions: it converts
// actionable decisions into intents and tees both record kinds to the
// recorder so nothing the engine produced is lost. The Gateway executes
// intents; only simulated execution is implemented, which fills every
// intent immediately at its reference price.
package gateway
