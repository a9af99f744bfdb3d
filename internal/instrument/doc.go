// Package instrument resolves venue-native tickers to canonical instrument
// identities. Identity is lazy: the first sighting of a ticker creates a
// minimal instrument row flagged for later enrichment, so a new listing
// flows through the pipeline without any upfront registration step.
package instrument
