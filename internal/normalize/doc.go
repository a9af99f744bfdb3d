// Package normalize converts venue-native raw events into canonical ticks.
//
// Vendor payloads are not consistent about field names: the body may sit
// under "data" or "msg", and a usable price may appear as a direct last-price
// field or only as a bid/ask pair under one of two naming generations. Each
// message kind is decoded into a typed shape and the price is resolved by an
// ordered fallback chain; events that yield no price are dropped and counted,
// never fatal.
package normalize
