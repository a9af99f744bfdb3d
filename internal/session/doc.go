// Package session implements the Session Manager component.
//
// The Session Manager:
//   - Maintains one long-lived WebSocket session per credential per venue
//   - Authenticates each connection with the venue's pluggable scheme,
//     re-signing on every reconnect attempt
//   - Subscribes to the configured channels and tracks readiness
//   - Reconnects with bounded exponential backoff; repeated authentication
//     failures mark the session dormant and alert the operator channel
//   - Publishes every inbound data message onto the Raw Event Bus tagged
//     with its originating session and venue
package session
