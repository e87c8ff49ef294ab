// Package domain contains entities without logic, just meta-data.
package domain

// ConnectionState is the externally observable phase of a call session.
// Exactly one value is current at any time.
type ConnectionState string

const (
	StateIdle            ConnectionState = "idle"
	StateRequestingMedia ConnectionState = "requesting-media"
	StateConnecting      ConnectionState = "connecting"
	StateConnected       ConnectionState = "connected"
	StateReconnecting    ConnectionState = "reconnecting"
	StateError           ConnectionState = "error"
)
