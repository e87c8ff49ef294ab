// Package core holds the ports shared between the session controller and
// the transport/media adapters. Adapters own the resources they hand out;
// the controller owns their lifetime.
package core

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/factime/factime-go/internal/domain"
)

// LocalMedia is an acquired camera+microphone source. The enabled flags are
// pure local state; pausing actual delivery is the peer session's job.
type LocalMedia interface {
	Tracks() []webrtc.TrackLocal
	SetAudioEnabled(bool)
	SetVideoEnabled(bool)
	AudioEnabled() bool
	VideoEnabled() bool
	// Close stops every track exactly once.
	Close()
}

// MediaSource acquires local media. Acquire may suspend until the platform
// grants or denies device access; denial surfaces as
// domain.MediaPermissionError.
type MediaSource interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// SignalConn is an open signaling channel.
// Owned by the adapter; the controller must Close() it.
type SignalConn interface {
	// TrySend never blocks; it fails when the channel is closed or the
	// outbound buffer is full.
	TrySend(domain.SignalMessage) error
	Close()
}

// SignalSink receives inbound signaling events. OnSignalClosed fires exactly
// once, for both remote closure and local Close().
type SignalSink interface {
	OnSignal(domain.SignalMessage)
	OnSignalClosed(err error)
}

// SignalDialer opens a signaling channel for the given identity.
type SignalDialer interface {
	Dial(ctx context.Context, params domain.SessionParams, sink SignalSink) (SignalConn, error)
}

// PeerHealth is the coarse connection-health signal of a peer session.
type PeerHealth string

const (
	PeerConnected    PeerHealth = "connected"    // negotiation succeeded, media flowing
	PeerFailed       PeerHealth = "failed"       // fatal
	PeerDisconnected PeerHealth = "disconnected" // transient
)

// RemoteTrackStats is a read-only view of one inbound media track.
type RemoteTrackStats struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
}

// RemoteMedia aggregates inbound tracks. It grows as tracks arrive and is
// never replaced mid-session; safe for concurrent readers.
type RemoteMedia interface {
	Tracks() []RemoteTrackStats
}

// PeerSink receives push events from a peer session. Locally gathered
// candidates are pushed, not polled.
type PeerSink interface {
	OnLocalCandidate(domain.ICECandidate)
	OnPeerHealth(PeerHealth)
}

// PeerConn wraps one peer-to-peer media connection with local tracks
// already attached.
type PeerConn interface {
	// CreateOffer sets the local description and returns its SDP.
	CreateOffer() (string, error)
	ApplyRemoteAnswer(sdp string) error
	// AddRemoteCandidate returns an error for the caller to log; a dropped
	// candidate is never fatal.
	AddRemoteCandidate(domain.ICECandidate) error
	// SetAudioEnabled/SetVideoEnabled pause or resume outbound delivery
	// without renegotiating.
	SetAudioEnabled(bool) error
	SetVideoEnabled(bool) error
	Remote() RemoteMedia
	Close()
}

// PeerFactory builds peer sessions; each negotiation gets a fresh one.
type PeerFactory interface {
	Create(media LocalMedia, sink PeerSink) (PeerConn, error)
}

// AudioPlayer plays an out-of-band audio clip to completion.
type AudioPlayer interface {
	Play(ctx context.Context, clip []byte, mimeType string) error
}
