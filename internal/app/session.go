// Package app owns the call-session state machine. One Session instance
// exclusively owns its local media, peer connection and signaling channel;
// the transcript log is the only piece shared with concurrent readers.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/factime/factime-go/internal/core"
	"github.com/factime/factime-go/internal/domain"
)

const defaultRetryDelay = 2 * time.Second

var (
	// ErrNotConnected is returned for interactive sends while the channel
	// is not open. Callers should treat it as a warning, not a failure.
	ErrNotConnected = errors.New("session not connected")
	// ErrSuperseded is returned to a Connect caller whose attempt was
	// replaced by a newer Connect or a Disconnect mid-flight.
	ErrSuperseded = errors.New("connection attempt superseded")
)

// Config tunes session behavior.
type Config struct {
	// RetryDelay is the fixed delay before the single reconnection attempt
	// armed after a transport loss.
	RetryDelay time.Duration
}

// Session drives one avatar call: acquire media, open signaling, negotiate
// the peer connection, keep the transcript, recover from transport loss.
//
// Every event source (signaling frames, peer callbacks, the retry timer,
// public calls) funnels through the session mutex, and each connection
// attempt carries an epoch; callbacks from a superseded attempt compare
// epochs and drop out, so a torn-down attempt can never revive state.
type Session struct {
	media    core.MediaSource
	signaler core.SignalDialer
	peers    core.PeerFactory
	player   core.AudioPlayer
	cfg      Config

	mu          sync.Mutex
	epoch       uint64
	state       domain.ConnectionState
	lastErr     string
	params      *domain.SessionParams
	local       core.LocalMedia
	conn        core.SignalConn
	peer        core.PeerConn
	remote      core.RemoteMedia
	muted       bool
	cameraOff   bool
	retry       retryTimer
	transcripts *TranscriptLog
}

func NewSession(media core.MediaSource, signaler core.SignalDialer, peers core.PeerFactory, player core.AudioPlayer, cfg Config) *Session {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Session{
		media:       media,
		signaler:    signaler,
		peers:       peers,
		player:      player,
		cfg:         cfg,
		state:       domain.StateIdle,
		transcripts: NewTranscriptLog(),
	}
}

// Connect begins a fresh negotiation cycle. A repeated call supersedes the
// prior attempt: last write wins. It returns once the offer is sent (or the
// attempt failed); the connected state arrives later via peer health.
func (s *Session) Connect(ctx context.Context, params domain.SessionParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return s.connect(ctx, params, nil)
}

// connect is the shared attempt body. A non-nil expect pins the attempt to a
// prior epoch: the attempt only starts if no Connect or Disconnect has run
// since, so a late retry can never supersede what the user did meanwhile.
func (s *Session) connect(ctx context.Context, params domain.SessionParams, expect *uint64) error {
	s.mu.Lock()
	if expect != nil && *expect != s.epoch {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.epoch++
	epoch := s.epoch
	s.params = &params
	s.retry.Cancel()
	s.teardownLocked()
	s.transcripts.Reset()
	s.lastErr = ""
	s.setStateLocked(domain.StateRequestingMedia)
	s.mu.Unlock()

	local, err := s.media.Acquire(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "session").Msg("media acquisition failed")
		s.failAttempt(epoch, err)
		return err
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		local.Close()
		return ErrSuperseded
	}
	s.local = local
	local.SetAudioEnabled(!s.muted)
	local.SetVideoEnabled(!s.cameraOff)
	s.mu.Unlock()

	conn, err := s.signaler.Dial(ctx, params, &signalSink{s: s, epoch: epoch})
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Str("user_id", params.UserID).Msg("signaling dial failed")
		terr := domain.TransportError{Reason: "unable to reach signaling server", Err: err}
		s.handleTransportLoss(epoch, terr)
		return terr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		conn.Close()
		return ErrSuperseded
	}
	s.conn = conn
	s.setStateLocked(domain.StateConnecting)

	// Channel is open; the offer must be created with tracks attached and
	// sent immediately.
	peer, err := s.peers.Create(s.local, &peerSink{s: s, epoch: epoch})
	if err != nil {
		return s.failLocked(domain.NegotiationError{Reason: "unable to create peer connection", Err: err})
	}
	s.peer = peer
	s.remote = peer.Remote()
	s.applyTrackFlagsLocked()

	offer, err := peer.CreateOffer()
	if err != nil {
		return s.failLocked(domain.NegotiationError{Reason: "unable to create offer", Err: err})
	}
	if err := conn.TrySend(domain.NewOffer(offer, params.ConsentToken)); err != nil {
		// The read side will notice a dead channel and arm the retry.
		log.Warn().Err(err).Str("module", "session").Msg("offer send failed")
	}
	return nil
}

// Disconnect releases every owned resource and returns to idle. Idempotent,
// and safe to call in any state, including mid-negotiation and while a
// reconnection attempt is armed.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.params = nil
	s.retry.Cancel()
	s.teardownLocked()
	s.remote = nil
	s.transcripts.Reset()
	s.lastErr = ""
	s.setStateLocked(domain.StateIdle)
}

// SendTranscript appends a user-authored entry and forwards it over the
// signaling channel. While not connected it warns and sends nothing.
func (s *Session) SendTranscript(text string) error {
	return s.sendTranscript(text, "")
}

// SendTranscriptWithAudio is SendTranscript with a base64 audio attachment.
func (s *Session) SendTranscriptWithAudio(text, audioBase64 string) error {
	return s.sendTranscript(text, audioBase64)
}

func (s *Session) sendTranscript(text, audioBase64 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateConnected || s.conn == nil {
		log.Warn().Str("module", "session").Str("state", string(s.state)).Msg("transcript send skipped: channel not open")
		return ErrNotConnected
	}
	if err := s.conn.TrySend(domain.NewTranscriptMessage(text, audioBase64)); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("transcript send failed")
		return err
	}
	s.transcripts.Append(domain.NewTranscriptEntry(domain.RoleUser, text, time.Now()))
	return nil
}

// SetMuted flips the microphone. Pure local mutation: no signaling
// round-trip, no renegotiation.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
	s.applyTrackFlagsLocked()
}

// SetCameraOff flips the camera, same semantics as SetMuted.
func (s *Session) SetCameraOff(off bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameraOff = off
	s.applyTrackFlagsLocked()
}

func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Session) CameraOff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraOff
}

func (s *Session) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the most recent user-facing failure reason, empty when none.
// Non-fatal warnings (ai-error frames) land here without a state change.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Transcripts() []domain.TranscriptEntry {
	return s.transcripts.Entries()
}

// TranscriptLog exposes the log for live subscription.
func (s *Session) TranscriptLog() *TranscriptLog {
	return s.transcripts
}

// Remote returns the inbound media aggregate, which survives error and
// reconnecting states until Disconnect or a fresh negotiation replaces it.
func (s *Session) Remote() core.RemoteMedia {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// RetryArmed reports whether a reconnection attempt is scheduled.
func (s *Session) RetryArmed() bool {
	return s.retry.Armed()
}

// --- internal transitions; every handler checks the attempt epoch ---

func (s *Session) setStateLocked(next domain.ConnectionState) {
	if s.state == next {
		return
	}
	log.Debug().Str("module", "session").Str("from", string(s.state)).Str("to", string(next)).Msg("state transition")
	s.state = next
}

// failLocked ends the attempt fatally: the epoch moves so every pending
// callback of the attempt goes stale, resources are released and no retry
// stays armed. Only a fresh Connect leaves the error state.
func (s *Session) failLocked(err error) error {
	s.epoch++
	s.retry.Cancel()
	s.teardownLocked()
	s.lastErr = humanReason(err)
	s.setStateLocked(domain.StateError)
	return err
}

func (s *Session) failAttempt(epoch uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	_ = s.failLocked(err)
}

// handleTransportLoss absorbs an unexpected channel loss: transient, so the
// state moves to reconnecting and exactly one retry is armed while a
// session is still desired.
func (s *Session) handleTransportLoss(epoch uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	s.lastErr = humanReason(err)
	s.setStateLocked(domain.StateReconnecting)
	if s.params == nil {
		return
	}
	s.retry.Schedule(s.cfg.RetryDelay, func() { s.reconnect(epoch) })
}

// reconnect runs on the retry timer goroutine, pinned to the epoch of the
// attempt it recovers. If anything moved the epoch since the retry was armed
// (Disconnect, a user Connect, a fatal failure), the attempt aborts.
func (s *Session) reconnect(epoch uint64) {
	s.mu.Lock()
	if epoch != s.epoch || s.params == nil {
		s.mu.Unlock()
		return
	}
	params := *s.params
	s.mu.Unlock()
	err := s.connect(context.Background(), params, &epoch)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		log.Warn().Err(err).Str("module", "session").Msg("reconnect attempt failed")
	}
}

// teardownLocked releases transport resources of the current attempt. The
// remote aggregate and transcript log are deliberately left alone; only
// Disconnect (or a replacing negotiation) may drop them.
func (s *Session) teardownLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.peer != nil {
		s.peer.Close()
		s.peer = nil
	}
	if s.local != nil {
		s.local.Close()
		s.local = nil
	}
}

func (s *Session) applyTrackFlagsLocked() {
	if s.local != nil {
		s.local.SetAudioEnabled(!s.muted)
		s.local.SetVideoEnabled(!s.cameraOff)
	}
	if s.peer != nil {
		if err := s.peer.SetAudioEnabled(!s.muted); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("audio toggle failed")
		}
		if err := s.peer.SetVideoEnabled(!s.cameraOff); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("video toggle failed")
		}
	}
}

// humanReason keeps raw protocol errors out of the UI surface.
func humanReason(err error) string {
	var mediaErr domain.MediaPermissionError
	if errors.As(err, &mediaErr) {
		return mediaErr.Reason
	}
	var transportErr domain.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Reason
	}
	var negErr domain.NegotiationError
	if errors.As(err, &negErr) {
		return negErr.Reason
	}
	return err.Error()
}
