package app

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/factime/factime-go/internal/core"
	"github.com/factime/factime-go/internal/domain"
)

const playbackTimeout = 30 * time.Second

// signalSink routes inbound signaling events into the session. It is bound
// to one connection attempt; events from a superseded attempt are dropped.
type signalSink struct {
	s     *Session
	epoch uint64
}

func (k *signalSink) OnSignal(msg domain.SignalMessage) {
	s := k.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if k.epoch != s.epoch {
		return
	}

	switch msg.Type {
	case domain.MsgAnswer:
		if s.peer == nil {
			return
		}
		if err := s.peer.ApplyRemoteAnswer(msg.SDP); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("apply remote answer failed")
			_ = s.failLocked(domain.NegotiationError{Reason: "remote answer rejected", Err: err})
		}

	case domain.MsgICECandidate:
		if s.peer == nil || msg.Candidate == nil {
			return
		}
		if err := s.peer.AddRemoteCandidate(*msg.Candidate); err != nil {
			// Candidates racing the answer may not apply cleanly; dropping
			// one is never fatal.
			log.Warn().Err(err).Str("module", "session").Msg("remote candidate dropped")
		}

	case domain.MsgUserTranscript:
		s.transcripts.Append(domain.NewTranscriptEntry(domain.RoleUser, msg.Text, msg.EventTime()))

	case domain.MsgAIResponse:
		s.transcripts.Append(domain.NewTranscriptEntry(domain.RoleAI, msg.Text, msg.EventTime()))

	case domain.MsgAIAudio:
		// Playback must not block transcript or signaling flow.
		go s.playClip(msg.Audio, msg.Format)

	case domain.MsgAIError:
		log.Warn().Str("module", "session").Bool("retryable", msg.Retryable).Str("message", msg.Message).Msg("remote reported error")
		s.lastErr = msg.Message

	default:
		log.Warn().Str("module", "session").Str("type", string(msg.Type)).Msg("unexpected signal ignored")
	}
}

func (k *signalSink) OnSignalClosed(err error) {
	s := k.s
	s.mu.Lock()
	epoch, current := k.epoch, s.epoch
	s.mu.Unlock()
	if epoch != current {
		return
	}
	log.Warn().Err(err).Str("module", "session").Msg("signaling channel closed")
	s.handleTransportLoss(epoch, domain.TransportError{Reason: "signaling connection lost", Err: err})
}

// peerSink routes peer-connection events into the session.
type peerSink struct {
	s     *Session
	epoch uint64
}

func (k *peerSink) OnLocalCandidate(c domain.ICECandidate) {
	s := k.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if k.epoch != s.epoch || s.conn == nil {
		return
	}
	if err := s.conn.TrySend(domain.NewCandidateMessage(c)); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("candidate send failed")
	}
}

func (k *peerSink) OnPeerHealth(h core.PeerHealth) {
	s := k.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if k.epoch != s.epoch {
		return
	}
	switch h {
	case core.PeerConnected:
		s.lastErr = ""
		s.setStateLocked(domain.StateConnected)
	case core.PeerFailed:
		_ = s.failLocked(domain.NegotiationError{Reason: "call connection failed"})
	case core.PeerDisconnected:
		s.setStateLocked(domain.StateReconnecting)
	}
}

// playClip decodes a base64 audio payload and plays it. Runs off the
// session lock; failures are logged, never surfaced as session errors.
func (s *Session) playClip(audioBase64, format string) {
	if s.player == nil || audioBase64 == "" {
		return
	}
	clip, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("ai audio payload undecodable")
		return
	}
	if format == "" {
		format = "audio/mpeg"
	}
	ctx, cancel := context.WithTimeout(context.Background(), playbackTimeout)
	defer cancel()
	if err := s.player.Play(ctx, clip, format); err != nil {
		log.Warn().Err(err).Str("module", "session").Str("format", format).Msg("ai audio playback failed")
	}
}
