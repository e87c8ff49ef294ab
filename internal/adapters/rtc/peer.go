// Package rtc wraps the pion peer connection for the offer side of an
// avatar call: local tracks attached up front, trickle ICE pushed to the
// signaling layer, inbound tracks accumulated into one remote aggregate.
package rtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/factime/factime-go/internal/core"
	"github.com/factime/factime-go/internal/domain"
)

// Factory builds peer sessions from a shared API (media-engine codecs) and
// ICE configuration.
type Factory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}
}

// NewFactory builds a factory. api may be nil, in which case the default
// engine is used; iceServers empty falls back to public STUN.
func NewFactory(api *webrtc.API, iceServers []webrtc.ICEServer) *Factory {
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers()
	}
	return &Factory{api: api, cfg: webrtc.Configuration{ICEServers: iceServers}}
}

// Create builds a peer connection with every local track attached, so the
// offer created next already describes them.
func (f *Factory) Create(media core.LocalMedia, sink core.PeerSink) (core.PeerConn, error) {
	var pc *webrtc.PeerConnection
	var err error
	if f.api != nil {
		pc, err = f.api.NewPeerConnection(f.cfg)
	} else {
		pc, err = webrtc.NewPeerConnection(f.cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	p := &Peer{pc: pc, remote: newRemoteStream()}

	for _, track := range media.Tracks() {
		sender, err := pc.AddTrack(track)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add local track %s: %w", track.ID(), err)
		}
		p.senders = append(p.senders, localSender{
			sender: sender,
			track:  track,
			kind:   track.Kind(),
		})
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		sink.OnLocalCandidate(fromICEInit(c.ToJSON()))
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		p.remote.add(track)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_state", s.String()).Msg("peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			sink.OnPeerHealth(core.PeerConnected)
		case webrtc.PeerConnectionStateFailed:
			sink.OnPeerHealth(core.PeerFailed)
		case webrtc.PeerConnectionStateDisconnected:
			sink.OnPeerHealth(core.PeerDisconnected)
		}
	})

	return p, nil
}

type localSender struct {
	sender *webrtc.RTPSender
	track  webrtc.TrackLocal
	kind   webrtc.RTPCodecType
}

// Peer implements core.PeerConn over pion.
type Peer struct {
	pc      *webrtc.PeerConnection
	remote  *remoteStream
	senders []localSender
	once    sync.Once
}

// CreateOffer sets the local description and returns its SDP. Candidates
// trickle afterwards via the sink.
func (p *Peer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", domain.NegotiationError{Reason: "offer creation failed", Err: err}
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", domain.NegotiationError{Reason: "local description rejected", Err: err}
	}
	return offer.SDP, nil
}

func (p *Peer) ApplyRemoteAnswer(sdp string) error {
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return domain.NegotiationError{Reason: "remote answer rejected", Err: err}
	}
	return nil
}

func (p *Peer) AddRemoteCandidate(c domain.ICECandidate) error {
	return p.pc.AddICECandidate(toICEInit(c))
}

// SetAudioEnabled pauses or resumes outbound audio by swapping the sender
// track, pion's no-renegotiation equivalent of the track enabled flag.
func (p *Peer) SetAudioEnabled(on bool) error {
	return p.setKindEnabled(webrtc.RTPCodecTypeAudio, on)
}

func (p *Peer) SetVideoEnabled(on bool) error {
	return p.setKindEnabled(webrtc.RTPCodecTypeVideo, on)
}

func (p *Peer) setKindEnabled(kind webrtc.RTPCodecType, on bool) error {
	for _, s := range p.senders {
		if s.kind != kind {
			continue
		}
		var err error
		if on {
			err = s.sender.ReplaceTrack(s.track)
		} else {
			err = s.sender.ReplaceTrack(nil)
		}
		if err != nil {
			return fmt.Errorf("toggle %s track: %w", kind, err)
		}
	}
	return nil
}

func (p *Peer) Remote() core.RemoteMedia { return p.remote }

func (p *Peer) Close() {
	p.once.Do(func() {
		if err := p.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("close error")
		} else {
			log.Info().Str("module", "rtc").Msg("closed")
		}
	})
}

func fromICEInit(ci webrtc.ICECandidateInit) domain.ICECandidate {
	return domain.ICECandidate{
		Candidate:        ci.Candidate,
		SDPMid:           ci.SDPMid,
		SDPMLineIndex:    ci.SDPMLineIndex,
		UsernameFragment: ci.UsernameFragment,
	}
}

func toICEInit(c domain.ICECandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
