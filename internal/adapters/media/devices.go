// Package media acquires the local camera and microphone through
// pion/mediadevices, the Go counterpart of getUserMedia. Acquisition
// failures are terminal for the current attempt; there are no retries here.
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	_ "github.com/pion/mediadevices/pkg/driver/camera"     // register camera driver
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // register microphone driver

	"github.com/factime/factime-go/internal/core"
	"github.com/factime/factime-go/internal/domain"
)

// Acquirer opens device streams encoded with opus/VP8 and exposes the
// webrtc API populated with the matching codecs, so peer connections
// negotiate exactly what the tracks produce.
type Acquirer struct {
	selector *mediadevices.CodecSelector
	api      *webrtc.API
}

func NewAcquirer() (*Acquirer, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	opusParams.BitRate = 32_000
	opusParams.Latency = opus.Latency20ms

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 500_000
	vpxParams.KeyFrameInterval = 15

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithAudioEncoders(&opusParams),
		mediadevices.WithVideoEncoders(&vpxParams),
	)

	engine := webrtc.MediaEngine{}
	selector.Populate(&engine)
	api := webrtc.NewAPI(webrtc.WithMediaEngine(&engine))

	return &Acquirer{selector: selector, api: api}, nil
}

// API returns the engine the peer factory must build connections from.
func (a *Acquirer) API() *webrtc.API { return a.api }

// Acquire opens camera+microphone. The underlying driver may block until
// the platform grants access; denial or absent devices map to
// domain.MediaPermissionError with a user-presentable reason.
func (a *Acquirer) Acquire(ctx context.Context) (core.LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(640)
			c.Height = prop.Int(480)
			c.FrameRate = prop.Float(30)
		},
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(48000)
			c.ChannelCount = prop.Int(1)
		},
		Codec: a.selector,
	})
	if err != nil {
		return nil, domain.MediaPermissionError{
			Reason: "camera or microphone unavailable",
			Err:    err,
		}
	}
	log.Info().Str("module", "media").Int("tracks", len(stream.GetTracks())).Msg("local media acquired")
	return newLocalStream(stream), nil
}

// localStream implements core.LocalMedia over a mediadevices stream.
type localStream struct {
	mu      sync.Mutex
	stream  mediadevices.MediaStream
	audioOn bool
	videoOn bool
	closed  bool
}

func newLocalStream(stream mediadevices.MediaStream) *localStream {
	return &localStream{stream: stream, audioOn: true, videoOn: true}
}

func (l *localStream) Tracks() []webrtc.TrackLocal {
	tracks := l.stream.GetTracks()
	out := make([]webrtc.TrackLocal, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t)
	}
	return out
}

func (l *localStream) SetAudioEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audioOn = on
}

func (l *localStream) SetVideoEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.videoOn = on
}

func (l *localStream) AudioEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.audioOn
}

func (l *localStream) VideoEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.videoOn
}

// Close stops every track exactly once.
func (l *localStream) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for _, t := range l.stream.GetTracks() {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Str("module", "media").Str("track_id", t.ID()).Msg("track close")
		}
	}
}
