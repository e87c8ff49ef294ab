package app

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/factime/factime-go/internal/core"
	"github.com/factime/factime-go/internal/domain"
)

type fakeLocalMedia struct {
	mu      sync.Mutex
	audioOn bool
	videoOn bool
	closed  int
}

func (m *fakeLocalMedia) Tracks() []webrtc.TrackLocal { return nil }

func (m *fakeLocalMedia) SetAudioEnabled(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioOn = on
}

func (m *fakeLocalMedia) SetVideoEnabled(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoOn = on
}

func (m *fakeLocalMedia) AudioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioOn
}

func (m *fakeLocalMedia) VideoEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoOn
}

func (m *fakeLocalMedia) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *fakeLocalMedia) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeMediaSource struct {
	mu       sync.Mutex
	err      error
	acquired []*fakeLocalMedia
}

func (s *fakeMediaSource) Acquire(_ context.Context) (core.LocalMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	m := &fakeLocalMedia{audioOn: true, videoOn: true}
	s.acquired = append(s.acquired, m)
	return m, nil
}

func (s *fakeMediaSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.acquired)
}

func (s *fakeMediaSource) media(i int) *fakeLocalMedia {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired[i]
}

type fakeConn struct {
	mu      sync.Mutex
	sent    []domain.SignalMessage
	sendErr error
	closed  int
}

func (c *fakeConn) TrySend(msg domain.SignalMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *fakeConn) messages() []domain.SignalMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.SignalMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	mu    sync.Mutex
	err   error
	conns []*fakeConn
	sinks []core.SignalSink
}

func (d *fakeDialer) Dial(_ context.Context, _ domain.SessionParams, sink core.SignalSink) (core.SignalConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeConn{}
	d.conns = append(d.conns, c)
	d.sinks = append(d.sinks, sink)
	return c, nil
}

func (d *fakeDialer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *fakeDialer) sink(i int) core.SignalSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sinks[i]
}

type fakeRemote struct{}

func (fakeRemote) Tracks() []core.RemoteTrackStats { return nil }

type fakePeer struct {
	mu         sync.Mutex
	offerCalls int
	offerErr   error
	applyErr   error
	candErr    error
	answers    []string
	candidates []domain.ICECandidate
	audioOn    []bool
	videoOn    []bool
	closed     int
}

func (p *fakePeer) CreateOffer() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offerCalls++
	if p.offerErr != nil {
		return "", p.offerErr
	}
	return "v=0 fake-offer", nil
}

func (p *fakePeer) ApplyRemoteAnswer(sdp string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.applyErr != nil {
		return p.applyErr
	}
	p.answers = append(p.answers, sdp)
	return nil
}

func (p *fakePeer) AddRemoteCandidate(c domain.ICECandidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.candErr != nil {
		return p.candErr
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) SetAudioEnabled(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audioOn = append(p.audioOn, on)
	return nil
}

func (p *fakePeer) SetVideoEnabled(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.videoOn = append(p.videoOn, on)
	return nil
}

func (p *fakePeer) Remote() core.RemoteMedia { return fakeRemote{} }

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

func (p *fakePeer) offers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offerCalls
}

func (p *fakePeer) appliedAnswers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.answers))
	copy(out, p.answers)
	return out
}

func (p *fakePeer) lastAudioToggle() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.audioOn) == 0 {
		return false, false
	}
	return p.audioOn[len(p.audioOn)-1], true
}

func (p *fakePeer) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakePeerFactory struct {
	mu    sync.Mutex
	err   error
	peers []*fakePeer
	sinks []core.PeerSink
}

func (f *fakePeerFactory) Create(_ core.LocalMedia, sink core.PeerSink) (core.PeerConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePeer{}
	f.peers = append(f.peers, p)
	f.sinks = append(f.sinks, sink)
	return p, nil
}

func (f *fakePeerFactory) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

func (f *fakePeerFactory) peer(i int) *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peers[i]
}

func (f *fakePeerFactory) sink(i int) core.PeerSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sinks[i]
}

type fakePlayer struct {
	mu      sync.Mutex
	clips   [][]byte
	formats []string
}

func (p *fakePlayer) Play(_ context.Context, clip []byte, mimeType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clips = append(p.clips, clip)
	p.formats = append(p.formats, mimeType)
	return nil
}

func (p *fakePlayer) plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clips)
}

func (p *fakePlayer) clip(i int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clips[i]
}
