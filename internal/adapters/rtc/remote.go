package rtc

import (
	"sort"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/factime/factime-go/internal/core"
)

// remoteStream aggregates inbound tracks. The aggregate only grows for the
// life of one negotiation; a fresh negotiation builds a fresh aggregate so
// observers never see tracks vanish mid-session.
type remoteStream struct {
	mu     sync.RWMutex
	tracks map[string]*remoteTrack
}

type remoteTrack struct {
	id, kind string
	packets  uint64
	bytes    uint64
}

func newRemoteStream() *remoteStream {
	return &remoteStream{tracks: make(map[string]*remoteTrack)}
}

func (r *remoteStream) add(track *webrtc.TrackRemote) {
	r.mu.Lock()
	rt := &remoteTrack{id: track.ID(), kind: track.Kind().String()}
	r.tracks[track.ID()] = rt
	r.mu.Unlock()
	go r.pump(track, rt)
}

// pump drains RTP from one remote track, keeping delivery counters current.
// It exits when the track's receiver is torn down.
func (r *remoteStream) pump(track *webrtc.TrackRemote, rt *remoteTrack) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "rtc").Str("track_id", rt.id).Msg("remote track pump done")
			return
		}
		r.record(rt, pkt)
	}
}

func (r *remoteStream) record(rt *remoteTrack, pkt *rtp.Packet) {
	r.mu.Lock()
	rt.packets++
	rt.bytes += uint64(len(pkt.Payload))
	r.mu.Unlock()
}

func (r *remoteStream) Tracks() []core.RemoteTrackStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RemoteTrackStats, 0, len(r.tracks))
	for _, t := range r.tracks {
		out = append(out, core.RemoteTrackStats{
			ID:      t.id,
			Kind:    t.kind,
			Packets: t.packets,
			Bytes:   t.bytes,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
