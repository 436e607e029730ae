package rtc

import (
	"context"
	"maps"
	"sync"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// rtpSource is what the relay reads from; *webrtc.TrackRemote satisfies it.
type rtpSource interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// relay pumps RTP payloads from one remote track into every attached output.
type relay struct {
	src rtpSource

	mu      sync.RWMutex
	outputs map[string]*output
}

func newRelay(src rtpSource) *relay {
	return &relay{src: src, outputs: make(map[string]*output)}
}

func (r *relay) add(key string, o *output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[key] = o
}

func (r *relay) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outputs)
}

// loop runs until ctx ends or the source fails.
func (r *relay) loop(ctx context.Context, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("relay ctx done")
			r.markAllDelete()
			return
		default:
		}
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read RTP stopped")
			r.markAllDelete()
			return
		}
		r.forward(pkt)
	}
}

func (r *relay) forward(pkt *rtp.Packet) {
	r.mu.RLock()
	snapshot := maps.Clone(r.outputs)
	r.mu.RUnlock()

	var dirty []string
	for key, o := range snapshot {
		switch o.get() {
		case outputDelete:
			dirty = append(dirty, key)
		case outputOk:
			o.sink.Draw(core.Frame(pkt.Payload))
		}
	}
	if len(dirty) > 0 {
		r.mu.Lock()
		for _, key := range dirty {
			delete(r.outputs, key)
		}
		r.mu.Unlock()
	}
}

func (r *relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outputs {
		o.markDelete()
	}
}
