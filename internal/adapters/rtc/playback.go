package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// playback is one played stream: a publisher/subscriber PeerConnection pair
// whose received track is relayed into the bound sink.
type playback struct {
	streamID domain.StreamID
	sink     core.Sink
	logger   zerolog.Logger

	mu         sync.Mutex
	stopped    bool
	connecting bool
	pub, sub   *peer
	relay      *relay
}

func newPlayback(streamID domain.StreamID, sink core.Sink, logger zerolog.Logger) *playback {
	return &playback{
		streamID: streamID,
		sink:     sink,
		logger:   logger.With().Str("stream", string(streamID)).Logger(),
	}
}

func (p *playback) connect(ctx context.Context, api *webrtc.API, cfg webrtc.Configuration, track webrtc.TrackLocal) error {
	p.mu.Lock()
	if p.stopped || p.connecting || p.sub != nil {
		p.mu.Unlock()
		return nil
	}
	p.connecting = true
	p.mu.Unlock()

	pub, sub, err := p.dial(ctx, api, cfg, track)

	p.mu.Lock()
	p.connecting = false
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if p.stopped {
		p.mu.Unlock()
		pub.close()
		sub.close()
		return nil
	}
	p.pub, p.sub = pub, sub
	p.mu.Unlock()
	p.logger.Info().Msg("playback connected")
	return nil
}

func (p *playback) dial(ctx context.Context, api *webrtc.API, cfg webrtc.Configuration, track webrtc.TrackLocal) (*peer, *peer, error) {
	pub, err := newPeer(api, cfg, p.logger.With().Str("side", "pub").Logger())
	if err != nil {
		return nil, nil, fmt.Errorf("publisher peer: %w", err)
	}
	if _, err := pub.pc.AddTrack(track); err != nil {
		pub.close()
		return nil, nil, fmt.Errorf("add track: %w", err)
	}
	sub, err := newPeer(api, cfg, p.logger.With().Str("side", "sub").Logger())
	if err != nil {
		pub.close()
		return nil, nil, fmt.Errorf("subscriber peer: %w", err)
	}
	if _, err := sub.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pub.close()
		sub.close()
		return nil, nil, fmt.Errorf("add transceiver: %w", err)
	}
	sub.onTrack = p.attach
	pub.start(ctx)
	sub.start(ctx)

	fail := func(err error) (*peer, *peer, error) {
		pub.close()
		sub.close()
		return nil, nil, err
	}
	offer, err := pub.offer()
	if err != nil {
		return fail(err)
	}
	answer, err := sub.answer(*offer)
	if err != nil {
		return fail(err)
	}
	if err := pub.accept(*answer); err != nil {
		return fail(fmt.Errorf("set remote answer: %w", err))
	}
	return pub, sub, nil
}

// attach starts relaying a received track into the sink.
func (p *playback) attach(ctx context.Context, track *webrtc.TrackRemote) {
	r := newRelay(track)
	r.add(string(p.streamID), newOutput(p.sink))
	p.mu.Lock()
	p.relay = r
	p.mu.Unlock()
	go r.loop(ctx, p.logger)
}

func (p *playback) connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sub != nil
}

// disconnect drops the connection but keeps the binding, so a re-published
// stream is picked up again.
func (p *playback) disconnect() {
	p.mu.Lock()
	pub, sub, r := p.pub, p.sub, p.relay
	p.pub, p.sub, p.relay = nil, nil, nil
	p.mu.Unlock()
	if r != nil {
		r.markAllDelete()
	}
	pub.close()
	sub.close()
	if sub != nil {
		p.logger.Info().Msg("playback disconnected")
	}
}

func (p *playback) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.disconnect()
}
