package rtc

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// peer wraps one side of a loopback PeerConnection pair.
type peer struct {
	pc     *webrtc.PeerConnection
	logger zerolog.Logger
	cancel context.CancelFunc

	onTrack func(ctx context.Context, track *webrtc.TrackRemote)
}

func newPeer(api *webrtc.API, cfg webrtc.Configuration, logger zerolog.Logger) (*peer, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &peer{pc: pc, logger: logger}, nil
}

func iceConfig(servers []string) webrtc.Configuration {
	if len(servers) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{ICEServers: []webrtc.ICEServer{{URLs: servers}}}
}

// start hooks state logging and track delivery. The ctx handed to onTrack ends
// when the connection fails or closes.
func (p *peer) start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		p.logger.Debug().Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed || s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.logger.Debug().Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			cancel()
		}
	})
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if p.onTrack != nil {
			p.onTrack(ctx, track)
		}
	})
}

// offer creates a local offer and waits for candidate gathering, so the
// description carries every candidate and no trickle is needed.
func (p *peer) offer() (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local offer: %w", err)
	}
	<-gatherComplete
	return p.pc.LocalDescription(), nil
}

func (p *peer) answer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local answer: %w", err)
	}
	<-gatherComplete
	return p.pc.LocalDescription(), nil
}

func (p *peer) accept(answer webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(answer)
}

func (p *peer) close() {
	if p == nil {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	if err := p.pc.Close(); err != nil {
		p.logger.Error().Err(err).Msg("close error")
		return
	}
	p.logger.Debug().Msg("closed")
}
