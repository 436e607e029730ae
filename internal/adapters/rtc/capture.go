package rtc

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
)

const frameSize = 256

// frameMagic prefixes every synthetic frame so playback can tell it apart from noise.
var frameMagic = [4]byte{'L', 'R', 'V', '1'}

// capture is the synthetic camera. It runs while a preview sink or a publish
// track is attached and stops when both are gone.
type capture struct {
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	sink   core.Sink
	track  *webrtc.TrackLocalStaticSample
	front  bool
	seq    uint32
	cancel context.CancelFunc
	done   chan struct{}
}

func newCapture(fps int, logger zerolog.Logger) *capture {
	if fps <= 0 {
		fps = 15
	}
	return &capture{interval: time.Second / time.Duration(fps), logger: logger, front: true}
}

func (c *capture) setSink(s core.Sink) {
	c.mu.Lock()
	c.sink = s
	c.mu.Unlock()
	c.reconcile()
}

func (c *capture) setTrack(t *webrtc.TrackLocalStaticSample) {
	c.mu.Lock()
	c.track = t
	c.mu.Unlock()
	c.reconcile()
}

func (c *capture) setFront(front bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.front = front
}

func (c *capture) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// reconcile starts or stops the loop to match what is attached.
func (c *capture) reconcile() {
	c.mu.Lock()
	wanted := c.sink != nil || c.track != nil
	if wanted && c.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel, c.done = cancel, make(chan struct{})
		go c.run(ctx, c.done)
		c.mu.Unlock()
		c.logger.Debug().Dur("interval", c.interval).Msg("capture started")
		return
	}
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	if !wanted && c.cancel != nil {
		cancel, done = c.cancel, c.done
		c.cancel, c.done = nil, nil
	}
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
		c.logger.Debug().Msg("capture stopped")
	}
}

func (c *capture) stop() {
	c.mu.Lock()
	c.sink, c.track = nil, nil
	c.mu.Unlock()
	c.reconcile()
}

func (c *capture) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *capture) tick() {
	c.mu.Lock()
	c.seq++
	frame := syntheticFrame(c.seq, c.front)
	sink, track := c.sink, c.track
	c.mu.Unlock()

	if sink != nil {
		sink.Draw(frame)
	}
	if track != nil {
		if err := track.WriteSample(media.Sample{Data: frame, Duration: c.interval}); err != nil {
			c.logger.Warn().Err(err).Msg("write sample")
		}
	}
}

// syntheticFrame is magic, facing byte, sequence, then a fill pattern.
func syntheticFrame(seq uint32, front bool) core.Frame {
	f := make([]byte, frameSize)
	copy(f, frameMagic[:])
	if front {
		f[4] = 1
	}
	binary.BigEndian.PutUint32(f[5:9], seq)
	for i := 9; i < frameSize; i++ {
		f[i] = byte(seq) + byte(i)
	}
	return f
}
