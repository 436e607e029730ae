package surface

import (
	"sync/atomic"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/rs/zerolog/log"
)

// CountingSink is a headless renderer: it counts what would have been drawn.
type CountingSink struct {
	name   string
	frames atomic.Uint64
	bytes  atomic.Uint64
}

func NewCountingSink(name string) *CountingSink {
	return &CountingSink{name: name}
}

func (s *CountingSink) Draw(f core.Frame) {
	if s.frames.Add(1) == 1 {
		log.Info().Str("module", "surface").Str("sink", s.name).Int("size", len(f)).Msg("first frame")
	}
	s.bytes.Add(uint64(len(f)))
}

func (s *CountingSink) Frames() uint64 { return s.frames.Load() }
func (s *CountingSink) Bytes() uint64  { return s.bytes.Load() }
