package rtc

import (
	"sync/atomic"

	"github.com/dkeye/liveroom/internal/core"
)

type outputState int32

const (
	outputOk outputState = iota
	outputDelete
)

// output is one surface a relayed stream is drawn into.
type output struct {
	sink  core.Sink
	state atomic.Int32 // zero is outputOk
}

func newOutput(sink core.Sink) *output {
	return &output{sink: sink}
}

func (o *output) get() outputState { return outputState(o.state.Load()) }

func (o *output) markDelete() { o.state.Store(int32(outputDelete)) }
