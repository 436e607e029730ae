package signal

type BackpressureAction int

const (
	DropEvent BackpressureAction = iota
	KickClient
)

// Policy decides what happens to a client whose send buffer is full.
// missed counts consecutive events it has not received.
type Policy interface {
	OnBackpressure(viewer string, missed int64) BackpressureAction
}

// KickAfter drops events until a client has missed Limit in a row, then disconnects it.
// Zero Limit never kicks.
type KickAfter struct {
	Limit int64
}

func (p KickAfter) OnBackpressure(_ string, missed int64) BackpressureAction {
	if p.Limit > 0 && missed >= p.Limit {
		return KickClient
	}
	return DropEvent
}
