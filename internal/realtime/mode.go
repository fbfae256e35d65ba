package realtime

import "sync/atomic"

// Mode says whether realtime data may be used at all.
type Mode int32

const (
	ModeOnline Mode = iota
	ModeOffline
)

func (m Mode) String() string {
	if m == ModeOffline {
		return "offline"
	}
	return "online"
}

// ModeFlag is the process-wide online/offline switch. The poll loop writes it and
// every arrival computation reads it afresh.
type ModeFlag struct {
	v atomic.Int32
}

func NewModeFlag(initial Mode) *ModeFlag {
	f := &ModeFlag{}
	f.v.Store(int32(initial))
	return f
}

func (f *ModeFlag) Get() Mode {
	return Mode(f.v.Load())
}

// Set stores m and reports whether the mode changed.
func (f *ModeFlag) Set(m Mode) bool {
	return Mode(f.v.Swap(int32(m))) != m
}
