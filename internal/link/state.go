package link

import "fmt"

// State is the lifecycle state of a Controller.
//
//	Stopped ──Start──▶ Starting ──ok──▶ Connected ──Stop──▶ Stopped
//	                      │                 │
//	                      └──fail──▶ Faulted ◀──read end──┘
//
// Faulted is left by Stop (cleanup) or by another Start.
type State int

const (
	Stopped State = iota
	Starting
	Connected
	Faulted
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Connected:
		return "connected"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
