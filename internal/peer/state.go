package peer

import "fmt"

// State is the lifecycle state of a Peer.
type State int32

const (
	// Stopped is the initial state and the state Run returns to.
	Stopped State = iota
	// Running means the main loop is ticking.
	Running
	// Stopping means the loop has exited and plugins are being unloaded.
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
