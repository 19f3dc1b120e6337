package deskdroid

// ServiceState is the lifecycle state of a generated systemd unit.
type ServiceState uint8

const (
	NotInstalled ServiceState = iota
	Stopped
	Running
)

func (s ServiceState) String() string {
	switch s {
	case NotInstalled:
		return "not installed"
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Service names of the two generated units. The display server must be
// started before the bridge; stop order is the reverse.
const (
	DisplayService = "deskdroid-vnc"
	BridgeService  = "deskdroid-novnc"
)
