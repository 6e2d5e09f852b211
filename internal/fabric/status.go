package fabric

import "fabricmesh/internal/blueprint"

// Status is a link-state event a Port forwards upward to its Packet
// Engine whenever its Link connects or disconnects.
type Status int

const (
	StatusConnected Status = iota
	StatusDisconnected
)

func (s Status) String() string {
	if s == StatusConnected {
		return "Connected"
	}
	return "Disconnected"
}

// Delivery is what a Port hands upward to the Packet Engine: either a
// payload-bearing Packet or a link Status event, never both, tagged
// with the port it arrived on so a PE multiplexing many ports over one
// fan-in channel can tell them apart.
type Delivery struct {
	Port     blueprint.PortNo
	Packet   Packet
	Status   Status
	IsStatus bool
}
