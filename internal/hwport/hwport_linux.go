//go:build linux && hardware

package hwport

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// linuxHandle binds one netlink.Link per logical port, named
// "<iface><port index>" (e.g. eth0 with 4 ports: eth00..eth03) — the
// same per-port naming a physical switch's driver exposes its
// sub-interfaces under.
type linuxHandle struct {
	links []netlink.Link
}

func open(iface string, numPorts int) (Handle, error) {
	links := make([]netlink.Link, numPorts)
	for i := 0; i < numPorts; i++ {
		name := fmt.Sprintf("%s%d", iface, i)
		link, err := netlink.LinkByName(name)
		if err != nil {
			return nil, fmt.Errorf("hwport: open port %d (%s): %w", i, name, err)
		}
		links[i] = link
	}
	return &linuxHandle{links: links}, nil
}

func (h *linuxHandle) NumPorts() int { return len(h.links) }

// LinkUp re-fetches the link by index rather than trusting the cached
// Attrs from Open, since OperState only updates on a fresh netlink
// query.
func (h *linuxHandle) LinkUp(port int) bool {
	if port < 0 || port >= len(h.links) {
		return false
	}
	link, err := netlink.LinkByIndex(h.links[port].Attrs().Index)
	if err != nil {
		return false
	}
	return link.Attrs().OperState == netlink.OperUp
}

func (h *linuxHandle) Close() error { return nil }
