package fabric

import "sync"

// FailoverInfo tracks the last packet sent on a port that has not yet
// been acknowledged by a receive from the peer. Port.Outstanding exposes
// it; nothing in the fabric or the Rack replays the recorded packet
// after a link break.
type FailoverInfo struct {
	mu  sync.Mutex
	pkt *Packet
}

// Set records pkt as outstanding, replacing whatever was previously
// outstanding. Send sets this before the packet reaches the link so a
// break observed concurrently with the send never loses it.
func (f *FailoverInfo) Set(pkt Packet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := pkt
	f.pkt = &p
}

// Clear drops the outstanding packet, if any. Called unconditionally at
// the top of a receive, before the received packet is examined.
func (f *FailoverInfo) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pkt = nil
}

// Get returns the outstanding packet and whether one is set.
func (f *FailoverInfo) Get() (Packet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pkt == nil {
		return Packet{}, false
	}
	return *f.pkt, true
}
