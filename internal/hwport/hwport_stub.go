//go:build !(linux && hardware)

package hwport

// stubHandle is what every non-hardware build gets: numPorts ports,
// all reported down, matching section 6's requirement that the
// core treat link_state == 0 as the safe default when no real hardware
// is bound.
type stubHandle struct {
	numPorts int
}

func open(_ string, numPorts int) (Handle, error) {
	return &stubHandle{numPorts: numPorts}, nil
}

func (s *stubHandle) NumPorts() int     { return s.numPorts }
func (s *stubHandle) LinkUp(_ int) bool { return false }
func (s *stubHandle) Close() error      { return nil }
