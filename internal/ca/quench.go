package ca

// Quench selects how aggressively a Cell Agent suppresses redundant
// discover traffic once a tree is stacked. The real discover/traph
// algorithm this governs is out of scope (section 4.F); Quench is
// threaded through config and construction so a future implementation
// has a home, but every mode currently behaves the same: discover
// messages are not generated by this Agent at all.
type Quench int

const (
	QuenchSimple Quench = iota
	QuenchRootPort
	QuenchMyPort
)

func (q Quench) String() string {
	switch q {
	case QuenchSimple:
		return "Simple"
	case QuenchRootPort:
		return "RootPort"
	case QuenchMyPort:
		return "MyPort"
	default:
		return "Simple"
	}
}
