//go:build !linux

package trace

import "os"

// currentThreadID falls back to the process id on platforms with no
// native thread id exposed by golang.org/x/sys/unix; Go has no
// portable thread-local concept, so goroutines never get a stable one
// either way.
func currentThreadID() int {
	return os.Getpid()
}
