//go:build linux

package trace

import "golang.org/x/sys/unix"

// currentThreadID returns the kernel thread id of the calling
// goroutine's current OS thread, via gettid(2).
func currentThreadID() int {
	return unix.Gettid()
}
