//go:build !darwin && !windows && !linux

package clip

// New returns a no-op backend; golang.design/x/clipboard has no driver for
// this platform.
func New() Backend {
	return newHeadless()
}
