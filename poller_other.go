//go:build !linux

package tamer

// newDefaultBackend resolves TAMER_DRIVER's "" / "epoll" request on a
// non-Linux build: epoll does not exist here, so the portable poll
// backend is always used, per SPEC_FULL.md's §4.5 backend plan.
func newDefaultBackend(_ bool) (Backend, error) {
	return newPollBackend(), nil
}
