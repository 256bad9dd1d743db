//go:build !windows

package tamer

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollBackend is the portable fallback backend (§4.5/§6: "TAMER_NOEPOLL
// forces poll"), built on golang.org/x/sys/unix.Poll. It rebuilds the
// poll(2) argument array from scratch on every Wait, trading the O(1)
// epoll_ctl bookkeeping for O(n) setup per tick — the documented cost of
// the fallback path.
type pollBackend struct {
	interest map[int]IOEvents
}

func newPollBackend() Backend {
	return &pollBackend{interest: make(map[int]IOEvents)}
}

func (b *pollBackend) Open() error  { return nil }
func (b *pollBackend) Close() error { return nil }

func (b *pollBackend) Add(fd int, events IOEvents) error {
	b.interest[fd] = events
	return nil
}

func (b *pollBackend) Modify(fd int, events IOEvents) error {
	b.interest[fd] = events
	return nil
}

func (b *pollBackend) Remove(fd int) error {
	delete(b.interest, fd)
	return nil
}

func eventsToPoll(events IOEvents) int16 {
	var e int16
	if events&EventRead != 0 {
		e |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func pollToEvents(e int16) IOEvents {
	var events IOEvents
	if e&unix.POLLIN != 0 {
		events |= EventRead
	}
	if e&unix.POLLOUT != 0 {
		events |= EventWrite
	}
	if e&(unix.POLLERR|unix.POLLNVAL) != 0 {
		events |= EventError
	}
	if e&unix.POLLHUP != 0 {
		events |= EventHangup
	}
	return events
}

func (b *pollBackend) Wait(timeout time.Duration) ([]ReadyFD, error) {
	if len(b.interest) == 0 {
		// unix.Poll with an empty set still sleeps for timeout, which is
		// exactly what an idle tick wants.
		ms := msTimeout(timeout)
		if ms != 0 {
			_, _ = unix.Poll(nil, ms)
		}
		return nil, nil
	}

	fds := make([]unix.PollFd, 0, len(b.interest))
	for fd, events := range b.interest {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: eventsToPoll(events)})
	}

	_, err := unix.Poll(fds, msTimeout(timeout))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, &BackendError{Op: "poll", Err: err}
	}

	var out []ReadyFD
	for _, pfd := range fds {
		if pfd.Revents != 0 {
			out = append(out, ReadyFD{FD: int(pfd.Fd), Events: pollToEvents(pfd.Revents)})
		}
	}
	return out, nil
}

func msTimeout(d time.Duration) int {
	if d < 0 {
		return -1
	}
	return int(d / time.Millisecond)
}
