//go:build linux

package tamer

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollBackend is the default Linux backend, adapted from the teacher
// pack's FastPoller (poller_linux.go): epoll_create1/epoll_ctl/epoll_wait
// via golang.org/x/sys/unix. Unlike FastPoller, no locking is needed here
// — a Driver and its Backend are only ever touched from one goroutine
// (§5), so the RWMutex/atomic.Uint64 version-check machinery the teacher
// needed for its concurrent Loop is simply absent.
type epollBackend struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
}

func newEpollBackend() (Backend, error) {
	b := &epollBackend{epfd: -1}
	if err := b.Open(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *epollBackend) Open() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return &BackendError{Op: "epoll_create1", Err: err}
	}
	b.epfd = fd
	return nil
}

func (b *epollBackend) Close() error {
	if b.epfd < 0 {
		return nil
	}
	err := unix.Close(b.epfd)
	b.epfd = -1
	return err
}

// Reopen implements the epoll-fd recreation fallback: the old fd (if
// still valid) is closed and a fresh one opened. The caller (driver.go)
// is responsible for reinstalling all tracked interests afterward.
func (b *epollBackend) Reopen() error {
	_ = b.Close()
	return b.Open()
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}

func (b *epollBackend) Add(fd int, events IOEvents) error {
	ev := unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return &BackendError{Op: "epoll_ctl(ADD)", Err: err}
	}
	return nil
}

func (b *epollBackend) Modify(fd int, events IOEvents) error {
	ev := unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return &BackendError{Op: "epoll_ctl(MOD)", Err: err}
	}
	return nil
}

func (b *epollBackend) Remove(fd int) error {
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return &BackendError{Op: "epoll_ctl(DEL)", Err: err}
	}
	return nil
}

func (b *epollBackend) Wait(timeout time.Duration) ([]ReadyFD, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(b.epfd, b.eventBuf[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, &BackendError{Op: "epoll_wait", Err: err}
	}
	out := make([]ReadyFD, n)
	for i := 0; i < n; i++ {
		out[i] = ReadyFD{FD: int(b.eventBuf[i].Fd), Events: epollToEvents(b.eventBuf[i].Events)}
	}
	return out, nil
}

func newDefaultBackend(noepoll bool) (Backend, error) {
	if noepoll {
		return newPollBackend(), nil
	}
	return newEpollBackend()
}
