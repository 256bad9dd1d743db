// Package tamer provides a cooperative, single-threaded asynchronous
// runtime: one-shot events, rendezvous sets that a closure waits on, and a
// pluggable driver that demultiplexes file descriptors, timers, signals,
// and immediate work onto ready closures.
//
// # Architecture
//
// Three abstractions interlock:
//
//   - [Event0], [Event1], [Event2], [Event3], [Event4] are typed, one-shot
//     completion handles. Triggering one writes its arguments into
//     caller-owned slots and wakes whatever rendezvous it was registered
//     with; dropping the last handle without triggering discards it.
//   - [GatherRendezvous], [ExplicitRendezvous], [ExplicitRendezvous2],
//     [FunctionalRendezvous], and [DistributeRendezvous] collect events.
//     A closure waits on a gather or explicit rendezvous via [Block]; each
//     such rendezvous holds at most one blocked closure at a time, and
//     unblocks it once a wait condition (empty waiting list, or at least
//     one ready name) is satisfied.
//   - [Closure] is a resumable task: [Driver.Run] repeatedly pops from an
//     unblocked FIFO and calls [Closure.Activate] until the closure
//     terminates.
//
// [Driver] is the event loop itself. Each tick drains preblock callbacks,
// reconciles file-descriptor interest with the platform backend (epoll on
// Linux, poll elsewhere), blocks for the next deadline, then dispatches
// signals, fd readiness, expired timers, and asap callbacks in that order,
// running any closures unblocked along the way.
//
// # What this package does not do
//
// There is no source-to-source compiler here: closures are driven by a
// caller-supplied [ActivateFunc] rather than by a `tame`-style state-machine
// generator. There are no HTTP/WebSocket/DNS helpers, no buffered I/O, and
// no helper-process protocol — those are external collaborators that would
// consume this runtime's event/rendezvous/driver API, not part of it.
//
// # Usage
//
//	d, err := tamer.NewDriver()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	rd := tamer.NewGatherRendezvous()
//	var n int
//	h := tamer.MakeEvent1[int](rd, &n)
//	d.AtTime(time.Now().Add(100*time.Millisecond), h.Unblocker(), true)
//
//	var c *tamer.Closure
//	c = tamer.NewClosure(d, func(blockID int) (int, bool) {
//	    if blockID == 0 {
//	        tamer.Block(d, c, rd, 1)
//	        return 1, false
//	    }
//	    return -1, true
//	})
//	c.Activate(0)
//
//	if err := d.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package tamer
