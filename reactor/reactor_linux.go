//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based completion reactor.

package reactor

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/ackd/api"
)

const maxEvents = 512

// pending is an operation parked until its descriptor becomes ready.
type pending struct {
	op   api.Op
	done int // bytes already sent
}

// fdState tracks the parked operations of one descriptor. A descriptor has
// at most one parked reader (accept or recv) and one parked writer (send).
type fdState struct {
	fd     int
	armed  bool
	reader *pending
	writer *pending
}

// linuxReactor is an epoll-based completion reactor.
type linuxReactor struct {
	epfd     int
	wakefd   int
	depth    int
	inflight int

	sq     *queue.Queue // api.Op
	cq     *queue.Queue // api.Completion
	fds    map[int]*fdState
	timers timerQueue
	events []unix.EpollEvent

	mu     sync.Mutex // guards closed and wakefd against Wake
	closed bool
}

// New constructs the Linux reactor with room for depth in-flight operations.
func New(depth int) (Reactor, error) {
	if depth <= 0 {
		depth = api.DefaultQueueDepth
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &linuxReactor{
		epfd:   epfd,
		wakefd: wakefd,
		depth:  depth,
		sq:     queue.New(),
		cq:     queue.New(),
		fds:    make(map[int]*fdState),
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Submit queues op for the next Wait.
func (r *linuxReactor) Submit(op api.Op) error {
	if r.closed {
		return api.ErrClosed
	}
	switch op.Kind {
	case api.OpAccept, api.OpRecv, api.OpSend, api.OpWrite, api.OpTimeout:
	default:
		return fmt.Errorf("submit %v: %w", op.Kind, api.ErrInvalidArgument)
	}
	if r.inflight >= r.depth {
		return api.ErrQueueFull
	}
	r.inflight++
	r.sq.Add(op)
	return nil
}

func (r *linuxReactor) Inflight() int { return r.inflight }

// Wait starts queued submissions, then blocks in epoll until completions
// are available.
func (r *linuxReactor) Wait(out []api.Completion) (int, error) {
	return r.wait(out, true)
}

// Poll reaps without blocking.
func (r *linuxReactor) Poll(out []api.Completion) (int, error) {
	return r.wait(out, false)
}

// wait checks readiness on every pass, with a zero timeout when
// completions are already queued, so eager completions never starve
// parked descriptors.
func (r *linuxReactor) wait(out []api.Completion, block bool) (int, error) {
	if len(out) == 0 {
		return 0, api.ErrInvalidArgument
	}
	if r.closed {
		return 0, api.ErrClosed
	}
	for {
		for r.sq.Length() > 0 {
			r.start(r.sq.Remove().(api.Op))
		}
		r.timers.expire(time.Now(), r.fire)

		timeout := 0
		if block && r.cq.Length() == 0 {
			timeout = r.timers.timeoutMs(time.Now())
		}
		n, err := unix.EpollWait(r.epfd, r.events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, fmt.Errorf("epoll wait: %w", err)
		}
		woken := false
		for i := 0; i < n; i++ {
			ev := r.events[i]
			fd := int(ev.Fd)
			if fd == r.wakefd {
				r.drainWake()
				woken = true
				continue
			}
			r.onReady(fd, ev.Events)
		}
		r.timers.expire(time.Now(), r.fire)
		if r.cq.Length() > 0 {
			return r.reap(out), nil
		}
		if woken || !block {
			return 0, nil
		}
	}
}

// Release deregisters and closes fd. Parked operations complete with
// api.ErrCanceled.
func (r *linuxReactor) Release(fd int) error {
	if st, ok := r.fds[fd]; ok {
		if st.armed {
			_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		}
		if st.reader != nil {
			r.fail(st.reader.op, api.ErrCanceled)
		}
		if st.writer != nil {
			r.fail(st.writer.op, api.ErrCanceled)
		}
		delete(r.fds, fd)
	}
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close fd %d: %w", fd, err)
	}
	return nil
}

// Wake interrupts a blocked Wait.
func (r *linuxReactor) Wake() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return api.ErrClosed
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(r.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close releases epoll and eventfd. Descriptors still tracked are left to
// their owners.
func (r *linuxReactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	unix.Close(r.wakefd)
	return unix.Close(r.epfd)
}

func (r *linuxReactor) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakefd, buf[:]); err != nil {
			return
		}
	}
}

func (r *linuxReactor) reap(out []api.Completion) int {
	n := 0
	for n < len(out) && r.cq.Length() > 0 {
		out[n] = r.cq.Remove().(api.Completion)
		n++
		r.inflight--
	}
	return n
}

func (r *linuxReactor) complete(op api.Op, res int, peer string) {
	r.cq.Add(api.Completion{Kind: op.Kind, Tag: op.Tag, Fd: op.Fd, Res: res, Peer: peer})
}

func (r *linuxReactor) fail(op api.Op, err error) {
	r.cq.Add(api.Completion{Kind: op.Kind, Tag: op.Tag, Fd: op.Fd, Res: -1, Err: err})
}

func (r *linuxReactor) fire(op api.Op) {
	r.complete(op, 0, "")
}

func (r *linuxReactor) state(fd int) *fdState {
	st, ok := r.fds[fd]
	if !ok {
		st = &fdState{fd: fd}
		r.fds[fd] = st
	}
	return st
}

// start performs the first, non-blocking attempt of op.
func (r *linuxReactor) start(op api.Op) {
	switch op.Kind {
	case api.OpTimeout:
		r.timers.add(time.Now(), op)
	case api.OpWrite:
		r.writeFile(op)
	case api.OpAccept, api.OpRecv:
		st := r.state(op.Fd)
		if st.reader != nil {
			r.fail(op, unix.EBUSY)
			return
		}
		st.reader = &pending{op: op}
		if !r.tryRead(st) {
			r.park(st)
		}
	case api.OpSend:
		st := r.state(op.Fd)
		if st.writer != nil {
			r.fail(op, unix.EBUSY)
			return
		}
		st.writer = &pending{op: op}
		if !r.trySend(st) {
			r.park(st)
		}
	}
}

// park registers the descriptor for edge-triggered readiness once.
func (r *linuxReactor) park(st *fdState) {
	if st.armed {
		return
	}
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     int32(st.fd),
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, st.fd, &ev); err != nil {
		err = fmt.Errorf("epoll ctl add: %w", err)
		if st.reader != nil {
			r.fail(st.reader.op, err)
			st.reader = nil
		}
		if st.writer != nil {
			r.fail(st.writer.op, err)
			st.writer = nil
		}
		return
	}
	st.armed = true
}

func (r *linuxReactor) onReady(fd int, events uint32) {
	st, ok := r.fds[fd]
	if !ok {
		return
	}
	if st.reader != nil && events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		r.tryRead(st)
	}
	if st.writer != nil && events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		r.trySend(st)
	}
}

// tryRead attempts the parked reader. It returns false when the operation
// must wait for readiness.
func (r *linuxReactor) tryRead(st *fdState) bool {
	p := st.reader
	for {
		switch p.op.Kind {
		case api.OpAccept:
			nfd, sa, err := unix.Accept4(st.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
			switch err {
			case nil:
				st.reader = nil
				r.complete(p.op, nfd, sockaddrString(sa))
				return true
			case unix.EAGAIN:
				return false
			case unix.EINTR, unix.ECONNABORTED:
				continue
			default:
				st.reader = nil
				r.fail(p.op, err)
				return true
			}
		default:
			n, err := unix.Read(st.fd, p.op.Buf)
			switch err {
			case nil:
				st.reader = nil
				r.complete(p.op, n, "")
				return true
			case unix.EAGAIN:
				return false
			case unix.EINTR:
				continue
			default:
				st.reader = nil
				r.fail(p.op, err)
				return true
			}
		}
	}
}

// trySend pushes the parked send until the whole buffer is written.
func (r *linuxReactor) trySend(st *fdState) bool {
	p := st.writer
	for p.done < len(p.op.Buf) {
		n, err := unix.SendmsgN(st.fd, p.op.Buf[p.done:], nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
		switch err {
		case nil:
			p.done += n
		case unix.EAGAIN:
			return false
		case unix.EINTR:
		default:
			st.writer = nil
			r.fail(p.op, err)
			return true
		}
	}
	st.writer = nil
	r.complete(p.op, p.done, "")
	return true
}

// writeFile appends op.Buf in full. Regular files are always ready, so the
// write completes within the submitting Wait.
func (r *linuxReactor) writeFile(op api.Op) {
	done := 0
	for done < len(op.Buf) {
		n, err := unix.Write(op.Fd, op.Buf[done:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			r.fail(op, err)
			return
		}
		if n == 0 {
			r.fail(op, unix.EIO)
			return
		}
		done += n
	}
	r.complete(op, done, "")
}

func sockaddrString(sa unix.Sockaddr) string {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	default:
		return "?"
	}
}
