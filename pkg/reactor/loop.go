package reactor

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cuemby/emberdb/pkg/log"
)

// TickInterval is the maintenance task's cadence (spec.md §4.F: "runs
// every ~1 s via the event loop's timer facility").
const TickInterval = time.Second

const maxEvents = 256

// Callbacks are invoked by Loop.Run for a registered fd. Either may be
// nil.
type Callbacks struct {
	OnReadable func(fd int)
	OnWritable func(fd int)
}

// Loop is a single-threaded epoll reactor. It is not safe to call its
// methods from more than one goroutine concurrently, by design: every
// call must happen either before Run starts, or from within a callback
// Run itself invoked.
type Loop struct {
	epfd int
	cbs  map[int]Callbacks

	onTick func()

	mu      sync.Mutex // guards closing only, so Close can run from a signal goroutine
	closing bool
}

// New creates an epoll instance.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Loop{
		epfd: epfd,
		cbs:  make(map[int]Callbacks),
	}, nil
}

// OnTick sets the callback invoked roughly once per TickInterval, used
// to drive pkg/maintenance.
func (l *Loop) OnTick(fn func()) {
	l.onTick = fn
}

func (l *Loop) eventMask(cb Callbacks) uint32 {
	var mask uint32
	if cb.OnReadable != nil {
		mask |= unix.EPOLLIN
	}
	if cb.OnWritable != nil {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Register begins watching fd for the interests implied by cb (a nil
// callback field means "not interested in that direction").
func (l *Loop) Register(fd int, cb Callbacks) error {
	event := unix.EpollEvent{Events: l.eventMask(cb), Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return fmt.Errorf("reactor: epoll_ctl(ADD, %d): %w", fd, err)
	}
	l.cbs[fd] = cb
	return nil
}

// Modify updates the interest set for an already-registered fd — used
// when a session's reply queue drains to empty (drop EPOLLOUT) or gains
// its first queued reply (add EPOLLOUT).
func (l *Loop) Modify(fd int, cb Callbacks) error {
	event := unix.EpollEvent{Events: l.eventMask(cb), Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &event); err != nil {
		return fmt.Errorf("reactor: epoll_ctl(MOD, %d): %w", fd, err)
	}
	l.cbs[fd] = cb
	return nil
}

// Unregister stops watching fd. Callers must close fd themselves.
func (l *Loop) Unregister(fd int) error {
	delete(l.cbs, fd)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("reactor: epoll_ctl(DEL, %d): %w", fd, err)
	}
	return nil
}

// Run blocks, dispatching readable/writable callbacks and the periodic
// tick, until Close is called.
func (l *Loop) Run() error {
	events := make([]unix.EpollEvent, maxEvents)
	nextTick := time.Now().Add(TickInterval)
	loopLog := log.WithComponent("reactor")

	for {
		l.mu.Lock()
		closing := l.closing
		l.mu.Unlock()
		if closing {
			return nil
		}

		timeoutMS := int(time.Until(nextTick) / time.Millisecond)
		if timeoutMS < 0 {
			timeoutMS = 0
		}

		n, err := unix.EpollWait(l.epfd, events, timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			cb, ok := l.cbs[fd]
			if !ok {
				continue
			}
			if events[i].Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				if cb.OnReadable != nil {
					cb.OnReadable(fd)
				}
				continue
			}
			if events[i].Events&unix.EPOLLIN != 0 && cb.OnReadable != nil {
				cb.OnReadable(fd)
			}
			if _, stillRegistered := l.cbs[fd]; !stillRegistered {
				continue
			}
			if events[i].Events&unix.EPOLLOUT != 0 && cb.OnWritable != nil {
				cb.OnWritable(fd)
			}
		}

		if !time.Now().Before(nextTick) {
			if l.onTick != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							loopLog.Error().Interface("panic", r).Msg("maintenance tick panicked")
						}
					}()
					l.onTick()
				}()
			}
			nextTick = time.Now().Add(TickInterval)
		}
	}
}

// Close stops Run after its current iteration and releases the epoll
// fd. Safe to call from another goroutine, e.g. a signal handler.
func (l *Loop) Close() error {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	return unix.Close(l.epfd)
}
