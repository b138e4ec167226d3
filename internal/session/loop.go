package session

import (
	"context"
	"errors"
	"time"

	"github.com/latebit/castnav/internal/view"
)

// ErrLoopStopped is returned by Do once the loop has exited.
var ErrLoopStopped = errors.New("session loop stopped")

type command struct {
	fn   func(*Session) error
	done chan error
}

// Loop owns a Session and drives it from a single goroutine: commands sent
// through Do and physics ticks never run concurrently. The ticker only runs
// while the layout is moving and is replaced whenever the run sequence
// changes, so a stale run never keeps ticking.
type Loop struct {
	s        *Session
	interval time.Duration
	onFrame  func(view.Frame)
	cmds     chan command
	stopped  chan struct{}
}

// NewLoop returns a loop ticking s every interval. onFrame, when not nil,
// receives a frame after every tick and every command; it runs on the loop
// goroutine and must not call back into the loop.
func NewLoop(s *Session, interval time.Duration, onFrame func(view.Frame)) *Loop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Loop{
		s:        s,
		interval: interval,
		onFrame:  onFrame,
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
	}
}

// Run drives the session until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)

	var ticker *time.Ticker
	var tick <-chan time.Time
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stop()

	run := l.s.Run()
	start := func() {
		stop()
		run = l.s.Run()
		if !l.s.Settled() {
			ticker = time.NewTicker(l.interval)
			tick = ticker.C
		}
	}
	start()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c := <-l.cmds:
			c.done <- c.fn(l.s)
			if l.s.Run() != run || (tick == nil && !l.s.Settled()) {
				start()
			}
			l.frame()

		case <-tick:
			if l.s.Step() {
				stop()
			}
			l.frame()
			if l.s.Run() != run {
				start()
			}
		}
	}
}

func (l *Loop) frame() {
	if l.onFrame != nil {
		l.onFrame(l.s.Frame())
	}
}

// Do runs fn on the loop goroutine and returns its error.
func (l *Loop) Do(ctx context.Context, fn func(*Session) error) error {
	c := command{fn: fn, done: make(chan error, 1)}
	select {
	case l.cmds <- c:
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped is closed when Run returns.
func (l *Loop) Stopped() <-chan struct{} { return l.stopped }
