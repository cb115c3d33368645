// Package runner drives a VM on its own goroutine and hands display
// snapshots to a presenter at a fixed cadence.
package runner

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"govm/pkg/vm"
)

// DefaultFrameInterval paces display snapshots at roughly 60 per second.
const DefaultFrameInterval = 16 * time.Millisecond

var ErrAlreadyStarted = errors.New("runner: already started")

type Options struct {
	// FrameInterval is the time between display snapshots.
	// Zero means DefaultFrameInterval.
	FrameInterval time.Duration
	Logger        *log.Logger
}

// Runner owns the VM while Run is executing; nothing else may touch the
// machine until Run returns. Frames are copies, so a receiver may keep them.
type Runner struct {
	vm      *vm.VM
	opts    Options
	frames  chan []uint32
	started atomic.Bool
	sent    atomic.Uint64
}

func New(m *vm.VM, opts Options) *Runner {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Runner{
		vm:     m,
		opts:   opts,
		frames: make(chan []uint32, 1),
	}
}

// Frames delivers display snapshots. Only the most recent unread snapshot is
// kept. The channel is closed when Run returns.
func (r *Runner) Frames() <-chan []uint32 {
	return r.frames
}

// FramesSent reports how many snapshots have been offered so far.
func (r *Runner) FramesSent() uint64 {
	return r.sent.Load()
}

// Run steps the machine until it halts, faults, or ctx is cancelled.
// Cancellation is observed between instructions; the machine is then
// stopped and ctx.Err() is returned. A fault is returned as *vm.Fault.
// Every exit publishes a final snapshot and closes Frames.
func (r *Runner) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer r.finish()

	ticker := time.NewTicker(r.opts.FrameInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			r.vm.Stop()
			r.opts.Logger.Printf("stopped after %d steps: %v", r.vm.Steps, ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			r.publish()
		default:
		}

		if err := r.vm.Step(); err != nil {
			r.opts.Logger.Printf("fault after %d steps: %v", r.vm.Steps, err)
			return err
		}
		if r.vm.Paused {
			r.opts.Logger.Printf("halted after %d steps in %s", r.vm.Steps, time.Since(start).Round(time.Millisecond))
			return nil
		}
	}
}

func (r *Runner) finish() {
	r.publish()
	close(r.frames)
}

// publish offers a copy of the framebuffer, replacing any snapshot the
// presenter has not picked up yet.
func (r *Runner) publish() {
	frame := make([]uint32, len(r.vm.Framebuffer))
	copy(frame, r.vm.Framebuffer)
	r.sent.Add(1)

	select {
	case r.frames <- frame:
		return
	default:
	}
	// Drop the stale frame. This goroutine is the only sender, so the
	// second send cannot block.
	select {
	case <-r.frames:
	default:
	}
	r.frames <- frame
}
