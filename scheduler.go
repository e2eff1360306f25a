// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"runtime/debug"
	"sync"
)

// Scheduler is the cooperative FIFO executor every fiber of a Runtime
// runs on. Submitted thunks run one at a time, in submission order, on a
// single drain goroutine; a thunk submitted while another is running is
// appended to the queue and picked up by the same drain, never run
// re-entrantly. When the queue empties the drain goroutine exits and the
// next Submit starts a new one.
//
// Submit is safe from any goroutine. The queue is unbounded and has many
// producers (the drain itself, timers, async callbacks, host code), so it
// is a mutex-guarded ring rather than a lock-free SPSC queue.
type Scheduler struct {
	mu      sync.Mutex
	queue   []func()
	head    int
	running bool

	// onPanic receives values recovered from thunks that panicked outside
	// of a fiber's own recovery, e.g. in a supervisor or observer.
	onPanic func(v any, stack []byte)
}

// NewScheduler returns an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Submit appends thunk to the run queue, starting a drain if none is in
// progress.
func (s *Scheduler) Submit(thunk func()) {
	s.mu.Lock()
	s.queue = append(s.queue, thunk)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	go s.drain()
}

// Pending returns the number of queued thunks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) - s.head
}

// drain pops and runs thunks until the queue is empty, then clears the
// running flag.
func (s *Scheduler) drain() {
	for {
		s.mu.Lock()
		if s.head == len(s.queue) {
			s.queue = s.queue[:0]
			s.head = 0
			s.running = false
			s.mu.Unlock()
			return
		}
		thunk := s.queue[s.head]
		s.queue[s.head] = nil
		s.head++
		// Compact once the consumed prefix dominates the backing array.
		if s.head > 64 && s.head*2 > len(s.queue) {
			n := copy(s.queue, s.queue[s.head:])
			clear(s.queue[n:])
			s.queue = s.queue[:n]
			s.head = 0
		}
		s.mu.Unlock()
		s.run(thunk)
	}
}

func (s *Scheduler) run(thunk func()) {
	defer func() {
		if r := recover(); r != nil {
			if s.onPanic == nil {
				panic(r)
			}
			s.onPanic(r, debug.Stack())
		}
	}()
	thunk()
}
