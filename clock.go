// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"container/heap"
	"math/bits"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
	"code.hybscloud.com/lfq"
)

// spinWindow is how close the next deadline must be before the timer
// goroutine backs off instead of parking on a timer.
const spinWindow = time.Millisecond

// timer is a pending wake-up. index is its position in the heap, or -1
// once it has fired or been cancelled. Only the timer goroutine reads or
// writes index.
type timer struct {
	deadline time.Time
	fire     func()
	index    int
}

// timerRequest is one message on the request queue: arm timer, or cancel
// it when cancel is set.
type timerRequest struct {
	timer  *timer
	cancel bool
}

// clock is the timer service behind Sleep and Timeout.
//
// Requests travel over a bounded lock-free SPSC queue. The producer side is
// the scheduler drain, which is the only place fibers run, so there is
// exactly one producer at any instant. The consumer is a single timer
// goroutine that owns the deadline heap. A firing timer only submits its
// resumption to the scheduler; no fiber code runs on the timer goroutine.
//
// With no pending timers the goroutine parks on wake until the next
// request or close.
type clock struct {
	requests lfq.SPSC[timerRequest]
	wake     chan struct{}
	started  atomix.Uint32
	closed   atomix.Uint32
	timers   timerHeap
}

func newClock(capacity int) *clock {
	c := &clock{wake: make(chan struct{}, 1)}
	c.requests.Init(ceilPow2(capacity))
	return c
}

func ceilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// schedule arms a timer that calls fire after d.
func (c *clock) schedule(d time.Duration, fire func()) *timer {
	t := &timer{deadline: time.Now().Add(d), fire: fire, index: -1}
	c.send(timerRequest{timer: t})
	return t
}

// cancel disarms t. Cancelling a fired timer is a no-op.
func (c *clock) cancel(t *timer) {
	c.send(timerRequest{timer: t, cancel: true})
}

// send enqueues r, backing off while the queue is full.
func (c *clock) send(r timerRequest) {
	if c.started.CompareAndSwap(0, 1) {
		go c.loop()
	}
	var bo iox.Backoff
	for c.requests.Enqueue(&r) != nil {
		if c.closed.Load() != 0 {
			return
		}
		bo.Wait()
	}
	c.signal()
}

// signal wakes a parked timer goroutine.
func (c *clock) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// close stops the timer goroutine. Pending timers never fire.
func (c *clock) close() {
	c.closed.Store(1)
	c.signal()
}

// loop is the timer goroutine.
func (c *clock) loop() {
	var bo iox.Backoff
	idle := time.NewTimer(time.Hour)
	idle.Stop()
	for c.closed.Load() == 0 {
		worked := c.receive()
		now := time.Now()
		for len(c.timers) > 0 && !c.timers[0].deadline.After(now) {
			t := heap.Pop(&c.timers).(*timer)
			t.fire()
			worked = true
		}
		if worked {
			bo.Reset()
			continue
		}
		if len(c.timers) == 0 {
			<-c.wake
			continue
		}
		if until := time.Until(c.timers[0].deadline); until > spinWindow {
			idle.Reset(until - spinWindow)
			select {
			case <-c.wake:
			case <-idle.C:
			}
			idle.Stop()
			continue
		}
		bo.Wait()
	}
}

// receive applies every queued request and reports whether there were any.
func (c *clock) receive() bool {
	got := false
	for {
		r, err := c.requests.Dequeue()
		if err != nil {
			return got
		}
		got = true
		switch {
		case !r.cancel:
			heap.Push(&c.timers, r.timer)
		case r.timer.index >= 0:
			heap.Remove(&c.timers, r.timer.index)
		}
	}
}

// timerHeap is a min-heap of timers ordered by deadline.
type timerHeap []*timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old) - 1
	t := old[n]
	old[n] = nil
	t.index = -1
	*h = old[:n]
	return t
}

// Sleep suspends the fiber for d. A non-positive d yields instead.
// Interrupting a sleeping fiber cancels its timer.
func Sleep(d time.Duration) Effect[struct{}] {
	if d <= 0 {
		return Yield()
	}
	return Effect[struct{}]{op: &runtimeOp{k: func(rt *Runtime) instruction {
		return &asyncOp{register: func(resume func(instruction)) kont.Either[instruction, instruction] {
			t := rt.clock.schedule(d, func() { resume(unitOp) })
			return kont.Left[instruction, instruction](instruction(&syncOp{thunk: func() kont.Erased {
				rt.clock.cancel(t)
				return nil
			}}))
		}}
	}}}
}
