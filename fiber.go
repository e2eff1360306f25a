// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"context"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Fiber is a handle to a running fiber whose effect produces an A.
//
// The effect-returning methods (Await, Join, Interrupt, Poll, ...) are
// meant to be composed into other effects. Wait, Result and
// UnsafeInterrupt are for host code outside the runtime.
type Fiber[A any] struct {
	ctx *fiberContext
}

// Descriptor is a snapshot of a running fiber, as seen from inside it.
type Descriptor struct {
	ID            ID
	Parent        ID
	Status        Status
	Interruptors  []ID
	Interruptible bool
	Scope         Scope
	Children      []ID
}

// ID returns the fiber's identity.
func (f *Fiber[A]) ID() ID { return f.ctx.id }

// Await suspends until the fiber is done and completes with its exit.
// Any number of fibers may await the same fiber.
func (f *Fiber[A]) Await() Effect[Exit[A]] {
	return Effect[Exit[A]]{op: &chainOp{
		eff: f.ctx.await(),
		k: func(v kont.Erased) instruction {
			return &succeedOp{value: narrow[A](v.(Exit[kont.Erased]))}
		},
	}}
}

// Join awaits the fiber and continues as it did: with its value, after
// inheriting its fiber-local values, or with its failure.
func (f *Fiber[A]) Join() Effect[A] {
	return FlatMap(f.Await(), func(ex Exit[A]) Effect[A] {
		if ex.ok {
			return Then(f.InheritRefs(), Succeed(ex.value))
		}
		return FailCause[A](ex.cause)
	})
}

// Interrupt interrupts the fiber on behalf of the caller and awaits it.
func (f *Fiber[A]) Interrupt() Effect[Exit[A]] {
	return FlatMap(FiberID(), f.InterruptAs)
}

// InterruptAs interrupts the fiber on behalf of id and awaits it. The exit
// is not necessarily an interruption: the fiber may have finished first.
func (f *Fiber[A]) InterruptAs(id ID) Effect[Exit[A]] {
	return Effect[Exit[A]]{op: &chainOp{
		eff: f.ctx.interruptAs(id),
		k: func(v kont.Erased) instruction {
			return &succeedOp{value: narrow[A](v.(Exit[kont.Erased]))}
		},
	}}
}

// Poll completes with Right(exit) if the fiber is done and Left otherwise,
// without suspending.
func (f *Fiber[A]) Poll() Effect[kont.Either[struct{}, Exit[A]]] {
	return Sync(func() kont.Either[struct{}, Exit[A]] {
		if ex := f.ctx.state.exit; ex != nil {
			return kont.Right[struct{}](narrow[A](*ex))
		}
		return kont.Left[struct{}, Exit[A]](struct{}{})
	})
}

// InheritRefs joins the fiber's local values into the running fiber.
func (f *Fiber[A]) InheritRefs() Effect[struct{}] {
	return Effect[struct{}]{op: &inheritRefsOp{child: f.ctx}}
}

// Done returns a channel that is closed when the fiber completes.
func (f *Fiber[A]) Done() <-chan struct{} { return f.ctx.finished }

// Wait blocks the calling goroutine until the fiber completes or ctx is
// done.
func (f *Fiber[A]) Wait(ctx context.Context) (Exit[A], error) {
	select {
	case <-f.ctx.finished:
		return narrow[A](*f.ctx.state.exit), nil
	case <-ctx.Done():
		return Exit[A]{}, ctx.Err()
	}
}

// Result returns the fiber's exit, or iox.ErrWouldBlock while it is
// still running.
func (f *Fiber[A]) Result() (Exit[A], error) {
	select {
	case <-f.ctx.finished:
		return narrow[A](*f.ctx.state.exit), nil
	default:
		return Exit[A]{}, iox.ErrWouldBlock
	}
}

// UnsafeInterrupt requests interruption of the fiber from host code. The
// request is recorded with the None interruptor. It does not wait.
func (f *Fiber[A]) UnsafeInterrupt() {
	c := f.ctx
	c.rt.sched.Submit(func() { c.kill(None) })
}

func (f *Fiber[A]) String() string { return "Fiber(" + f.ctx.id.String() + ")" }

func forkEffect[A any](e Effect[A], scope Scope, report func(*Cause)) Effect[*Fiber[A]] {
	return Effect[*Fiber[A]]{op: &chainOp{
		eff: &forkOp{eff: e.instruction(), scope: scope, report: report},
		k: func(v kont.Erased) instruction {
			return &succeedOp{value: &Fiber[A]{ctx: v.(*fiberContext)}}
		},
	}}
}

// Fork starts e on a child fiber in the current fork scope and completes
// with its handle immediately. The child starts with a copy of the
// parent's fiber-local values and its current interruptibility.
func Fork[A any](e Effect[A]) Effect[*Fiber[A]] {
	return forkEffect(e, nil, nil)
}

// ForkDaemon starts e in the global scope. The child is not interrupted
// when the parent completes.
func ForkDaemon[A any](e Effect[A]) Effect[*Fiber[A]] {
	return forkEffect(e, GlobalScope(), nil)
}

// ForkIn starts e as a child of scope. If scope's fiber has already
// completed, the child is interrupted before it runs.
func ForkIn[A any](scope Scope, e Effect[A]) Effect[*Fiber[A]] {
	return forkEffect(e, scope, nil)
}

// ForkWithReporter is Fork with report called, instead of the runtime's
// failure reporter, if the child fails while nothing observes it.
func ForkWithReporter[A any](e Effect[A], report func(*Cause)) Effect[*Fiber[A]] {
	return forkEffect(e, nil, report)
}

// ForEachPar runs f on each element of as on its own fiber and collects
// the values in order. The first failure interrupts the remaining fibers.
func ForEachPar[A, B any](as []A, f func(A) Effect[B]) Effect[[]B] {
	quiet := func(*Cause) {}
	return FlatMap(ForEach(as, func(a A) Effect[*Fiber[B]] {
		return ForkWithReporter(Defer(func() Effect[B] { return f(a) }), quiet)
	}), func(fs []*Fiber[B]) Effect[[]B] {
		return CatchAllCause(ForEach(fs, (*Fiber[B]).Join), func(c *Cause) Effect[[]B] {
			return Then(ForEach(fs, (*Fiber[B]).Interrupt), FailCause[[]B](c))
		})
	})
}
