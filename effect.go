// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/kont"
)

// Effect is an immutable description of a computation that produces a
// value of type A, may fail with a Cause, and may suspend. Nothing runs
// until an Effect is submitted to a [Runtime]; evaluating an Effect never
// mutates it, so Effects can be shared and run any number of times.
//
// The zero Effect is valid to construct and dies with [ErrNilEffect]
// when interpreted.
type Effect[A any] struct {
	op instruction
}

// instruction returns the erased instruction, substituting the nil-effect
// defect for the zero Effect.
func (e Effect[A]) instruction() instruction {
	if e.op == nil {
		return nilEffectOp
	}
	return e.op
}

// Succeed returns an effect that completes with a.
func Succeed[A any](a A) Effect[A] {
	return Effect[A]{op: &succeedOp{value: a}}
}

// Unit returns an effect that completes with struct{}{}.
func Unit() Effect[struct{}] {
	return Effect[struct{}]{op: unitOp}
}

// Sync returns an effect that completes with the result of f, run when
// the effect is interpreted. A panic in f becomes a defect.
func Sync[A any](f func() A) Effect[A] {
	return Effect[A]{op: &syncOp{thunk: func() kont.Erased { return f() }}}
}

// Defer returns an effect that builds the effect to run from f, at
// interpretation time.
func Defer[A any](f func() Effect[A]) Effect[A] {
	return Effect[A]{op: &chainOp{
		eff: unitOp,
		k:   func(kont.Erased) instruction { return f().instruction() },
	}}
}

// Attempt returns an effect that runs f and fails with its error, if any.
func Attempt[A any](f func() (A, error)) Effect[A] {
	return Defer(func() Effect[A] {
		a, err := f()
		if err != nil {
			return Fail[A](err)
		}
		return Succeed(a)
	})
}

// Fail returns an effect that fails with the expected failure err.
func Fail[A any](err error) Effect[A] {
	return FailCause[A](Failure(err))
}

// FailCause returns an effect that fails with cause.
func FailCause[A any](cause *Cause) Effect[A] {
	return Effect[A]{op: &failOp{cause: func() *Cause { return cause }}}
}

// Die returns an effect that fails with the defect v.
func Die[A any](v any) Effect[A] {
	return FailCause[A](Defect(v))
}

// InterruptAs returns an effect that fails as if interrupted by id.
func InterruptAs[A any](id ID) Effect[A] {
	return FailCause[A](Interruption(id))
}

// Interrupt returns an effect that interrupts the running fiber.
func Interrupt[A any]() Effect[A] {
	return FlatMap(FiberID(), InterruptAs[A])
}

// FlatMap runs e, then the effect f builds from its value.
func FlatMap[A, B any](e Effect[A], f func(A) Effect[B]) Effect[B] {
	return Effect[B]{op: &chainOp{
		eff: e.instruction(),
		k:   func(v kont.Erased) instruction { return f(cast[A](v)).instruction() },
	}}
}

// Map applies f to the value of e.
func Map[A, B any](e Effect[A], f func(A) B) Effect[B] {
	return Effect[B]{op: &chainOp{
		eff: e.instruction(),
		k:   func(v kont.Erased) instruction { return &succeedOp{value: f(cast[A](v))} },
	}}
}

// Match runs e and continues with onFailure or onSuccess. Match observes
// every cause, including defects and interruptions.
func Match[A, B any](e Effect[A], onFailure func(*Cause) Effect[B], onSuccess func(A) Effect[B]) Effect[B] {
	return Effect[B]{op: &foldOp{
		eff:       e.instruction(),
		onFailure: func(c *Cause) instruction { return onFailure(c).instruction() },
		onSuccess: func(v kont.Erased) instruction { return onSuccess(cast[A](v)).instruction() },
	}}
}

// Async suspends the fiber until register's resume callback is invoked.
//
// register runs on the interpreter and must not block. It returns either
// Left(canceller), in which case the fiber suspends and canceller runs if
// the fiber is interrupted before resumption, or Right(result) when the
// result is already available and no suspension is needed.
//
// resume may be called from any goroutine. Only the first call has an
// effect; later calls, and calls after interruption, are ignored.
func Async[A any](register func(resume func(Effect[A])) kont.Either[Effect[struct{}], Effect[A]], blockingOn ID) Effect[A] {
	return Effect[A]{op: &asyncOp{
		register: func(resume func(instruction)) kont.Either[instruction, instruction] {
			r := register(func(e Effect[A]) { resume(e.instruction()) })
			if canceller, ok := r.GetLeft(); ok {
				return kont.Left[instruction, instruction](canceller.instruction())
			}
			now, _ := r.GetRight()
			return kont.Right[instruction](now.instruction())
		},
		blockingOn: blockingOn,
	}}
}

// AsyncCallback is Async with no canceller and no blocking fiber.
func AsyncCallback[A any](register func(resume func(Effect[A]))) Effect[A] {
	return Async(func(resume func(Effect[A])) kont.Either[Effect[struct{}], Effect[A]] {
		register(resume)
		return kont.Left[Effect[struct{}], Effect[A]](Unit())
	}, None)
}

// Never returns an effect that suspends forever. It can only be
// interrupted.
func Never[A any]() Effect[A] {
	return AsyncCallback(func(func(Effect[A])) {})
}

// Yield hands control back to the scheduler, letting other fibers run.
func Yield() Effect[struct{}] {
	return Effect[struct{}]{op: yieldUnitOp}
}

// Uninterruptible runs e in a region where interruption requests are
// recorded but not acted on until the region ends.
func Uninterruptible[A any](e Effect[A]) Effect[A] {
	return Effect[A]{op: &setInterruptOp{eff: e.instruction(), interruptible: false}}
}

// Interruptible runs e in an interruptible region.
func Interruptible[A any](e Effect[A]) Effect[A] {
	return Effect[A]{op: &setInterruptOp{eff: e.instruction(), interruptible: true}}
}

// InterruptStatus reports whether the running fiber is interruptible.
func InterruptStatus() Effect[bool] {
	return Effect[bool]{op: &getInterruptOp{k: func(b bool) instruction { return &succeedOp{value: b} }}}
}

// Restore carries the interruptibility captured by UninterruptibleMask.
type Restore struct {
	interruptible bool
}

// Restored runs e with the interruptibility captured in r.
func Restored[A any](r Restore, e Effect[A]) Effect[A] {
	return Effect[A]{op: &setInterruptOp{eff: e.instruction(), interruptible: r.interruptible}}
}

// UninterruptibleMask runs f's effect uninterruptibly. f receives the
// interruptibility in force before the mask, to be reinstated on selected
// parts with Restored.
func UninterruptibleMask[A any](f func(Restore) Effect[A]) Effect[A] {
	return Effect[A]{op: &getInterruptOp{k: func(b bool) instruction {
		return &setInterruptOp{eff: f(Restore{interruptible: b}).instruction(), interruptible: false}
	}}}
}

// Ensuring runs finalizer after e, whether e succeeds, fails or is
// interrupted. The finalizer runs uninterruptibly. If it fails, its cause
// is appended to e's outcome with Then.
func Ensuring[A, F any](e Effect[A], finalizer Effect[F]) Effect[A] {
	return Effect[A]{op: &ensuringOp{eff: e.instruction(), finalizer: finalizer.instruction()}}
}

// Environment returns the environment provided to the running fiber,
// asserted to R. The zero R is returned when no environment is set.
func Environment[R any]() Effect[R] {
	return Effect[R]{op: &accessOp{k: func(env kont.Erased) instruction {
		if r, ok := env.(R); ok {
			return &succeedOp{value: r}
		}
		var zero R
		return &succeedOp{value: zero}
	}}}
}

// Access runs the effect f builds from the current environment.
func Access[R, A any](f func(R) Effect[A]) Effect[A] {
	return FlatMap(Environment[R](), f)
}

// Provide runs e with env as its environment.
func Provide[A any](env any, e Effect[A]) Effect[A] {
	return Effect[A]{op: &provideOp{env: env, eff: e.instruction()}}
}

// Describe returns a snapshot of the running fiber.
func Describe() Effect[Descriptor] {
	return Effect[Descriptor]{op: &descriptorOp{k: func(d Descriptor) instruction { return &succeedOp{value: d} }}}
}

// FiberID returns the ID of the running fiber.
func FiberID() Effect[ID] {
	return Effect[ID]{op: &descriptorOp{k: func(d Descriptor) instruction { return &succeedOp{value: d.ID} }}}
}

// Supervised runs e with sup notified of every fiber it starts, in
// addition to any supervisor already active.
func Supervised[A any](sup Supervisor, e Effect[A]) Effect[A] {
	return Effect[A]{op: &superviseOp{sup: sup, eff: e.instruction()}}
}

// ForkScope returns the scope that Fork will register new children in.
func ForkScope() Effect[Scope] {
	return Effect[Scope]{op: &getForkScopeOp{k: func(s Scope) instruction { return &succeedOp{value: s} }}}
}

// OverrideForkScope runs e with children forked into scope instead of the
// running fiber's own scope.
func OverrideForkScope[A any](scope Scope, e Effect[A]) Effect[A] {
	return Effect[A]{op: &overrideForkScopeOp{scope: scope, eff: e.instruction()}}
}

// TraceOf returns the execution trace of the running fiber. The trace is
// empty unless the runtime was configured with tracing enabled.
func TraceOf() Effect[*Trace] {
	return Effect[*Trace]{op: &traceOp{k: func(t *Trace) instruction { return &succeedOp{value: t} }}}
}
