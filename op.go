// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/kont"
)

// instruction is the erased instruction set interpreted by fiberContext.
// Dispatch uses type switches, not tags; instruction is a pure marker.
// Instructions are immutable and may be shared between fibers.
type instruction interface {
	instr()
}

// succeedOp completes with an already computed value.
type succeedOp struct {
	value kont.Erased
}

// syncOp completes with the result of a synchronous thunk.
type syncOp struct {
	thunk func() kont.Erased
}

// failOp fails with a lazily built cause.
type failOp struct {
	cause func() *Cause
}

// chainOp runs eff, then feeds its value to k.
type chainOp struct {
	eff instruction
	k   func(kont.Erased) instruction
}

// asyncOp suspends the fiber until register's resume callback fires.
// register returns Left(canceller) to suspend, or Right(result) when the
// value is already available.
type asyncOp struct {
	register   func(resume func(instruction)) kont.Either[instruction, instruction]
	blockingOn ID
}

// forkOp starts eff on a child fiber. A nil scope selects the ambient
// fork scope.
type forkOp struct {
	eff    instruction
	scope  Scope
	report func(*Cause)
}

// raceOp forks left and right and continues with the continuation of
// whichever completes first.
type raceOp struct {
	left      instruction
	right     instruction
	leftWins  func(Exit[kont.Erased], *fiberContext) instruction
	rightWins func(Exit[kont.Erased], *fiberContext) instruction
	scope     Scope
}

// foldOp runs eff and routes its outcome to onFailure or onSuccess.
type foldOp struct {
	eff       instruction
	onFailure func(*Cause) instruction
	onSuccess func(kont.Erased) instruction
}

// setInterruptOp runs eff with the given interruptibility.
type setInterruptOp struct {
	eff           instruction
	interruptible bool
}

// getInterruptOp passes the current interruptibility to k.
type getInterruptOp struct {
	k func(bool) instruction
}

// accessOp passes the current environment to k.
type accessOp struct {
	k func(kont.Erased) instruction
}

// provideOp runs eff with env as its environment.
type provideOp struct {
	env kont.Erased
	eff instruction
}

// refModifyOp atomically replaces the fiber-local value of ref with the
// second result of f and completes with the first.
type refModifyOp struct {
	ref *refCell
	f   func(kont.Erased) (kont.Erased, kont.Erased)
}

// refLocallyOp runs eff with ref temporarily bound to value.
type refLocallyOp struct {
	ref   *refCell
	value kont.Erased
	eff   instruction
}

// refDeleteOp removes ref from the fiber, restoring its initial value.
type refDeleteOp struct {
	ref *refCell
}

// refGetAllOp passes a snapshot of every fiber-local value to k.
type refGetAllOp struct {
	k func(map[*refCell]kont.Erased) instruction
}

// descriptorOp passes a snapshot of the running fiber to k.
type descriptorOp struct {
	k func(Descriptor) instruction
}

// yieldOp hands control back to the scheduler.
type yieldOp struct{}

// superviseOp runs eff with sup added to the active supervisor.
type superviseOp struct {
	sup Supervisor
	eff instruction
}

// getForkScopeOp passes the scope new children will be forked into to k.
type getForkScopeOp struct {
	k func(Scope) instruction
}

// overrideForkScopeOp runs eff with children forked into scope.
// A nil scope clears the override.
type overrideForkScopeOp struct {
	scope Scope
	eff   instruction
}

// ensuringOp runs finalizer after eff, whatever its outcome.
type ensuringOp struct {
	eff       instruction
	finalizer instruction
}

// inheritRefsOp joins the fiber-local values of child into the running
// fiber.
type inheritRefsOp struct {
	child *fiberContext
}

// runtimeOp passes the fiber's runtime to k.
type runtimeOp struct {
	k func(*Runtime) instruction
}

// traceOp passes the fiber's execution trace to k.
type traceOp struct {
	k func(*Trace) instruction
}

func (*succeedOp) instr()           {}
func (*syncOp) instr()              {}
func (*failOp) instr()              {}
func (*chainOp) instr()             {}
func (*asyncOp) instr()             {}
func (*forkOp) instr()              {}
func (*raceOp) instr()              {}
func (*foldOp) instr()              {}
func (*setInterruptOp) instr()      {}
func (*getInterruptOp) instr()      {}
func (*accessOp) instr()            {}
func (*provideOp) instr()           {}
func (*refModifyOp) instr()         {}
func (*refLocallyOp) instr()        {}
func (*refDeleteOp) instr()         {}
func (*refGetAllOp) instr()         {}
func (*descriptorOp) instr()        {}
func (*yieldOp) instr()             {}
func (*superviseOp) instr()         {}
func (*getForkScopeOp) instr()      {}
func (*overrideForkScopeOp) instr() {}
func (*ensuringOp) instr()          {}
func (*inheritRefsOp) instr()       {}
func (*runtimeOp) instr()           {}
func (*traceOp) instr()             {}

// Pre-allocated instructions shared by every fiber.
var (
	unitOp      instruction = &succeedOp{value: struct{}{}}
	yieldUnitOp instruction = &yieldOp{}
	nilEffectOp instruction = &failOp{cause: func() *Cause { return Defect(ErrNilEffect) }}
)

// opName is the label recorded in execution traces.
func opName(op instruction) string {
	switch op.(type) {
	case *succeedOp:
		return "Succeed"
	case *syncOp:
		return "Sync"
	case *failOp:
		return "Fail"
	case *chainOp:
		return "Chain"
	case *asyncOp:
		return "Async"
	case *forkOp:
		return "Fork"
	case *raceOp:
		return "Race"
	case *foldOp:
		return "Match"
	case *setInterruptOp:
		return "SetInterruptStatus"
	case *getInterruptOp:
		return "GetInterruptStatus"
	case *accessOp:
		return "Access"
	case *provideOp:
		return "Provide"
	case *refModifyOp:
		return "RefModify"
	case *refLocallyOp:
		return "RefLocally"
	case *refDeleteOp:
		return "RefDelete"
	case *refGetAllOp:
		return "RefGetAll"
	case *descriptorOp:
		return "Descriptor"
	case *yieldOp:
		return "Yield"
	case *superviseOp:
		return "Supervise"
	case *getForkScopeOp:
		return "GetForkScope"
	case *overrideForkScopeOp:
		return "OverrideForkScope"
	case *ensuringOp:
		return "Ensuring"
	case *inheritRefsOp:
		return "InheritRefs"
	case *runtimeOp:
		return "Runtime"
	case *traceOp:
		return "Trace"
	default:
		return "Unknown"
	}
}
