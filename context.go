// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"log/slog"
	"runtime/debug"
	"weak"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// frameKind tags an entry of the reified continuation stack.
type frameKind uint8

const (
	// frameApply continues with k on success and is skipped on failure.
	frameApply frameKind = iota
	// frameFold continues with k on success and onFailure on failure.
	frameFold
	// frameInterruptExit pops the interrupt-status stack.
	frameInterruptExit
	// frameRestore undoes a scoped state change (environment, local
	// value, supervisor).
	frameRestore
	// frameFinalizer runs fin uninterruptibly on either outcome.
	frameFinalizer
)

type frame struct {
	kind      frameKind
	k         func(kont.Erased) instruction
	onFailure func(*Cause) instruction
	restore   func()
	fin       instruction
}

// fiberContext is the interpreter of one fiber. Every method runs on the
// runtime's scheduler drain, so at most one fiberContext method executes at
// any instant and no field needs a lock. The only exception is finished, which
// is closed exactly once and read from host goroutines.
type fiberContext struct {
	id       ID
	parentID ID
	rt       *Runtime

	state           fiberState
	stack           []frame
	interruptStatus []bool
	opCount         int
	epoch           uint64

	env        kont.Erased
	refs       map[*refCell]kont.Erased
	supervisor Supervisor

	scope    *localScope
	children map[*fiberContext]struct{}
	pruneAt  int

	trace    *Trace
	report   func(*Cause)
	finished chan struct{}
}

func newFiberContext(rt *Runtime, parent *fiberContext, refs map[*refCell]kont.Erased, report func(*Cause)) *fiberContext {
	f := &fiberContext{
		id:       newID(),
		rt:       rt,
		state:    fiberState{status: Running{}},
		refs:     refs,
		finished: make(chan struct{}),
	}
	f.scope = &localScope{id: f.id, owner: weak.Make(f)}
	if report == nil {
		report = func(c *Cause) { rt.reportFailure(f.id, c) }
	}
	f.report = report
	var parentTrace *Trace
	if parent != nil {
		f.parentID = parent.id
		f.env = parent.env
		f.supervisor = parent.supervisor
		f.interruptStatus = append(f.interruptStatus, parent.isInterruptible())
		parentTrace = parent.trace
	} else {
		f.env = rt.env
		f.supervisor = rt.supervisor
		f.interruptStatus = append(f.interruptStatus, true)
	}
	f.trace = newTrace(f.id, parentTrace, rt.cfg)
	return f
}

// evaluateLater submits the rest of the fiber to the scheduler.
func (f *fiberContext) evaluateLater(current instruction) {
	f.rt.sched.Submit(func() { f.evaluateNow(current) })
}

// evaluateNow interprets the fiber from current until it completes,
// suspends, or exhausts its operation budget.
func (f *fiberContext) evaluateNow(current instruction) {
	f.opCount = 0
	for current != nil {
		current = f.runLoop(current)
	}
}

// runLoop is the interpreter loop. A panic escaping an instruction is
// converted into a failure and handed back to evaluateNow, which re-enters
// the loop with it.
func (f *fiberContext) runLoop(current instruction) (next instruction) {
	defer func() {
		if r := recover(); r != nil {
			next = recovered(r)
		}
	}()
	maxOps := f.rt.cfg.MaxOpCount
	tracing := f.rt.cfg.Tracing
	for current != nil {
		if f.shouldInterrupt() {
			f.setInterrupting(true)
			cause := f.clearSuppressed()
			if cause.IsEmpty() {
				cause = f.state.interruptorsCause()
			}
			current = failWith(cause)
		} else if mb := f.state.mailbox; mb != nil {
			f.state.mailbox = nil
			rest := current
			current = &chainOp{eff: mb, k: func(kont.Erased) instruction { return rest }}
		}
		if f.opCount >= maxOps {
			f.evaluateLater(current)
			return nil
		}
		f.opCount++
		if tracing {
			name := opName(current)
			f.trace.record(name)
			f.notify("effect", func(s Supervisor) { s.OnEffect(f.id, name) })
		}
		current = f.step(current)
	}
	return nil
}

// recovered maps a recovered panic to a failure instruction. A panicking
// *FailureError carries the cause to fail with; anything else is a defect.
func recovered(r any) instruction {
	if fe, ok := r.(*FailureError); ok {
		return failWith(fe.Cause)
	}
	return failWith(Defect(&PanicError{Value: r, Stack: debug.Stack()}))
}

// notify delivers one event to the fiber's supervisor. A panicking
// supervisor is logged and does not affect the fiber.
func (f *fiberContext) notify(event string, hook func(Supervisor)) {
	defer func() {
		if r := recover(); r != nil {
			f.rt.logger.Error("supervisor_panic",
				slog.String("fiber_id", f.id.String()),
				slog.String("event", event),
				slog.Any("panic", r),
			)
		}
	}()
	hook(f.supervisor)
}

func failWith(c *Cause) instruction {
	return &failOp{cause: func() *Cause { return c }}
}

// step executes one instruction and returns the next one, or nil when the
// fiber completed or handed control back to the scheduler.
func (f *fiberContext) step(current instruction) instruction {
	switch op := current.(type) {
	case *succeedOp:
		return f.nextInstr(op.value)

	case *syncOp:
		return f.nextInstr(op.thunk())

	case *chainOp:
		switch inner := op.eff.(type) {
		case *succeedOp:
			return op.k(inner.value)
		case *syncOp:
			return op.k(inner.thunk())
		}
		f.push(frame{kind: frameApply, k: op.k})
		return op.eff

	case *failOp:
		return f.unwind(op.cause())

	case *foldOp:
		f.push(frame{kind: frameFold, k: op.onSuccess, onFailure: op.onFailure})
		return op.eff

	case *asyncOp:
		return f.suspend(op)

	case *forkOp:
		return &succeedOp{value: f.fork(op.eff, op.scope, op.report)}

	case *raceOp:
		return f.race(op)

	case *setInterruptOp:
		f.pushInterruptStatus(op.interruptible)
		return op.eff

	case *getInterruptOp:
		return op.k(f.isInterruptible())

	case *accessOp:
		return op.k(f.env)

	case *provideOp:
		prev := f.env
		f.env = op.env
		f.push(frame{kind: frameRestore, restore: func() { f.env = prev }})
		return op.eff

	case *refModifyOp:
		out, next := op.f(f.refValue(op.ref))
		f.refs[op.ref] = next
		return &succeedOp{value: out}

	case *refLocallyOp:
		return f.locally(op.ref, op.value, op.eff)

	case *refDeleteOp:
		delete(f.refs, op.ref)
		return unitOp

	case *refGetAllOp:
		snapshot := make(map[*refCell]kont.Erased, len(f.refs))
		for r, v := range f.refs {
			if !r.internal {
				snapshot[r] = v
			}
		}
		return op.k(snapshot)

	case *descriptorOp:
		return op.k(f.describe())

	case *yieldOp:
		f.evaluateLater(unitOp)
		return nil

	case *superviseOp:
		prev := f.supervisor
		f.supervisor = And(prev, op.sup)
		f.push(frame{kind: frameRestore, restore: func() { f.supervisor = prev }})
		return op.eff

	case *getForkScopeOp:
		return op.k(f.forkScope())

	case *overrideForkScopeOp:
		return f.locally(forkScopeCell, op.scope, op.eff)

	case *ensuringOp:
		f.push(frame{kind: frameFinalizer, fin: op.finalizer})
		return op.eff

	case *inheritRefsOp:
		return f.inheritRefs(op.child)

	case *runtimeOp:
		return op.k(f.rt)

	case *traceOp:
		return op.k(f.trace)

	default:
		return failWith(Defect(ErrNilEffect))
	}
}

func (f *fiberContext) push(fr frame) {
	f.stack = append(f.stack, fr)
}

func (f *fiberContext) pop() frame {
	n := len(f.stack) - 1
	fr := f.stack[n]
	f.stack[n] = frame{}
	f.stack = f.stack[:n]
	return fr
}

// nextInstr delivers a success value to the nearest continuation.
func (f *fiberContext) nextInstr(v kont.Erased) instruction {
	for len(f.stack) > 0 {
		fr := f.pop()
		switch fr.kind {
		case frameApply, frameFold:
			return fr.k(v)
		case frameInterruptExit:
			f.popInterruptStatus()
			// Requests recorded inside the region act on leaving it.
			if f.shouldInterrupt() {
				return &succeedOp{value: v}
			}
		case frameRestore:
			fr.restore()
		case frameFinalizer:
			f.pushInterruptStatus(false)
			return &chainOp{eff: fr.fin, k: func(kont.Erased) instruction { return &succeedOp{value: v} }}
		}
	}
	return f.done(Succeeded[kont.Erased](v))
}

// unwind pops frames looking for a failure handler. Fold frames are
// discarded while the fiber is interrupted in an interruptible region.
// Finalizers stop the unwinding; they run uninterruptibly and resume it
// with their own cause appended.
func (f *fiberContext) unwind(cause *Cause) instruction {
	for len(f.stack) > 0 {
		fr := f.pop()
		switch fr.kind {
		case frameInterruptExit:
			f.popInterruptStatus()
		case frameRestore:
			fr.restore()
		case frameFold:
			if f.isInterrupted() && f.isInterruptible() {
				continue
			}
			f.setInterrupting(false)
			return fr.onFailure(cause)
		case frameFinalizer:
			f.pushInterruptStatus(false)
			return &foldOp{
				eff:       fr.fin,
				onFailure: func(c2 *Cause) instruction { return failWith(cause.Then(c2)) },
				onSuccess: func(kont.Erased) instruction { return failWith(cause) },
			}
		}
	}
	if s := f.clearSuppressed(); !cause.Contains(s) {
		cause = cause.Then(s)
	}
	return f.done(Failed[kont.Erased](cause))
}

// pushInterruptStatus enters a region with the given interruptibility. The
// matching exit frame restores the previous one.
func (f *fiberContext) pushInterruptStatus(b bool) {
	f.interruptStatus = append(f.interruptStatus, b)
	f.push(frame{kind: frameInterruptExit})
}

func (f *fiberContext) popInterruptStatus() {
	if n := len(f.interruptStatus); n > 1 {
		f.interruptStatus = f.interruptStatus[:n-1]
	}
}

func (f *fiberContext) isInterruptible() bool {
	return f.interruptStatus[len(f.interruptStatus)-1]
}

func (f *fiberContext) isInterrupted() bool {
	return len(f.state.interruptors) > 0
}

func (f *fiberContext) shouldInterrupt() bool {
	return f.isInterrupted() && f.isInterruptible() && !isInterrupting(f.state.status)
}

func (f *fiberContext) setInterrupting(b bool) {
	f.state.status = withInterrupting(f.state.status, b)
}

func (f *fiberContext) clearSuppressed() *Cause {
	c := f.state.suppressed
	f.state.suppressed = nil
	return c
}

// deliver appends instr to the mailbox. The fiber runs it before its next
// instruction, or before completing.
func (f *fiberContext) deliver(instr instruction) {
	if prev := f.state.mailbox; prev != nil {
		f.state.mailbox = &chainOp{eff: prev, k: func(kont.Erased) instruction { return instr }}
		return
	}
	f.state.mailbox = instr
}

// done completes the fiber with exit once its mailbox is drained and its
// children are terminated. Until then it returns the work that must run
// first, which calls done again.
func (f *fiberContext) done(exit Exit[kont.Erased]) instruction {
	if f.state.exit != nil {
		return nil
	}
	if mb := f.state.mailbox; mb != nil {
		f.state.mailbox = nil
		f.state.status = toFinishing(f.state.status)
		f.interruptStatus = append(f.interruptStatus, false)
		return &foldOp{
			eff:       mb,
			onFailure: func(*Cause) instruction { return f.done(exit) },
			onSuccess: func(kont.Erased) instruction { return f.done(exit) },
		}
	}
	if kids := f.liveChildren(); len(kids) > 0 {
		clear(f.children)
		f.state.status = withInterrupting(toFinishing(f.state.status), true)
		f.interruptStatus = append(f.interruptStatus, false)
		var join instruction = &syncOp{thunk: func() kont.Erased {
			for _, c := range kids {
				c.kill(f.id)
			}
			return nil
		}}
		for _, c := range kids {
			prev := join
			join = &chainOp{eff: prev, k: func(kont.Erased) instruction { return c.await() }}
		}
		return &foldOp{
			eff:       join,
			onFailure: func(*Cause) instruction { return f.done(exit) },
			onSuccess: func(kont.Erased) instruction { return f.done(exit) },
		}
	}

	if !exit.ok {
		if ic := f.state.interruptorsCause(); !exit.cause.Contains(ic) {
			exit = Failed[kont.Erased](exit.cause.Then(ic))
		}
	}
	f.state.exit = &exit
	f.state.status = Done{}
	f.stack = nil
	observers := f.state.observers
	f.state.observers = nil
	f.notify("end", func(s Supervisor) { s.OnEnd(f.id, exit) })
	for _, o := range observers {
		o.fn(exit)
	}
	close(f.finished)
	if !exit.ok && len(observers) == 0 && !exit.cause.IsInterruptedOnly() {
		f.report(exit.cause)
	}
	return nil
}

// observe registers fn to receive the exit. On a completed fiber fn runs
// immediately.
func (f *fiberContext) observe(fn func(Exit[kont.Erased])) *observer {
	if ex := f.state.exit; ex != nil {
		fn(*ex)
		return nil
	}
	o := &observer{fn: fn}
	f.state.observers = append(f.state.observers, o)
	return o
}

// await suspends the caller until f is done and completes with its exit.
func (f *fiberContext) await() instruction {
	return &asyncOp{
		register: func(resume func(instruction)) kont.Either[instruction, instruction] {
			if ex := f.state.exit; ex != nil {
				return kont.Right[instruction](instruction(&succeedOp{value: *ex}))
			}
			o := f.observe(func(ex Exit[kont.Erased]) { resume(&succeedOp{value: ex}) })
			return kont.Left[instruction, instruction](instruction(&syncOp{thunk: func() kont.Erased {
				f.state.removeObserver(o)
				return nil
			}}))
		},
		blockingOn: f.id,
	}
}

// interruptAs kills f on behalf of by and awaits its exit.
func (f *fiberContext) interruptAs(by ID) instruction {
	return &chainOp{
		eff: &syncOp{thunk: func() kont.Erased { f.kill(by); return nil }},
		k:   func(kont.Erased) instruction { return f.await() },
	}
}

// kill records an interruption request from by. A fiber suspended in an
// interruptible region with a registered canceller is woken to run it;
// any other fiber observes the request at its next interrupt check.
func (f *fiberContext) kill(by ID) {
	if f.state.isDone() {
		return
	}
	if s, ok := f.state.status.(Suspended); ok && s.Interruptible && f.state.canceller == cancellerRegistered {
		cancel := f.state.cancel
		f.state.status = withInterrupting(s.Previous, true)
		f.state.addInterruptor(by)
		f.state.canceller = cancellerEmpty
		f.state.cancel = nil
		f.evaluateLater(&chainOp{eff: cancel, k: func(kont.Erased) instruction {
			return &failOp{cause: func() *Cause { return f.clearSuppressed().Then(Interruption(by)) }}
		}})
		return
	}
	if f.state.addInterruptor(by) {
		f.state.suppressed = f.state.suppressed.Then(Interruption(by))
	}
}

// enterAsync marks the fiber suspended for a new epoch.
func (f *fiberContext) enterAsync(blockingOn ID) uint64 {
	f.epoch++
	epoch := f.epoch
	f.state.status = Suspended{
		Previous:      f.state.status,
		Interruptible: f.isInterruptible(),
		Epoch:         epoch,
		BlockingOn:    blockingOn,
	}
	f.state.canceller = cancellerPending
	if f.rt.cfg.Tracing {
		f.notify("suspend", func(s Supervisor) { s.OnSuspend(f.id) })
	}
	return epoch
}

// exitAsync leaves the suspension of epoch. It reports false when the
// suspension was already left, by resumption or interruption.
func (f *fiberContext) exitAsync(epoch uint64) bool {
	s, ok := f.state.status.(Suspended)
	if !ok || s.Epoch != epoch {
		return false
	}
	f.state.status = s.Previous
	f.state.canceller = cancellerEmpty
	f.state.cancel = nil
	if f.rt.cfg.Tracing {
		f.notify("resume", func(s Supervisor) { s.OnResume(f.id) })
	}
	return true
}

func (f *fiberContext) suspendedAt(epoch uint64) bool {
	s, ok := f.state.status.(Suspended)
	return ok && s.Epoch == epoch
}

// suspend runs an async registration.
func (f *fiberContext) suspend(op *asyncOp) instruction {
	epoch := f.enterAsync(op.blockingOn)
	once := kont.Once(func(next instruction) struct{} {
		f.rt.sched.Submit(func() {
			if f.exitAsync(epoch) {
				f.evaluateNow(next)
			}
		})
		return struct{}{}
	})
	r, failed := registerAsync(op, func(next instruction) { once.TryResume(next) })
	if failed != nil {
		f.exitAsync(epoch)
		once.Discard()
		return failed
	}
	if cancel, ok := r.GetLeft(); ok {
		if f.suspendedAt(epoch) {
			f.state.canceller = cancellerRegistered
			f.state.cancel = cancel
		}
		if f.shouldInterrupt() && f.exitAsync(epoch) {
			once.Discard()
			f.setInterrupting(true)
			return &chainOp{eff: cancel, k: func(kont.Erased) instruction {
				cause := f.clearSuppressed()
				if cause.IsEmpty() {
					cause = f.state.interruptorsCause()
				}
				return failWith(cause)
			}}
		}
		return nil
	}
	now, _ := r.GetRight()
	if f.exitAsync(epoch) {
		once.Discard()
		return now
	}
	return nil
}

// registerAsync runs the registration of op. A panic is returned as the
// failure to continue with.
func registerAsync(op *asyncOp, resume func(instruction)) (r kont.Either[instruction, instruction], failed instruction) {
	defer func() {
		if v := recover(); v != nil {
			failed = recovered(v)
		}
	}()
	return op.register(resume), nil
}

// fork starts eff on a new child fiber and returns its context.
func (f *fiberContext) fork(eff instruction, scope Scope, report func(*Cause)) *fiberContext {
	refs := make(map[*refCell]kont.Erased, len(f.refs))
	for r, v := range f.refs {
		if v2, keep := r.forkValue(v); keep {
			refs[r] = v2
		}
	}
	if scope == nil {
		scope = f.forkScope()
	}
	child := newFiberContext(f.rt, f, refs, report)
	child.notify("start", func(s Supervisor) { s.OnStart(child.id, f.id) })
	if !scope.add(child) {
		eff = failWith(Interruption(scope.FiberID()))
	}
	child.evaluateLater(eff)
	return child
}

// forkScope resolves the scope new children join: the override set with
// OverrideForkScope, else the fiber's own scope.
func (f *fiberContext) forkScope() Scope {
	if s, ok := f.refs[forkScopeCell].(Scope); ok && s != nil {
		return s
	}
	return f.scope
}

// addChild returns the mailbox instruction that links child to f.
func (f *fiberContext) addChild(child *fiberContext) instruction {
	return &syncOp{thunk: func() kont.Erased {
		if child.state.isDone() {
			return nil
		}
		if f.children == nil {
			f.children = make(map[*fiberContext]struct{})
		}
		if len(f.children) >= f.pruneAt {
			for c := range f.children {
				if c.state.isDone() {
					delete(f.children, c)
				}
			}
			f.pruneAt = max(64, 2*len(f.children))
		}
		f.children[child] = struct{}{}
		return nil
	}}
}

func (f *fiberContext) liveChildren() []*fiberContext {
	var kids []*fiberContext
	for c := range f.children {
		if !c.state.isDone() {
			kids = append(kids, c)
		}
	}
	return kids
}

// race forks both sides and resumes with the continuation of whichever
// finishes first.
func (f *fiberContext) race(op *raceOp) instruction {
	left := f.fork(op.left, op.scope, nil)
	right := f.fork(op.right, op.scope, nil)
	var decided atomix.Uint32
	return &asyncOp{
		register: func(resume func(instruction)) kont.Either[instruction, instruction] {
			arbiter := func(winner, loser *fiberContext, k func(Exit[kont.Erased], *fiberContext) instruction) func(Exit[kont.Erased]) {
				return func(ex Exit[kont.Erased]) {
					if !decided.CompareAndSwap(0, 1) {
						return
					}
					if ex.ok {
						resume(&chainOp{
							eff: f.inheritRefs(winner),
							k:   func(kont.Erased) instruction { return k(ex, loser) },
						})
						return
					}
					resume(k(ex, loser))
				}
			}
			left.observe(arbiter(left, right, op.leftWins))
			right.observe(arbiter(right, left, op.rightWins))
			return kont.Left[instruction, instruction](instruction(&syncOp{thunk: func() kont.Erased {
				left.kill(f.id)
				right.kill(f.id)
				return nil
			}}))
		},
		blockingOn: None,
	}
}

// inheritRefs joins the fiber-local values of child into f.
func (f *fiberContext) inheritRefs(child *fiberContext) instruction {
	return &syncOp{thunk: func() kont.Erased {
		for r, v := range child.refs {
			if r.internal {
				continue
			}
			if pv, ok := f.refs[r]; ok {
				f.refs[r] = r.join(pv, v)
			} else {
				f.refs[r] = r.join(r.initial, v)
			}
		}
		return nil
	}}
}

func (f *fiberContext) refValue(r *refCell) kont.Erased {
	if v, ok := f.refs[r]; ok {
		return v
	}
	return r.initial
}

// locally binds r to v for the extent of eff.
func (f *fiberContext) locally(r *refCell, v kont.Erased, eff instruction) instruction {
	prev, had := f.refs[r]
	f.refs[r] = v
	f.push(frame{kind: frameRestore, restore: func() {
		if had {
			f.refs[r] = prev
		} else {
			delete(f.refs, r)
		}
	}})
	return eff
}

func (f *fiberContext) describe() Descriptor {
	kids := f.liveChildren()
	ids := make([]ID, len(kids))
	for i, c := range kids {
		ids[i] = c.id
	}
	return Descriptor{
		ID:            f.id,
		Parent:        f.parentID,
		Status:        f.state.status,
		Interruptors:  append([]ID(nil), f.state.interruptors...),
		Interruptible: f.isInterruptible(),
		Scope:         f.scope,
		Children:      ids,
	}
}
