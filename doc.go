// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fiber is a cooperative effect runtime: effects are immutable
// descriptions of computations, and fibers are lightweight logical threads
// that interpret them on a single scheduler with structured concurrency,
// cooperative interruption and fiber-local state.
//
// # Architecture
//
//   - Effects: [Effect] wraps one instruction of a closed, type-erased
//     instruction set. Building an effect never runs anything.
//   - Interpreter: each fiber interprets its effect with a reified
//     continuation stack, so recursion depth is bounded by the heap, not the
//     goroutine stack. After [Config.MaxOpCount] instructions a fiber yields.
//   - Scheduler: [Scheduler] is a FIFO of thunks drained by one goroutine
//     at a time. At most one fiber step runs at any instant.
//   - Suspension: [Async] suspends a fiber until a callback resumes it,
//     from any goroutine. Stale resumptions are dropped by epoch.
//   - Timers: [Sleep] and [Timeout] are served by a timer goroutine fed
//     through a lock-free SPSC queue ([code.hybscloud.com/lfq]).
//
// # Failure
//
// A failed fiber exits with a [Cause]: expected failures ([Fail]), defects
// ([Die], recovered panics) and interruptions, composed with [Cause.Then]
// and [Cause.Both]. [Exit.Err] converts a failed exit to a *[FailureError];
// errors.Is(err, [ErrInterrupted]) reports interruption.
//
// # Structured Concurrency
//
//   - [Fork] registers the child in the parent's scope. A fiber does not
//     complete until its mailbox is drained and its live children have been
//     interrupted and have terminated.
//   - [ForkDaemon] uses the [GlobalScope]; [ForkIn] and
//     [OverrideForkScope] choose another owner.
//   - [RaceWith] hands the winner's exit and the loser's handle to a
//     continuation. [Race] and [Timeout] interrupt the loser.
//
// # Interruption
//
// Interruption is cooperative. It is checked before every instruction and
// when a suspended fiber is woken. Inside [Uninterruptible] regions and
// finalizers ([Ensuring], [Bracket]) requests are recorded and act when the
// region ends.
//
// # Integration
//
//   - Host: [Run] returns a [Fiber] handle; [RunSync] and [Exec] block.
//   - Go code: [Blocking] runs a function on its own goroutine with a
//     context cancelled on interruption.
//   - kont: [FromKont] and [FromExpr] step a [code.hybscloud.com/kont]
//     computation on a fiber; [Perform] lifts an effect into kont.
//
// # Example
//
//	rt, _ := fiber.New()
//	defer rt.Close()
//	prog := fiber.FlatMap(fiber.Fork(fiber.Succeed(21)), func(f *fiber.Fiber[int]) fiber.Effect[int] {
//		return fiber.Map(f.Join(), func(n int) int { return n * 2 })
//	})
//	n, err := fiber.Exec(rt, prog)
package fiber
