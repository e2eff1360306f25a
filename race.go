// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"time"

	"code.hybscloud.com/kont"
)

// RaceWith runs left and right on child fibers and continues with the
// handler of whichever completes first. The handler receives the winner's
// exit and the loser's handle; the loser keeps running and it is up to the
// handler to join or interrupt it. A successful winner's fiber-local
// values are inherited before its handler runs.
func RaceWith[A, B, C any](
	left Effect[A], right Effect[B],
	leftDone func(Exit[A], *Fiber[B]) Effect[C],
	rightDone func(Exit[B], *Fiber[A]) Effect[C],
) Effect[C] {
	return Effect[C]{op: &raceOp{
		left:  left.instruction(),
		right: right.instruction(),
		leftWins: func(ex Exit[kont.Erased], loser *fiberContext) instruction {
			return leftDone(narrow[A](ex), &Fiber[B]{ctx: loser}).instruction()
		},
		rightWins: func(ex Exit[kont.Erased], loser *fiberContext) instruction {
			return rightDone(narrow[B](ex), &Fiber[A]{ctx: loser}).instruction()
		},
	}}
}

// Race returns the first successful result of left and right and
// interrupts the other side. If both fail the causes are combined with
// Both.
func Race[A any](left, right Effect[A]) Effect[A] {
	return RaceWith(left, right, raceDone[A], raceDone[A])
}

func raceDone[A any](ex Exit[A], loser *Fiber[A]) Effect[A] {
	if ex.ok {
		return As(loser.Interrupt(), ex.value)
	}
	return FlatMap(loser.Await(), func(lex Exit[A]) Effect[A] {
		if lex.ok {
			return Then(loser.InheritRefs(), Succeed(lex.value))
		}
		return FailCause[A](ex.cause.Both(lex.cause))
	})
}

// Timeout runs e, failing with ErrTimeout if it does not complete within d.
// On timeout e is interrupted and awaited before the failure is reported.
func Timeout[A any](d time.Duration, e Effect[A]) Effect[A] {
	return RaceWith(e, Sleep(d),
		func(ex Exit[A], timer *Fiber[struct{}]) Effect[A] {
			return Then(timer.Interrupt(), FromExit(ex))
		},
		func(ex Exit[struct{}], work *Fiber[A]) Effect[A] {
			if !ex.ok {
				return work.Join()
			}
			return Then(work.Interrupt(), Fail[A](ErrTimeout))
		},
	)
}
