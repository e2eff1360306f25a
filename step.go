// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/kont"
)

// Dispatch interprets one suspended kont operation as an effect. Its value
// resumes the suspended computation; its failure aborts it.
type Dispatch func(op kont.Operation) Effect[kont.Resumed]

// FromExpr runs the kont computation m on the fiber, one effect at a time.
//
// m is stepped with kont.StepExpr until it suspends. [Lift] operations run
// their effect directly, kont.Throw[error] fails the fiber with its error,
// and every other operation is handed to dispatch. A nil dispatch treats
// such operations as defects.
//
// Each step runs as an ordinary fiber instruction, so a long kont program
// is subject to the same interruption checks and operation budget as any
// other effect.
func FromExpr[A any](m kont.Expr[A], dispatch Dispatch) Effect[A] {
	return Defer(func() Effect[A] {
		a, susp := kont.StepExpr(m)
		if susp == nil {
			return Succeed(a)
		}
		return Loop(susp, func(s *kont.Suspension[A]) Effect[kont.Either[*kont.Suspension[A], A]] {
			return Match(advance(s.Op(), dispatch),
				func(c *Cause) Effect[kont.Either[*kont.Suspension[A], A]] {
					s.Discard()
					return FailCause[kont.Either[*kont.Suspension[A], A]](c)
				},
				func(v kont.Resumed) Effect[kont.Either[*kont.Suspension[A], A]] {
					a, next := s.Resume(v)
					if next == nil {
						return Succeed(kont.Right[*kont.Suspension[A]](a))
					}
					return Succeed(kont.Left[*kont.Suspension[A], A](next))
				},
			)
		})
	})
}

// advance selects the effect that answers op.
func advance(op kont.Operation, dispatch Dispatch) Effect[kont.Resumed] {
	switch o := op.(type) {
	case lifted:
		return Effect[kont.Resumed]{op: o.lift()}
	case kont.Throw[error]:
		return Fail[kont.Resumed](o.Err)
	}
	if dispatch == nil {
		return Die[kont.Resumed](&UnhandledError{Op: op})
	}
	return Defer(func() Effect[kont.Resumed] { return dispatch(op) })
}
