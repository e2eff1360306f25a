// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/kont"
)

// FromKont runs the closure-based kont computation m on the fiber. It is
// FromExpr over kont.Reify(m).
func FromKont[A any](m kont.Eff[A], dispatch Dispatch) Effect[A] {
	return Defer(func() Effect[A] { return FromExpr(kont.Reify(m), dispatch) })
}

// Lift is a kont operation that runs Effect on the fiber driving the kont
// computation and resumes it with the effect's value. A failure of Effect
// aborts the computation.
type Lift[A any] struct {
	Effect Effect[A]
}

// OpResult implements kont.Op.
func (Lift[A]) OpResult() A { panic("phantom") }

func (o Lift[A]) lift() instruction { return o.Effect.instruction() }

// lifted is implemented by every Lift instantiation.
type lifted interface {
	lift() instruction
}

// Perform suspends a kont computation on e.
func Perform[A any](e Effect[A]) kont.Eff[A] {
	return kont.Perform(Lift[A]{Effect: e})
}

// ExprPerform is Perform for defunctionalized kont computations.
func ExprPerform[A any](e Effect[A]) kont.Expr[A] {
	return kont.ExprPerform(Lift[A]{Effect: e})
}
