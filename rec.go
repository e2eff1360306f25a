// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/kont"
)

// Loop runs a recursive effect.
// step returns Left(nextState) to continue or Right(result) to finish.
// Iterations are interpreted on the fiber's continuation stack, so Loop
// runs in constant native stack regardless of the iteration count.
func Loop[S, A any](initial S, step func(S) Effect[kont.Either[S, A]]) Effect[A] {
	return FlatMap(step(initial), func(e kont.Either[S, A]) Effect[A] {
		if left, ok := e.GetLeft(); ok {
			return Loop(left, step)
		}
		right, _ := e.GetRight()
		return Succeed(right)
	})
}

// LoopDefer is Loop with the first step also deferred to interpretation
// time, for steps whose construction has side effects.
func LoopDefer[S, A any](initial S, step func(S) Effect[kont.Either[S, A]]) Effect[A] {
	return Defer(func() Effect[A] { return Loop(initial, step) })
}
