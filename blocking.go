// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"context"
	"runtime/debug"

	"code.hybscloud.com/kont"
)

// Blocking runs f on its own goroutine and suspends the fiber until it
// returns. f receives a context that is cancelled when the fiber is
// interrupted or the runtime is closed; f should return promptly once it
// is. A non-nil error fails the effect, a panic in f is a defect.
func Blocking[A any](f func(ctx context.Context) (A, error)) Effect[A] {
	return Effect[A]{op: &runtimeOp{k: func(rt *Runtime) instruction {
		return &asyncOp{register: func(resume func(instruction)) kont.Either[instruction, instruction] {
			ctx, cancel := context.WithCancel(rt.ctx)
			go func() {
				defer cancel()
				resume(runBlocking(ctx, f).instruction())
			}()
			return kont.Left[instruction, instruction](instruction(&syncOp{thunk: func() kont.Erased {
				cancel()
				return nil
			}}))
		}}
	}}}
}

func runBlocking[A any](ctx context.Context, f func(ctx context.Context) (A, error)) (e Effect[A]) {
	defer func() {
		if r := recover(); r != nil {
			e = Die[A](&PanicError{Value: r, Stack: debug.Stack()})
		}
	}()
	a, err := f(ctx)
	if err != nil {
		return Fail[A](err)
	}
	return Succeed(a)
}
