// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/fiber"
	"code.hybscloud.com/kont"
)

func TestLoopCounter(t *testing.T) {
	rt := newRuntime(t)

	sum := runValue(t, rt, fiber.Loop([2]int{0, 0}, func(s [2]int) fiber.Effect[kont.Either[[2]int, int]] {
		i, acc := s[0], s[1]
		if i == 5 {
			return fiber.Succeed(kont.Right[[2]int](acc))
		}
		return fiber.Succeed(kont.Left[[2]int, int]([2]int{i + 1, acc + i}))
	}))
	// 0+1+2+3+4 = 10
	if sum != 10 {
		t.Fatalf("got %d, want 10", sum)
	}
}

func TestLoopImmediateTermination(t *testing.T) {
	rt := newRuntime(t)

	v := runValue(t, rt, fiber.Loop(0, func(int) fiber.Effect[kont.Either[int, string]] {
		return fiber.Succeed(kont.Right[int]("done"))
	}))
	if v != "done" {
		t.Fatalf("got %q, want %q", v, "done")
	}
}

// TestLoopDeep runs enough iterations to overflow a goroutine stack if the
// interpreter recursed natively.
func TestLoopDeep(t *testing.T) {
	rt := newRuntime(t)
	const n = 1_000_000

	v := runValue(t, rt, fiber.Loop(0, func(i int) fiber.Effect[kont.Either[int, int]] {
		if i == n {
			return fiber.Succeed(kont.Right[int](i))
		}
		return fiber.Sync(func() kont.Either[int, int] { return kont.Left[int, int](i + 1) })
	}))
	if v != n {
		t.Fatalf("got %d, want %d", v, n)
	}
}

// TestDeepFlatMapNesting builds a left-nested chain whose continuations all
// live on the fiber stack at once.
func TestDeepFlatMapNesting(t *testing.T) {
	rt := newRuntime(t)
	const n = 100_000

	var count func(i int) fiber.Effect[int]
	count = func(i int) fiber.Effect[int] {
		if i == 0 {
			return fiber.Succeed(0)
		}
		return fiber.Map(fiber.Defer(func() fiber.Effect[int] { return count(i - 1) }), func(v int) int { return v + 1 })
	}
	if v := runValue(t, rt, count(n)); v != n {
		t.Fatalf("got %d, want %d", v, n)
	}
}

func TestLoopWithError(t *testing.T) {
	rt := newRuntime(t)

	ex := runExit(t, rt, fiber.Loop(0, func(i int) fiber.Effect[kont.Either[int, int]] {
		if i == 3 {
			return fiber.Fail[kont.Either[int, int]](errBoom)
		}
		return fiber.Succeed(kont.Left[int, int](i + 1))
	}))
	if !errors.Is(ex.Err(), errBoom) {
		t.Fatalf("got %v, want Fail(boom)", ex)
	}
}

func TestLoopDeferBuildsLazily(t *testing.T) {
	rt := newRuntime(t)
	built := 0

	e := fiber.LoopDefer(0, func(i int) fiber.Effect[kont.Either[int, int]] {
		built++
		if i == 2 {
			return fiber.Succeed(kont.Right[int](i))
		}
		return fiber.Succeed(kont.Left[int, int](i + 1))
	})
	if built != 0 {
		t.Fatalf("LoopDefer ran %d steps at construction", built)
	}
	runValue(t, rt, e)
	runValue(t, rt, e)
	if built != 6 {
		t.Fatalf("built %d steps over two runs, want 6", built)
	}
}
