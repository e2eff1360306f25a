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

func TestFromKontState(t *testing.T) {
	rt := newRuntime(t)
	ref := fiber.NewRef(0)

	m := kont.GetState(func(s int) kont.Eff[int] {
		return kont.PutState(s+1, kont.Pure(s*10))
	})
	got := runValue(t, rt, fiber.Then(ref.Set(4),
		fiber.ZipWith(fiber.FromKont(m, stateDispatch(ref)), ref.Get(), func(v, s int) [2]int { return [2]int{v, s} })))
	if got != [2]int{40, 5} {
		t.Fatalf("got %v, want [40 5]", got)
	}
}

func TestFromKontThrow(t *testing.T) {
	rt := newRuntime(t)

	m := kont.Bind(kont.ThrowError[error, int](errBoom), func(n int) kont.Eff[int] { return kont.Pure(n + 1) })
	ex := runExit(t, rt, fiber.FromKont(m, nil))
	if !errors.Is(ex.Err(), errBoom) {
		t.Fatalf("got %v, want Fail(boom)", ex)
	}
}

// TestPerformLift runs fiber effects from inside a kont computation
// without a dispatcher.
func TestPerformLift(t *testing.T) {
	rt := newRuntime(t)

	m := kont.Bind(fiber.Perform(fiber.Succeed(20)), func(n int) kont.Eff[int] {
		return kont.Bind(fiber.Perform(fiber.Sync(func() int { return n + 1 })), func(m int) kont.Eff[int] {
			return kont.Pure(m * 2)
		})
	})
	if v := runValue(t, rt, fiber.FromKont(m, nil)); v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestPerformLiftFork(t *testing.T) {
	rt := newRuntime(t)

	m := kont.Bind(fiber.Perform(fiber.Fork(fiber.Succeed("child"))), func(f *fiber.Fiber[string]) kont.Eff[string] {
		return fiber.Perform(f.Join())
	})
	if v := runValue(t, rt, fiber.FromKont(m, nil)); v != "child" {
		t.Fatalf("got %q, want %q", v, "child")
	}
}

func TestPerformLiftFailure(t *testing.T) {
	rt := newRuntime(t)
	ran := false

	m := kont.Bind(fiber.Perform(fiber.Fail[int](errBoom)), func(n int) kont.Eff[int] {
		ran = true
		return kont.Pure(n)
	})
	ex := runExit(t, rt, fiber.FromKont(m, nil))
	if !errors.Is(ex.Err(), errBoom) {
		t.Fatalf("got %v, want Fail(boom)", ex)
	}
	if ran {
		t.Fatal("continuation ran after a lifted failure")
	}
}

func TestExprPerformLift(t *testing.T) {
	rt := newRuntime(t)
	ref := fiber.NewRef("")

	m := kont.ExprThen(fiber.ExprPerform(ref.Set("set")), fiber.ExprPerform(ref.Get()))
	if v := runValue(t, rt, fiber.FromExpr(m, nil)); v != "set" {
		t.Fatalf("got %q, want %q", v, "set")
	}
}
