// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	"code.hybscloud.com/fiber"
)

// recorder collects events from inside fibers. All appends happen on the
// scheduler, so no lock is needed.
type recorder struct{ events []string }

func (r *recorder) note(ev string) fiber.Effect[struct{}] {
	return fiber.Sync(func() struct{} {
		r.events = append(r.events, ev)
		return struct{}{}
	})
}

func TestEnsuringOnSuccessAndFailure(t *testing.T) {
	rt := newRuntime(t)
	var r recorder

	v := runValue(t, rt, fiber.Ensuring(fiber.Then(r.note("body"), fiber.Succeed(1)), r.note("fin")))
	if v != 1 || !reflect.DeepEqual(r.events, []string{"body", "fin"}) {
		t.Fatalf("got %d with %v", v, r.events)
	}

	r.events = nil
	ex := runExit(t, rt, fiber.Ensuring(fiber.Fail[int](errBoom), r.note("fin")))
	if !errors.Is(ex.Err(), errBoom) || !reflect.DeepEqual(r.events, []string{"fin"}) {
		t.Fatalf("got %v with %v", ex, r.events)
	}
}

func TestEnsuringFinalizerFailureComposes(t *testing.T) {
	rt := newRuntime(t)
	errFin := errors.New("fin")

	ex := runExit(t, rt, fiber.Ensuring(fiber.Fail[int](errBoom), fiber.Fail[int](errFin)))
	errs := ex.Cause().Failures()
	if len(errs) != 2 || errs[0] != errBoom || errs[1] != errFin {
		t.Fatalf("got %v, want Then(boom, fin)", ex)
	}
}

func TestEnsuringNested(t *testing.T) {
	rt := newRuntime(t)
	var r recorder

	runExit(t, rt, fiber.Ensuring(fiber.Ensuring(fiber.Die[int]("x"), r.note("inner")), r.note("outer")))
	if !reflect.DeepEqual(r.events, []string{"inner", "outer"}) {
		t.Fatalf("finalizers ran as %v", r.events)
	}
}

func TestBracket(t *testing.T) {
	rt := newRuntime(t)
	var r recorder

	v := runValue(t, rt, fiber.Bracket(
		fiber.Then(r.note("acquire"), fiber.Succeed("res")),
		func(res string, ex fiber.Exit[int]) fiber.Effect[struct{}] {
			return r.note("release " + res + " " + strconv.FormatBool(ex.IsSuccess()))
		},
		func(res string) fiber.Effect[int] { return fiber.Then(r.note("use "+res), fiber.Succeed(len(res))) },
	))
	want := []string{"acquire", "use res", "release res true"}
	if v != 3 || !reflect.DeepEqual(r.events, want) {
		t.Fatalf("got %d with %v, want 3 with %v", v, r.events, want)
	}
}

func TestBracketReleasesOnInterrupt(t *testing.T) {
	rt := newRuntime(t)
	var r recorder

	use := fiber.Bracket(
		fiber.Succeed(1),
		func(_ int, ex fiber.Exit[int]) fiber.Effect[struct{}] {
			return r.note("release interrupted=" + strconv.FormatBool(ex.Cause().IsInterrupted()))
		},
		func(int) fiber.Effect[int] { return fiber.Never[int]() },
	)
	ex := runValue(t, rt, fiber.FlatMap(fiber.Fork(use), func(f *fiber.Fiber[int]) fiber.Effect[fiber.Exit[int]] {
		return fiber.Then(fiber.Yield(), f.Interrupt())
	}))
	if !ex.Cause().IsInterrupted() {
		t.Fatalf("got %v, want interruption", ex)
	}
	if !reflect.DeepEqual(r.events, []string{"release interrupted=true"}) {
		t.Fatalf("events %v", r.events)
	}
}

func TestOnInterrupt(t *testing.T) {
	rt := newRuntime(t)
	var r recorder

	runValue(t, rt, fiber.OnInterrupt(fiber.Succeed(1), r.note("cleanup")))
	runExit(t, rt, fiber.OnInterrupt(fiber.Fail[int](errBoom), r.note("cleanup")))
	if len(r.events) != 0 {
		t.Fatalf("cleanup ran without interruption: %v", r.events)
	}

	runValue(t, rt, fiber.FlatMap(fiber.Fork(fiber.OnInterrupt(fiber.Never[int](), r.note("cleanup"))), func(f *fiber.Fiber[int]) fiber.Effect[fiber.Exit[int]] {
		return fiber.Then(fiber.Yield(), f.Interrupt())
	}))
	if !reflect.DeepEqual(r.events, []string{"cleanup"}) {
		t.Fatalf("events %v", r.events)
	}
}

func TestRetry(t *testing.T) {
	rt := newRuntime(t)
	attempts := 0
	flaky := fiber.Attempt(func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errBoom
		}
		return attempts, nil
	})

	if v := runValue(t, rt, fiber.Retry(flaky, 5)); v != 3 {
		t.Fatalf("got %d, want 3", v)
	}
	attempts = 0
	if ex := runExit(t, rt, fiber.Retry(flaky, 1)); !errors.Is(ex.Err(), errBoom) || attempts != 2 {
		t.Fatalf("got %v after %d attempts", ex, attempts)
	}
}

func TestRepeat(t *testing.T) {
	rt := newRuntime(t)
	n := 0

	v := runValue(t, rt, fiber.Repeat(fiber.Sync(func() int { n++; return n }), 4))
	if v != 5 || n != 5 {
		t.Fatalf("got %d after %d runs, want 5 after 5", v, n)
	}
}

func TestOrElseTapZip(t *testing.T) {
	rt := newRuntime(t)
	var r recorder

	v := runValue(t, rt, fiber.ZipWith(
		fiber.OrElse(fiber.Fail[int](errBoom), fiber.Succeed(2)),
		fiber.Tap(fiber.Succeed(3), func(n int) fiber.Effect[struct{}] { return r.note(strconv.Itoa(n)) }),
		func(a, b int) int { return a * b },
	))
	if v != 6 || !reflect.DeepEqual(r.events, []string{"3"}) {
		t.Fatalf("got %d with %v", v, r.events)
	}
}

func TestMatchSeesEveryCause(t *testing.T) {
	rt := newRuntime(t)
	describe := func(e fiber.Effect[int]) fiber.Effect[string] {
		return fiber.Match(e,
			func(c *fiber.Cause) fiber.Effect[string] { return fiber.Succeed(c.String()) },
			func(n int) fiber.Effect[string] { return fiber.Succeed(strconv.Itoa(n)) },
		)
	}

	if got := runValue(t, rt, describe(fiber.Succeed(4))); got != "4" {
		t.Fatalf("success: %q", got)
	}
	if got := runValue(t, rt, describe(fiber.Die[int]("d"))); got != "Die(d)" {
		t.Fatalf("defect: %q", got)
	}
	if got := runValue(t, rt, describe(fiber.InterruptAs[int](fiber.ID{Seq: 5}))); got != "Interrupt(#5)" {
		t.Fatalf("interruption: %q", got)
	}
}

func TestInterruptStatus(t *testing.T) {
	rt := newRuntime(t)

	got := runValue(t, rt, fiber.ZipWith(
		fiber.Uninterruptible(fiber.ZipWith(fiber.InterruptStatus(), fiber.Interruptible(fiber.InterruptStatus()),
			func(outer, inner bool) [2]bool { return [2]bool{outer, inner} })),
		fiber.InterruptStatus(),
		func(region [2]bool, after bool) [3]bool { return [3]bool{region[0], region[1], after} },
	))
	if got != [3]bool{false, true, true} {
		t.Fatalf("got %v, want [false true true]", got)
	}
}

func TestUninterruptibleMaskRestore(t *testing.T) {
	rt := newRuntime(t)

	got := runValue(t, rt, fiber.UninterruptibleMask(func(restore fiber.Restore) fiber.Effect[[2]bool] {
		return fiber.ZipWith(fiber.InterruptStatus(), fiber.Restored(restore, fiber.InterruptStatus()),
			func(masked, restored bool) [2]bool { return [2]bool{masked, restored} })
	}))
	if got != [2]bool{false, true} {
		t.Fatalf("got %v, want [false true]", got)
	}
}

func TestForkInheritsInterruptibility(t *testing.T) {
	rt := newRuntime(t)

	got := runValue(t, rt, fiber.Uninterruptible(fiber.FlatMap(fiber.Fork(fiber.InterruptStatus()), (*fiber.Fiber[bool]).Join)))
	if got {
		t.Fatal("child of an uninterruptible region started interruptible")
	}
}
