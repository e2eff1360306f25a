// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"testing"

	"code.hybscloud.com/fiber"
)

func TestIDMonotonic(t *testing.T) {
	rt := newRuntime(t)

	ids := runValue(t, rt, fiber.ForEach([]int{0, 1, 2}, func(int) fiber.Effect[fiber.ID] {
		return fiber.FlatMap(fiber.Fork(fiber.FiberID()), func(f *fiber.Fiber[fiber.ID]) fiber.Effect[fiber.ID] {
			return f.Join()
		})
	}))

	for i := 1; i < len(ids); i++ {
		if ids[i-1].Seq >= ids[i].Seq {
			t.Fatalf("ids not increasing: %v >= %v", ids[i-1], ids[i])
		}
	}
}

func TestIDForkHandleMatchesChild(t *testing.T) {
	rt := newRuntime(t)

	ok := runValue(t, rt, fiber.FlatMap(fiber.Fork(fiber.FiberID()), func(f *fiber.Fiber[fiber.ID]) fiber.Effect[bool] {
		return fiber.Map(f.Join(), func(id fiber.ID) bool { return id == f.ID() })
	}))
	if !ok {
		t.Fatal("child FiberID differs from its handle's ID")
	}
}

func TestIDNone(t *testing.T) {
	if !fiber.None.IsNone() {
		t.Fatal("None.IsNone() = false")
	}
	if got := fiber.None.String(); got != "#none" {
		t.Fatalf("None.String() = %q, want %q", got, "#none")
	}
	rt := newRuntime(t)
	id := runValue(t, rt, fiber.FiberID())
	if id.IsNone() {
		t.Fatal("running fiber has the None ID")
	}
}
