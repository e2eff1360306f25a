// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"code.hybscloud.com/fiber"
	"code.hybscloud.com/kont"
)

// lifecycle forks a succeeding, a failing and a never-ending child,
// observes all three and completes.
func lifecycle() fiber.Effect[int] {
	return fiber.FlatMap(fiber.Fork(fiber.Succeed(1)), func(ok *fiber.Fiber[int]) fiber.Effect[int] {
		return fiber.FlatMap(fiber.Fork(fiber.Fail[int](errBoom)), func(bad *fiber.Fiber[int]) fiber.Effect[int] {
			return fiber.FlatMap(fiber.Fork(fiber.Never[int]()), func(stuck *fiber.Fiber[int]) fiber.Effect[int] {
				return fiber.Then(bad.Await(), fiber.Then(stuck.Interrupt(), ok.Join()))
			})
		})
	})
}

func TestMetricsSupervisor(t *testing.T) {
	m := &fiber.MetricsSupervisor{}
	rt := newRuntime(t, fiber.WithSupervisor(m))

	runValue(t, rt, lifecycle())
	got := m.Snapshot()
	want := fiber.MetricsSnapshot{Started: 4, Succeeded: 2, Failed: 1, Interrupted: 1}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMetricsSupervisorTracing(t *testing.T) {
	m := &fiber.MetricsSupervisor{}
	rt := newRuntime(t, fiber.WithSupervisor(m), fiber.WithTracing(true))

	runValue(t, rt, lifecycle())
	got := m.Snapshot()
	if got.Effects == 0 {
		t.Fatal("no effects counted with tracing enabled")
	}
	if got.Suspensions == 0 {
		t.Fatal("no suspensions counted with tracing enabled")
	}
}

func TestSupervisedRegion(t *testing.T) {
	rt := newRuntime(t)
	m := &fiber.MetricsSupervisor{}

	runValue(t, rt, fiber.Then(
		fiber.Supervised(m, fiber.FlatMap(fiber.Fork(fiber.Succeed(1)), (*fiber.Fiber[int]).Join)),
		fiber.FlatMap(fiber.Fork(fiber.Succeed(2)), (*fiber.Fiber[int]).Join),
	))
	got := m.Snapshot()
	if got.Started != 1 || got.Succeeded != 1 {
		t.Fatalf("got %+v, want only the child forked inside the region", got)
	}
}

func TestAndSupervisor(t *testing.T) {
	a, b := &fiber.MetricsSupervisor{}, &fiber.MetricsSupervisor{}
	rt := newRuntime(t, fiber.WithSupervisor(fiber.And(a, b)))

	runValue(t, rt, lifecycle())
	if a.Snapshot() != b.Snapshot() {
		t.Fatalf("supervisors diverged: %+v vs %+v", a.Snapshot(), b.Snapshot())
	}
	if a.Snapshot().Started != 4 {
		t.Fatalf("Started = %d, want 4", a.Snapshot().Started)
	}
}

func TestLoggingSupervisor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rt := newRuntime(t, fiber.WithSupervisor(fiber.NewLoggingSupervisor(logger)))

	runValue(t, rt, lifecycle())
	out := buf.String()
	for _, msg := range []string{`"msg":"fiber_start"`, `"msg":"fiber_end"`, `"parent_id":"#none"`} {
		if !strings.Contains(out, msg) {
			t.Fatalf("log lacks %s:\n%s", msg, out)
		}
	}
	if n := strings.Count(out, `"level":"ERROR","msg":"fiber_end"`); n != 1 {
		t.Fatalf("%d error-level fiber_end records, want 1 (interruptions are not errors):\n%s", n, out)
	}
}

// panicky panics on every lifecycle event.
type panicky struct{ fiber.NoopSupervisor }

func (panicky) OnStart(fiber.ID, fiber.ID)              { panic("start") }
func (panicky) OnEnd(fiber.ID, fiber.Exit[kont.Erased]) { panic("end") }

func TestPanickingSupervisor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	rt := newRuntime(t, fiber.WithSupervisor(panicky{}), fiber.WithLogger(logger))

	v := runValue(t, rt, fiber.FlatMap(fiber.Fork(fiber.Succeed(2)), (*fiber.Fiber[int]).Join))
	if v != 2 {
		t.Fatalf("got %d, want 2", v)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"supervisor_panic"`, `"event":"start"`, `"event":"end"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log lacks %s:\n%s", want, out)
		}
	}
}

// lifecycleLog records events in a plain map. Callbacks run on the
// scheduler, one at a time.
type lifecycleLog struct {
	fiber.NoopSupervisor
	events map[fiber.ID][]string
}

func (l *lifecycleLog) OnStart(id, _ fiber.ID) { l.events[id] = append(l.events[id], "start") }

func (l *lifecycleLog) OnEnd(id fiber.ID, _ fiber.Exit[kont.Erased]) {
	l.events[id] = append(l.events[id], "end")
}

func TestSupervisorCallbacksOnScheduler(t *testing.T) {
	l := &lifecycleLog{events: make(map[fiber.ID][]string)}
	rt := newRuntime(t, fiber.WithSupervisor(l))

	const n = 16
	fibers := make([]*fiber.Fiber[int], n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fibers[i] = fiber.Run(rt, fiber.Then(fiber.Yield(), fiber.Succeed(i)))
		}()
	}
	wg.Wait()
	for _, f := range fibers {
		<-f.Done()
	}
	for _, f := range fibers {
		if got := l.events[f.ID()]; !slices.Equal(got, []string{"start", "end"}) {
			t.Fatalf("fiber %v events %v, want [start end]", f.ID(), got)
		}
	}
}
