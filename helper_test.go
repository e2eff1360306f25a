// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"code.hybscloud.com/fiber"
)

var errBoom = errors.New("boom")

// newRuntime returns a runtime that is closed when the test ends.
// Runtime logs are discarded unless opts install another logger.
func newRuntime(tb testing.TB, opts ...fiber.Option) *fiber.Runtime {
	tb.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt, err := fiber.New(append([]fiber.Option{fiber.WithLogger(quiet)}, opts...)...)
	if err != nil {
		tb.Fatalf("New: %v", err)
	}
	tb.Cleanup(func() { rt.Close() })
	return rt
}

// runExit runs e on rt and returns its exit. A run that outlives the
// deadline fails the test.
func runExit[A any](tb testing.TB, rt *fiber.Runtime, e fiber.Effect[A]) fiber.Exit[A] {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ex, err := fiber.RunSync(ctx, rt, e)
	if err != nil {
		tb.Fatalf("RunSync: %v", err)
	}
	return ex
}

// runValue runs e on rt and returns its value, failing the test if e
// does not succeed.
func runValue[A any](tb testing.TB, rt *fiber.Runtime, e fiber.Effect[A]) A {
	tb.Helper()
	ex := runExit(tb, rt, e)
	v, ok := ex.Value()
	if !ok {
		tb.Fatalf("got %v, want success", ex)
	}
	return v
}

// gate is a one-shot latch usable from inside fibers: Wait suspends until
// Open is run.
type gate struct {
	resume func(fiber.Effect[struct{}])
}

func (g *gate) Wait() fiber.Effect[struct{}] {
	return fiber.AsyncCallback(func(resume func(fiber.Effect[struct{}])) {
		g.resume = resume
	})
}

func (g *gate) Open() fiber.Effect[struct{}] {
	return fiber.Sync(func() struct{} {
		g.resume(fiber.Unit())
		return struct{}{}
	})
}
