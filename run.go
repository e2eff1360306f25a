// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"context"
)

// Run starts e on a new top-level fiber and returns its handle without
// waiting. If the fiber fails and nothing awaits it, the failure is
// reported by the runtime.
func Run[A any](rt *Runtime, e Effect[A]) *Fiber[A] {
	return &Fiber[A]{ctx: rt.start(e.instruction(), nil)}
}

// RunSync starts e on a new top-level fiber and blocks until it completes.
// If ctx ends first, the fiber is interrupted and ctx.Err() is returned
// without waiting for it. Failures are returned, never reported.
//
// RunSync must not be called from inside a fiber of rt: the fiber would
// wait on the scheduler it is blocking.
func RunSync[A any](ctx context.Context, rt *Runtime, e Effect[A]) (Exit[A], error) {
	f := &Fiber[A]{ctx: rt.start(e.instruction(), func(*Cause) {})}
	ex, err := f.Wait(ctx)
	if err != nil {
		f.UnsafeInterrupt()
	}
	return ex, err
}
