// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/iox"
)

// Exec runs e to completion on rt and returns its value, or the failure as
// a *FailureError. The calling goroutine polls the fiber with adaptive
// backoff (iox.Backoff) instead of parking on a channel, which suits
// short effects driven from a proactor or event loop.
func Exec[A any](rt *Runtime, e Effect[A]) (A, error) {
	f := &Fiber[A]{ctx: rt.start(e.instruction(), func(*Cause) {})}
	return ExecFiber(f)
}

// ExecFiber waits for f with adaptive backoff and returns its value or
// failure.
func ExecFiber[A any](f *Fiber[A]) (A, error) {
	var bo iox.Backoff
	for {
		ex, err := f.Result()
		if err == nil {
			if v, ok := ex.Value(); ok {
				return v, nil
			}
			var zero A
			return zero, ex.Err()
		}
		bo.Wait()
	}
}
