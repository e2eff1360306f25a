// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "code.hybscloud.com/kont"

// Exit is the terminal outcome of a fiber: success with a value, or
// failure with a non-empty Cause.
type Exit[A any] struct {
	value A
	cause *Cause
	ok    bool
}

// Succeeded returns a successful exit holding a.
func Succeeded[A any](a A) Exit[A] {
	return Exit[A]{value: a, ok: true}
}

// Failed returns a failed exit holding cause.
func Failed[A any](cause *Cause) Exit[A] {
	return Exit[A]{cause: cause}
}

// IsSuccess reports whether the exit is a success.
func (e Exit[A]) IsSuccess() bool { return e.ok }

// Value returns the success value and true, or zero and false.
func (e Exit[A]) Value() (A, bool) { return e.value, e.ok }

// Cause returns the failure cause, nil on success.
func (e Exit[A]) Cause() *Cause { return e.cause }

// Err returns nil on success, otherwise the cause as a *FailureError.
func (e Exit[A]) Err() error {
	if e.ok {
		return nil
	}
	if e.cause.IsEmpty() {
		return &FailureError{}
	}
	return e.cause.Err()
}

// Either converts the exit into Left(cause) or Right(value).
func (e Exit[A]) Either() kont.Either[*Cause, A] {
	if e.ok {
		return kont.Right[*Cause](e.value)
	}
	return kont.Left[*Cause, A](e.cause)
}

func (e Exit[A]) String() string {
	if e.ok {
		return "Succeeded(" + sprint(e.value) + ")"
	}
	return "Failed(" + e.cause.String() + ")"
}

// MapExit applies f to the success value of e.
func MapExit[A, B any](e Exit[A], f func(A) B) Exit[B] {
	if e.ok {
		return Succeeded(f(e.value))
	}
	return Failed[B](e.cause)
}

// erase widens a typed exit to the interpreter's erased form.
func erase[A any](e Exit[A]) Exit[kont.Erased] {
	if e.ok {
		return Exit[kont.Erased]{value: e.value, ok: true}
	}
	return Exit[kont.Erased]{cause: e.cause}
}

// narrow recovers a typed exit from the erased form. A nil value is read
// as the zero A, following kont's nil completion convention.
func narrow[A any](e Exit[kont.Erased]) Exit[A] {
	if !e.ok {
		return Exit[A]{cause: e.cause}
	}
	return Exit[A]{value: cast[A](e.value), ok: true}
}

func cast[A any](v kont.Erased) A {
	if v == nil {
		var zero A
		return zero
	}
	return v.(A)
}
