// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/kont"
)

// Derived combinators. Everything here is expressed with the primitives
// in effect.go; none of it is known to the interpreter.

// As runs e and replaces its value with b.
func As[A, B any](e Effect[A], b B) Effect[B] {
	return Map(e, func(A) B { return b })
}

// Then runs e, discards its value, and continues with next.
func Then[A, B any](e Effect[A], next Effect[B]) Effect[B] {
	n := next.instruction()
	return Effect[B]{op: &chainOp{
		eff: e.instruction(),
		k:   func(kont.Erased) instruction { return n },
	}}
}

// Tap runs f's effect on the value of e and keeps e's value.
func Tap[A, B any](e Effect[A], f func(A) Effect[B]) Effect[A] {
	return FlatMap(e, func(a A) Effect[A] { return As(f(a), a) })
}

// ZipWith runs a then b sequentially and combines their values with f.
func ZipWith[A, B, C any](a Effect[A], b Effect[B], f func(A, B) C) Effect[C] {
	return FlatMap(a, func(x A) Effect[C] {
		return Map(b, func(y B) C { return f(x, y) })
	})
}

// MatchError is Match restricted to expected failures. Causes without an
// expected failure (defects, pure interruption) pass through unhandled.
func MatchError[A, B any](e Effect[A], onError func(error) Effect[B], onSuccess func(A) Effect[B]) Effect[B] {
	return Match(e, func(c *Cause) Effect[B] {
		if errs := c.Failures(); len(errs) > 0 {
			return onError(errs[0])
		}
		return FailCause[B](c)
	}, onSuccess)
}

// CatchAll recovers from expected failures of e with h.
func CatchAll[A any](e Effect[A], h func(error) Effect[A]) Effect[A] {
	return MatchError(e, h, Succeed[A])
}

// CatchAllCause recovers from every failure of e with h.
func CatchAllCause[A any](e Effect[A], h func(*Cause) Effect[A]) Effect[A] {
	return Match(e, h, Succeed[A])
}

// OrElse runs that when e fails with an expected failure.
func OrElse[A any](e, that Effect[A]) Effect[A] {
	return CatchAll(e, func(error) Effect[A] { return that })
}

// Either surfaces the expected failure of e as Left.
func Either[A any](e Effect[A]) Effect[kont.Either[error, A]] {
	return MatchError(e,
		func(err error) Effect[kont.Either[error, A]] { return Succeed(kont.Left[error, A](err)) },
		func(a A) Effect[kont.Either[error, A]] { return Succeed(kont.Right[error](a)) },
	)
}

// Exited runs e and completes with its Exit. The result never fails.
func Exited[A any](e Effect[A]) Effect[Exit[A]] {
	return Match(e,
		func(c *Cause) Effect[Exit[A]] { return Succeed(Failed[A](c)) },
		func(a A) Effect[Exit[A]] { return Succeed(Succeeded(a)) },
	)
}

// FromExit returns an effect that completes as ex did.
func FromExit[A any](ex Exit[A]) Effect[A] {
	if ex.ok {
		return Succeed(ex.value)
	}
	return FailCause[A](ex.cause)
}

// OnInterrupt runs cleanup if e is interrupted.
func OnInterrupt[A, F any](e Effect[A], cleanup Effect[F]) Effect[A] {
	return UninterruptibleMask(func(r Restore) Effect[A] {
		return Match(Restored(r, e),
			func(c *Cause) Effect[A] {
				if c.IsInterrupted() {
					return composeFinal[A](c, cleanup)
				}
				return FailCause[A](c)
			},
			Succeed[A],
		)
	})
}

// Bracket acquires a resource uninterruptibly, uses it, and releases it
// uninterruptibly with the outcome of use, whatever that outcome is.
// A release failure is appended to a failed use with Then.
func Bracket[R, A, F any](acquire Effect[R], release func(R, Exit[A]) Effect[F], use func(R) Effect[A]) Effect[A] {
	return UninterruptibleMask(func(r Restore) Effect[A] {
		return FlatMap(acquire, func(res R) Effect[A] {
			return FlatMap(Exited(Restored(r, Defer(func() Effect[A] { return use(res) }))), func(ex Exit[A]) Effect[A] {
				if ex.ok {
					return Then(release(res, ex), Succeed(ex.value))
				}
				return composeFinal[A](ex.cause, release(res, ex))
			})
		})
	})
}

// composeFinal runs fin and then fails with c, or with c Then fin's cause.
func composeFinal[A, F any](c *Cause, fin Effect[F]) Effect[A] {
	return Match(fin,
		func(c2 *Cause) Effect[A] { return FailCause[A](c.Then(c2)) },
		func(F) Effect[A] { return FailCause[A](c) },
	)
}

// Retry runs e, retrying up to n more times while it fails with an
// expected failure.
func Retry[A any](e Effect[A], n int) Effect[A] {
	if n <= 0 {
		return e
	}
	return CatchAll(e, func(error) Effect[A] { return Retry(e, n-1) })
}

// Repeat runs e once, then n more times, completing with the last value.
func Repeat[A any](e Effect[A], n int) Effect[A] {
	if n <= 0 {
		return e
	}
	return Then(e, Defer(func() Effect[A] { return Repeat(e, n-1) }))
}

// ForEach runs f on each element of as in order and collects the values.
func ForEach[A, B any](as []A, f func(A) Effect[B]) Effect[[]B] {
	return Defer(func() Effect[[]B] {
		out := make([]B, 0, len(as))
		return Loop(0, func(i int) Effect[kont.Either[int, []B]] {
			if i == len(as) {
				return Succeed(kont.Right[int](out))
			}
			return Map(f(as[i]), func(b B) kont.Either[int, []B] {
				out = append(out, b)
				return kont.Left[int, []B](i + 1)
			})
		})
	})
}
