// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/kont"
)

// refCell is the erased identity of a fiber-local value. Its value lives
// in each fiber's refs map; a fiber without an entry sees initial.
type refCell struct {
	initial kont.Erased
	fork    func(kont.Erased) kont.Erased
	join    func(parent, child kont.Erased) kont.Erased

	// internal cells are neither copied into children nor joined back,
	// nor listed by Refs.
	internal bool
}

// forkValue returns the child's copy of v and whether the child gets one.
func (r *refCell) forkValue(v kont.Erased) (kont.Erased, bool) {
	if r.internal {
		return nil, false
	}
	return r.fork(v), true
}

// forkScopeCell holds the OverrideForkScope scope of a fiber.
var forkScopeCell = &refCell{internal: true}

// Ref is a fiber-local variable. Every fiber sees its own value: a child
// starts with the fork hook applied to its parent's value at fork time,
// and joining a child merges the child's value back with the join hook.
// Refs are compared by identity.
type Ref[A any] struct {
	cell *refCell
}

// NewRef returns a Ref whose value is initial in every fiber that has not
// set it. Children inherit their parent's value; joining a child adopts
// the child's value.
func NewRef[A any](initial A) *Ref[A] {
	return NewRefWith(initial, func(a A) A { return a }, func(_, child A) A { return child })
}

// NewRefWith is NewRef with explicit fork and join hooks.
func NewRefWith[A any](initial A, fork func(A) A, join func(parent, child A) A) *Ref[A] {
	return &Ref[A]{cell: &refCell{
		initial: initial,
		fork:    func(v kont.Erased) kont.Erased { return fork(cast[A](v)) },
		join:    func(p, c kont.Erased) kont.Erased { return join(cast[A](p), cast[A](c)) },
	}}
}

// Initial returns the value fibers see before setting the Ref.
func (r *Ref[A]) Initial() A { return cast[A](r.cell.initial) }

// Get returns the running fiber's value.
func (r *Ref[A]) Get() Effect[A] {
	return ModifyRef(r, func(a A) (A, A) { return a, a })
}

// Set replaces the running fiber's value.
func (r *Ref[A]) Set(a A) Effect[struct{}] {
	return ModifyRef(r, func(A) (struct{}, A) { return struct{}{}, a })
}

// Update applies f to the running fiber's value.
func (r *Ref[A]) Update(f func(A) A) Effect[struct{}] {
	return ModifyRef(r, func(a A) (struct{}, A) { return struct{}{}, f(a) })
}

// Delete forgets the running fiber's value, so it sees the initial value
// again.
func (r *Ref[A]) Delete() Effect[struct{}] {
	return Effect[struct{}]{op: &refDeleteOp{ref: r.cell}}
}

// ModifyRef replaces the running fiber's value of r with the second
// result of f and completes with the first.
func ModifyRef[A, B any](r *Ref[A], f func(A) (B, A)) Effect[B] {
	return Effect[B]{op: &refModifyOp{ref: r.cell, f: func(v kont.Erased) (kont.Erased, kont.Erased) {
		b, a := f(cast[A](v))
		return b, a
	}}}
}

// Locally runs e with r bound to a, restoring the previous value when e
// completes, however it completes.
func Locally[A, B any](r *Ref[A], a A, e Effect[B]) Effect[B] {
	return Effect[B]{op: &refLocallyOp{ref: r.cell, value: a, eff: e.instruction()}}
}

// RefSnapshot is an immutable copy of every fiber-local value a fiber has
// set.
type RefSnapshot struct {
	values map[*refCell]kont.Erased
}

// Len returns the number of values in the snapshot.
func (s RefSnapshot) Len() int { return len(s.values) }

// Refs returns a snapshot of the running fiber's local values.
func Refs() Effect[RefSnapshot] {
	return Effect[RefSnapshot]{op: &refGetAllOp{k: func(m map[*refCell]kont.Erased) instruction {
		return &succeedOp{value: RefSnapshot{values: m}}
	}}}
}

// LookupRef returns the value of r in s, and whether the fiber had set it.
func LookupRef[A any](s RefSnapshot, r *Ref[A]) (A, bool) {
	v, ok := s.values[r.cell]
	if !ok {
		return r.Initial(), false
	}
	return cast[A](v), true
}
