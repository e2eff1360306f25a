// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"errors"
	"reflect"
	"strings"
)

type causeKind uint8

const (
	causeFail causeKind = iota + 1
	causeDie
	causeInterrupt
	causeThen
	causeBoth
)

// Cause is the full account of why a fiber failed. It is a tree whose
// leaves are expected failures (Failure), defects (Defect) and
// interruptions (Interruption), composed sequentially with [Cause.Then]
// and in parallel with [Cause.Both].
//
// The nil *Cause is the empty cause. All methods accept a nil receiver.
// Composition drops empty operands but never merges or collapses leaves,
// so interruption information survives any amount of composition.
type Cause struct {
	kind   causeKind
	err    error
	defect any
	id     ID
	left   *Cause
	right  *Cause
}

// Failure returns a cause holding the expected failure err.
func Failure(err error) *Cause {
	return &Cause{kind: causeFail, err: err}
}

// Defect returns a cause holding the unexpected defect v.
func Defect(v any) *Cause {
	return &Cause{kind: causeDie, defect: v}
}

// Interruption returns a cause recording an interruption requested by id.
func Interruption(id ID) *Cause {
	return &Cause{kind: causeInterrupt, id: id}
}

// Then composes c and that sequentially: c happened, then that happened.
func (c *Cause) Then(that *Cause) *Cause {
	if c.IsEmpty() {
		return that
	}
	if that.IsEmpty() {
		return c
	}
	return &Cause{kind: causeThen, left: c, right: that}
}

// Both composes c and that in parallel: both happened concurrently.
func (c *Cause) Both(that *Cause) *Cause {
	if c.IsEmpty() {
		return that
	}
	if that.IsEmpty() {
		return c
	}
	return &Cause{kind: causeBoth, left: c, right: that}
}

// IsEmpty reports whether c holds no failure at all.
func (c *Cause) IsEmpty() bool { return c == nil }

// leaves calls fn for each leaf of c, left to right.
// The walk is iterative so deeply nested causes cannot overflow the stack.
func (c *Cause) leaves(fn func(*Cause) bool) {
	if c == nil {
		return
	}
	stack := []*Cause{c}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch n.kind {
		case causeThen, causeBoth:
			stack = append(stack, n.right, n.left)
		default:
			if !fn(n) {
				return
			}
		}
	}
}

// Failures returns the expected failures of c, left to right.
func (c *Cause) Failures() []error {
	var out []error
	c.leaves(func(n *Cause) bool {
		if n.kind == causeFail {
			out = append(out, n.err)
		}
		return true
	})
	return out
}

// Defects returns the defects of c, left to right.
func (c *Cause) Defects() []any {
	var out []any
	c.leaves(func(n *Cause) bool {
		if n.kind == causeDie {
			out = append(out, n.defect)
		}
		return true
	})
	return out
}

// Interruptors returns the distinct fibers that interrupted, in order of
// first appearance.
func (c *Cause) Interruptors() []ID {
	var out []ID
	c.leaves(func(n *Cause) bool {
		if n.kind == causeInterrupt && !containsID(out, n.id) {
			out = append(out, n.id)
		}
		return true
	})
	return out
}

// IsInterrupted reports whether c contains at least one interruption.
func (c *Cause) IsInterrupted() bool {
	found := false
	c.leaves(func(n *Cause) bool {
		found = n.kind == causeInterrupt
		return !found
	})
	return found
}

// IsInterruptedOnly reports whether c contains interruptions and nothing
// else.
func (c *Cause) IsInterruptedOnly() bool {
	if c.IsEmpty() {
		return false
	}
	only := true
	c.leaves(func(n *Cause) bool {
		only = n.kind == causeInterrupt
		return only
	})
	return only
}

// IsFailure reports whether c contains an expected failure.
func (c *Cause) IsFailure() bool {
	found := false
	c.leaves(func(n *Cause) bool {
		found = n.kind == causeFail
		return !found
	})
	return found
}

// IsDie reports whether c contains a defect.
func (c *Cause) IsDie() bool {
	found := false
	c.leaves(func(n *Cause) bool {
		found = n.kind == causeDie
		return !found
	})
	return found
}

// Contains reports whether every leaf of that also appears in c.
// The empty cause is contained in every cause.
func (c *Cause) Contains(that *Cause) bool {
	if that.IsEmpty() || c == that {
		return true
	}
	var mine []*Cause
	c.leaves(func(n *Cause) bool {
		mine = append(mine, n)
		return true
	})
	all := true
	that.leaves(func(n *Cause) bool {
		all = false
		for _, m := range mine {
			if leafEqual(m, n) {
				all = true
				break
			}
		}
		return all
	})
	return all
}

func leafEqual(a, b *Cause) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case causeFail:
		return errors.Is(a.err, b.err)
	case causeDie:
		return reflect.DeepEqual(a.defect, b.defect)
	default:
		return a.id == b.id
	}
}

// StripFailures returns c without its expected failures, keeping defects
// and interruptions in their original shape.
func (c *Cause) StripFailures() *Cause {
	if c == nil {
		return nil
	}
	switch c.kind {
	case causeFail:
		return nil
	case causeThen:
		return c.left.StripFailures().Then(c.right.StripFailures())
	case causeBoth:
		return c.left.StripFailures().Both(c.right.StripFailures())
	default:
		return c
	}
}

// Squash collapses c into a single error. The first expected failure wins,
// then the first defect, then interruption.
func (c *Cause) Squash() error {
	if c.IsEmpty() {
		return nil
	}
	if errs := c.Failures(); len(errs) > 0 {
		return errs[0]
	}
	if ds := c.Defects(); len(ds) > 0 {
		if err, ok := ds[0].(error); ok {
			return err
		}
		return &FailureError{Cause: c}
	}
	return ErrInterrupted
}

// Err returns c as an error, or nil when c is empty.
func (c *Cause) Err() error {
	if c.IsEmpty() {
		return nil
	}
	return &FailureError{Cause: c}
}

// String renders the tree, e.g. "Then(Fail(boom), Interrupt(#3))".
func (c *Cause) String() string {
	if c.IsEmpty() {
		return "Empty"
	}
	var b strings.Builder
	c.render(&b)
	return b.String()
}

func (c *Cause) render(b *strings.Builder) {
	switch c.kind {
	case causeFail:
		b.WriteString("Fail(")
		if c.err != nil {
			b.WriteString(c.err.Error())
		} else {
			b.WriteString("<nil>")
		}
		b.WriteByte(')')
	case causeDie:
		b.WriteString("Die(")
		b.WriteString(sprint(c.defect))
		b.WriteByte(')')
	case causeInterrupt:
		b.WriteString("Interrupt(")
		b.WriteString(c.id.String())
		b.WriteByte(')')
	case causeThen, causeBoth:
		if c.kind == causeThen {
			b.WriteString("Then(")
		} else {
			b.WriteString("Both(")
		}
		c.left.render(b)
		b.WriteString(", ")
		c.right.render(b)
		b.WriteByte(')')
	}
}

func containsID(ids []ID, id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
