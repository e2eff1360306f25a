// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"weak"
)

// Scope is the structured-concurrency owner of forked fibers. A child
// registered in a local scope is interrupted when the scope's fiber
// completes; a child in the global scope outlives its parent.
type Scope interface {
	// FiberID returns the ID of the owning fiber, or None for the global
	// scope.
	FiberID() ID

	// add registers child and reports whether the scope could accept it.
	add(child *fiberContext) bool
}

type globalScope struct{}

func (globalScope) FiberID() ID            { return None }
func (globalScope) add(*fiberContext) bool { return true }
func (globalScope) String() string         { return "GlobalScope" }

// GlobalScope returns the scope of daemon fibers. It never rejects a child
// and never interrupts one.
func GlobalScope() Scope { return globalScope{} }

// localScope is the scope owned by a single fiber. The owner is held
// weakly: a child never keeps its parent alive.
type localScope struct {
	id    ID
	owner weak.Pointer[fiberContext]
}

func (s *localScope) FiberID() ID { return s.id }

// add delivers the child to the owner's mailbox. It fails once the owner
// has completed or been collected.
func (s *localScope) add(child *fiberContext) bool {
	owner := s.owner.Value()
	if owner == nil || owner.state.isDone() {
		return false
	}
	owner.deliver(owner.addChild(child))
	return true
}

func (s *localScope) String() string { return "LocalScope(" + s.id.String() + ")" }
