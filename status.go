// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"strconv"

	"code.hybscloud.com/kont"
)

// Status is the lifecycle state of a fiber. It is a closed sum:
// [Running], [Finishing], [Done] and [Suspended]. A Suspended status
// wraps the status that was active when the fiber suspended.
type Status interface {
	status()
	String() string
}

// Running is the status of a fiber that is executing or runnable.
type Running struct {
	Interrupting bool
}

// Finishing is the status of a fiber that has an exit value but is still
// draining its mailbox or waiting for its children.
type Finishing struct {
	Interrupting bool
}

// Done is the status of a fiber that has terminated.
type Done struct{}

// Suspended is the status of a fiber waiting at an asynchronous boundary.
type Suspended struct {
	Previous      Status
	Interruptible bool
	Epoch         uint64
	BlockingOn    ID
}

func (Running) status()   {}
func (Finishing) status() {}
func (Done) status()      {}
func (Suspended) status() {}

func (s Running) String() string   { return "Running(" + strconv.FormatBool(s.Interrupting) + ")" }
func (s Finishing) String() string { return "Finishing(" + strconv.FormatBool(s.Interrupting) + ")" }
func (Done) String() string        { return "Done" }
func (s Suspended) String() string {
	return "Suspended(" + s.Previous.String() + ", interruptible=" + strconv.FormatBool(s.Interruptible) +
		", epoch=" + strconv.FormatUint(s.Epoch, 10) + ", blockingOn=" + s.BlockingOn.String() + ")"
}

// isInterrupting walks through Suspended links to the innermost status.
func isInterrupting(s Status) bool {
	for {
		switch v := s.(type) {
		case Running:
			return v.Interrupting
		case Finishing:
			return v.Interrupting
		case Suspended:
			s = v.Previous
		default:
			return false
		}
	}
}

// withInterrupting returns s with the interrupting flag of its innermost
// status replaced by b, rebuilding any Suspended links around it.
func withInterrupting(s Status, b bool) Status {
	switch v := s.(type) {
	case Running:
		return Running{Interrupting: b}
	case Finishing:
		return Finishing{Interrupting: b}
	case Suspended:
		v.Previous = withInterrupting(v.Previous, b)
		return v
	default:
		return s
	}
}

// toFinishing converts the innermost status to Finishing, keeping its
// interrupting flag.
func toFinishing(s Status) Status {
	switch v := s.(type) {
	case Suspended:
		v.Previous = toFinishing(v.Previous)
		return v
	default:
		return Finishing{Interrupting: isInterrupting(s)}
	}
}

// cancellerState tracks the async canceller of the current suspension:
// Empty → Pending → Registered(cancel) → Empty, once per epoch.
type cancellerState uint8

const (
	cancellerEmpty cancellerState = iota
	cancellerPending
	cancellerRegistered
)

// observer is a completion callback registered on a fiber.
type observer struct {
	fn func(Exit[kont.Erased])
}

// fiberState is the mutable state of a fiber. It is written only by the
// interpreter of its own fiber, or by another fiber running on the same
// scheduler drain; exit is set once, when the fiber reaches Done.
type fiberState struct {
	status       Status
	observers    []*observer
	suppressed   *Cause
	interruptors []ID
	canceller    cancellerState
	cancel       instruction
	mailbox      instruction
	exit         *Exit[kont.Erased]
}

func (s *fiberState) isDone() bool { return s.exit != nil }

// interruptorsCause is the parallel composition of one Interruption per
// recorded interruptor.
func (s *fiberState) interruptorsCause() *Cause {
	var c *Cause
	for _, id := range s.interruptors {
		c = c.Both(Interruption(id))
	}
	return c
}

// addInterruptor records id and reports whether it was new.
func (s *fiberState) addInterruptor(id ID) bool {
	if containsID(s.interruptors, id) {
		return false
	}
	s.interruptors = append(s.interruptors, id)
	return true
}

func (s *fiberState) removeObserver(o *observer) {
	for i, x := range s.observers {
		if x == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}
