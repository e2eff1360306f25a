// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"context"
	"log/slog"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// Supervisor observes fiber lifecycles. OnStart and OnEnd fire once per
// fiber. OnEffect, OnSuspend and OnResume fire per interpreter step and
// only when the runtime has tracing enabled.
//
// Callbacks run on the scheduler and must not block. A panicking callback
// is logged as supervisor_panic and does not affect the fiber.
type Supervisor interface {
	OnStart(id, parent ID)
	OnEnd(id ID, exit Exit[kont.Erased])
	OnEffect(id ID, op string)
	OnSuspend(id ID)
	OnResume(id ID)
}

// NoopSupervisor ignores every event. It is the default supervisor.
type NoopSupervisor struct{}

func (NoopSupervisor) OnStart(ID, ID)              {}
func (NoopSupervisor) OnEnd(ID, Exit[kont.Erased]) {}
func (NoopSupervisor) OnEffect(ID, string)         {}
func (NoopSupervisor) OnSuspend(ID)                {}
func (NoopSupervisor) OnResume(ID)                 {}

// And returns a supervisor that notifies a, then b. b is notified even if
// a panics; the panic is propagated afterwards.
func And(a, b Supervisor) Supervisor {
	if _, ok := a.(NoopSupervisor); ok || a == nil {
		if b == nil {
			return NoopSupervisor{}
		}
		return b
	}
	if _, ok := b.(NoopSupervisor); ok || b == nil {
		return a
	}
	return both{a, b}
}

type both struct {
	a, b Supervisor
}

func (s both) OnStart(id, parent ID) {
	defer s.b.OnStart(id, parent)
	s.a.OnStart(id, parent)
}

func (s both) OnEnd(id ID, exit Exit[kont.Erased]) {
	defer s.b.OnEnd(id, exit)
	s.a.OnEnd(id, exit)
}

func (s both) OnEffect(id ID, op string) {
	defer s.b.OnEffect(id, op)
	s.a.OnEffect(id, op)
}

func (s both) OnSuspend(id ID) {
	defer s.b.OnSuspend(id)
	s.a.OnSuspend(id)
}

func (s both) OnResume(id ID) {
	defer s.b.OnResume(id)
	s.a.OnResume(id)
}

// LoggingSupervisor writes fiber lifecycle events using log/slog.
type LoggingSupervisor struct {
	Logger *slog.Logger
}

// NewLoggingSupervisor creates a Supervisor that logs fiber lifecycle
// events to logger. If logger is nil, slog.Default() is used.
func NewLoggingSupervisor(logger *slog.Logger) Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSupervisor{Logger: logger}
}

func (s *LoggingSupervisor) OnStart(id, parent ID) {
	s.Logger.Debug("fiber_start",
		slog.String("fiber_id", id.String()),
		slog.String("parent_id", parent.String()),
	)
}

func (s *LoggingSupervisor) OnEnd(id ID, exit Exit[kont.Erased]) {
	if exit.ok {
		s.Logger.Debug("fiber_end",
			slog.String("fiber_id", id.String()),
		)
		return
	}
	level := slog.LevelError
	if exit.cause.IsInterruptedOnly() {
		level = slog.LevelDebug
	}
	s.Logger.Log(context.Background(), level, "fiber_end",
		slog.String("fiber_id", id.String()),
		slog.String("cause", exit.cause.String()),
	)
}

func (s *LoggingSupervisor) OnEffect(id ID, op string) {
	s.Logger.Debug("fiber_effect",
		slog.String("fiber_id", id.String()),
		slog.String("op", op),
	)
}

func (s *LoggingSupervisor) OnSuspend(id ID) {
	s.Logger.Debug("fiber_suspend", slog.String("fiber_id", id.String()))
}

func (s *LoggingSupervisor) OnResume(id ID) {
	s.Logger.Debug("fiber_resume", slog.String("fiber_id", id.String()))
}

// MetricsSupervisor counts fiber lifecycle events. It is safe to read with
// Snapshot from any goroutine while fibers run.
type MetricsSupervisor struct {
	started     atomix.Uint64
	succeeded   atomix.Uint64
	failed      atomix.Uint64
	interrupted atomix.Uint64
	effects     atomix.Uint64
	suspensions atomix.Uint64
}

// MetricsSnapshot is an immutable snapshot of MetricsSupervisor.
type MetricsSnapshot struct {
	Started     uint64
	Succeeded   uint64
	Failed      uint64
	Interrupted uint64
	Running     uint64
	Effects     uint64
	Suspensions uint64
}

func (m *MetricsSupervisor) OnStart(ID, ID) { m.started.Add(1) }

func (m *MetricsSupervisor) OnEnd(_ ID, exit Exit[kont.Erased]) {
	switch {
	case exit.ok:
		m.succeeded.Add(1)
	case exit.cause.IsInterruptedOnly():
		m.interrupted.Add(1)
	default:
		m.failed.Add(1)
	}
}

func (m *MetricsSupervisor) OnEffect(ID, string) { m.effects.Add(1) }
func (m *MetricsSupervisor) OnSuspend(ID)        { m.suspensions.Add(1) }
func (m *MetricsSupervisor) OnResume(ID)         {}

// Snapshot returns the current counters.
func (m *MetricsSupervisor) Snapshot() MetricsSnapshot {
	started := m.started.Load()
	succeeded := m.succeeded.Load()
	failed := m.failed.Load()
	interrupted := m.interrupted.Load()
	return MetricsSnapshot{
		Started:     started,
		Succeeded:   succeeded,
		Failed:      failed,
		Interrupted: interrupted,
		Running:     started - succeeded - failed - interrupted,
		Effects:     m.effects.Load(),
		Suspensions: m.suspensions.Load(),
	}
}
