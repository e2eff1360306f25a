// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"context"
	"log/slog"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
	"github.com/google/uuid"
)

// Runtime owns a scheduler, a timer service and the defaults every fiber
// it runs starts with. All fibers of a Runtime interleave on its single
// scheduler; separate Runtimes are independent.
type Runtime struct {
	id         uuid.UUID
	cfg        Config
	logger     *slog.Logger
	sched      *Scheduler
	clock      *clock
	supervisor Supervisor
	env        kont.Erased
	report     func(ID, *Cause)

	ctx    context.Context
	cancel context.CancelFunc
	closed atomix.Uint32
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(rt *Runtime) { rt.cfg = cfg }
}

// WithLogger sets the logger for runtime events and unobserved failures.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = logger }
}

// WithSupervisor sets the supervisor of every top-level fiber.
func WithSupervisor(sup Supervisor) Option {
	return func(rt *Runtime) { rt.supervisor = sup }
}

// WithEnvironment sets the environment top-level fibers start with.
func WithEnvironment(env any) Option {
	return func(rt *Runtime) { rt.env = env }
}

// WithFailureReporter replaces the logging of fibers that fail while
// nothing observes them.
func WithFailureReporter(report func(ID, *Cause)) Option {
	return func(rt *Runtime) { rt.report = report }
}

// WithMaxOpCount sets Config.MaxOpCount.
func WithMaxOpCount(n int) Option {
	return func(rt *Runtime) { rt.cfg.MaxOpCount = n }
}

// WithTracing sets Config.Tracing.
func WithTracing(on bool) Option {
	return func(rt *Runtime) { rt.cfg.Tracing = on }
}

// New creates a Runtime. Options are applied in order over DefaultConfig.
func New(opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		id:         uuid.New(),
		cfg:        DefaultConfig(),
		logger:     slog.Default(),
		supervisor: NoopSupervisor{},
	}
	for _, opt := range opts {
		opt(rt)
	}
	if err := rt.cfg.Validate(); err != nil {
		return nil, err
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	if rt.supervisor == nil {
		rt.supervisor = NoopSupervisor{}
	}
	rt.logger = rt.logger.With(slog.String("runtime_id", rt.id.String()))
	rt.ctx, rt.cancel = context.WithCancel(context.Background())
	rt.clock = newClock(rt.cfg.TimerQueueCapacity)
	rt.sched = NewScheduler()
	rt.sched.onPanic = func(v any, stack []byte) {
		rt.logger.Error("scheduler_panic",
			slog.Any("panic", v),
			slog.String("stack", string(stack)),
		)
	}
	return rt, nil
}

// ID returns the runtime's unique identity, also attached to its logs.
func (rt *Runtime) ID() uuid.UUID { return rt.id }

// Config returns the runtime's configuration.
func (rt *Runtime) Config() Config { return rt.cfg }

// Scheduler returns the runtime's scheduler.
func (rt *Runtime) Scheduler() *Scheduler { return rt.sched }

// Close stops the timer service and cancels the contexts of Blocking
// effects. Fibers started afterwards fail with ErrRuntimeClosed. Fibers
// sleeping at Close never wake; interrupt them first.
func (rt *Runtime) Close() error {
	if !rt.closed.CompareAndSwap(0, 1) {
		return ErrRuntimeClosed
	}
	rt.cancel()
	rt.clock.close()
	rt.logger.Debug("runtime_closed")
	return nil
}

// start creates and schedules a top-level fiber.
func (rt *Runtime) start(eff instruction, report func(*Cause)) *fiberContext {
	if rt.closed.Load() != 0 {
		eff = failWith(Failure(ErrRuntimeClosed))
	}
	f := newFiberContext(rt, nil, make(map[*refCell]kont.Erased), report)
	rt.sched.Submit(func() {
		f.notify("start", func(s Supervisor) { s.OnStart(f.id, None) })
		f.evaluateNow(eff)
	})
	return f
}

// reportFailure handles a fiber that failed while nothing observed it.
func (rt *Runtime) reportFailure(id ID, cause *Cause) {
	if rt.report != nil {
		rt.report(id, cause)
		return
	}
	if !rt.cfg.ReportFailures {
		return
	}
	rt.logger.Error("fiber_failure",
		slog.String("fiber_id", id.String()),
		slog.String("cause", cause.String()),
	)
}
