// Package engine wires all conduct subsystems together: the node
// registry, record store, event bus, extension registry, middleware
// chain, and the scheduler core.
//
// This package exists to break the import cycle: the root conduct
// package defines the shared vocabulary (imported by node, record,
// event) and so cannot import those packages back. The engine package
// sits above all subsystem packages and below the application layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmech/conduct"
	"github.com/flowmech/conduct/admission"
	"github.com/flowmech/conduct/backoff"
	"github.com/flowmech/conduct/event"
	"github.com/flowmech/conduct/ext"
	"github.com/flowmech/conduct/id"
	mw "github.com/flowmech/conduct/middleware"
	"github.com/flowmech/conduct/node"
	"github.com/flowmech/conduct/observability"
	"github.com/flowmech/conduct/record"
	"github.com/flowmech/conduct/sched"
)

// extHooks adapts *ext.Registry to satisfy sched.Hooks. This breaks the
// import cycle: sched defines the interface, ext.Registry provides the
// implementation, and the engine layer plugs them together.
type extHooks struct {
	r *ext.Registry
}

func (a *extHooks) ActionDispatched(ctx context.Context, inv *node.Invocation) {
	a.r.EmitActionDispatched(ctx, inv)
}

func (a *extHooks) ActionCompleted(ctx context.Context, inv *node.Invocation, res *node.Result, elapsed time.Duration) {
	a.r.EmitActionCompleted(ctx, inv, res, elapsed)
}

func (a *extHooks) ActionInterrupted(ctx context.Context, inv *node.Invocation, res *node.Result) {
	a.r.EmitActionInterrupted(ctx, inv, res)
}

func (a *extHooks) ActionErrored(ctx context.Context, inv *node.Invocation, res *node.Result) {
	a.r.EmitActionErrored(ctx, inv, res)
}

func (a *extHooks) ExecutionCompleted(ctx context.Context, execID conduct.ExecutionID) {
	a.r.EmitExecutionCompleted(ctx, execID)
}

func (a *extHooks) ExecutionStopped(ctx context.Context, execID conduct.ExecutionID) {
	a.r.EmitExecutionStopped(ctx, execID)
}

// Engine is the top-level façade over the scheduler and its
// collaborators. Use New to create one.
type Engine struct {
	cfg        conduct.Config
	logger     *slog.Logger
	store      record.Store
	resolver   node.Resolver
	registry   *node.Registry
	extensions *ext.Registry
	bus        *event.Bus
	scheduler  *sched.Scheduler
	bo         backoff.Strategy
	mws        []mw.Middleware
	pendingExt []ext.Extension

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the execution record store. Required.
func WithStore(s record.Store) Option {
	return func(eng *Engine) { eng.store = s }
}

// WithResolver sets a custom node resolver. When unset, the engine's
// built-in registry is used and nodes are registered via Register.
func WithResolver(r node.Resolver) Option {
	return func(eng *Engine) { eng.resolver = r }
}

// WithConfig sets the engine configuration. Defaults to
// conduct.DefaultConfig().
func WithConfig(cfg conduct.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithLogger sets a custom logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pendingExt = append(eng.pendingExt, e) }
}

// WithMiddleware appends middleware after the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithBackoff sets the backoff strategy for record append retries.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithTracerProvider sets a custom OTel TracerProvider. When set, the
// tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. When set, both the
// metrics middleware and the observability extension use this provider
// instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New creates a fully wired Engine. A record store is required; every
// other collaborator has a working default.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		cfg:      conduct.DefaultConfig(),
		logger:   slog.Default(),
		registry: node.NewRegistry(),
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		return nil, conduct.ErrNoStore
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	for _, e := range eng.pendingExt {
		eng.extensions.Register(e)
	}
	if eng.resolver == nil {
		eng.resolver = eng.registry
	}
	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	// Record appends retry on transient failure; history is the only
	// durable trace of an execution.
	store := record.NewRetry(eng.store,
		record.WithStrategy(eng.bo),
		record.WithLogger(eng.logger),
	)

	eng.bus = event.NewBus(
		event.WithBuffer(eng.cfg.EventBuffer),
		event.WithLogger(eng.logger),
	)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/flowmech/conduct")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/flowmech/conduct")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/flowmech/conduct/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	allMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.cfg.ActionTimeout),
	}
	allMws = append(allMws, eng.mws...)

	schedOpts := []sched.Option{
		sched.WithLogger(eng.logger),
		sched.WithHooks(&extHooks{r: eng.extensions}),
		sched.WithErrorPolicy(eng.cfg.ErrorPolicy),
		sched.WithMiddleware(allMws...),
	}
	if eng.cfg.MaxInFlight > 0 || eng.cfg.DispatchRate > 0 {
		schedOpts = append(schedOpts, sched.WithAdmission(admission.NewManager(admission.Config{
			MaxInFlight: eng.cfg.MaxInFlight,
			Rate:        eng.cfg.DispatchRate,
			Burst:       eng.cfg.DispatchBurst,
		})))
	}
	eng.scheduler = sched.New(eng.resolver, store, eng.bus, schedOpts...)

	return eng, nil
}

// Register binds a handler to a node identifier on the engine's
// built-in registry.
func (eng *Engine) Register(nodeID conduct.NodeID, h node.Handler) {
	eng.registry.Register(nodeID, h)
}

// RegisterNode registers a typed node definition with the engine.
func RegisterNode[T any](eng *Engine, def *node.Definition[T]) error {
	return node.RegisterDefinition(eng.registry, def)
}

// AddAction appends a dispatch request to an execution's pending queue.
func (eng *Engine) AddAction(execID conduct.ExecutionID, nodeID conduct.NodeID) error {
	return eng.scheduler.AddAction(sched.Request{ExecutionID: execID, NodeID: nodeID})
}

// Run triggers a drain cycle for the execution. Call it once after
// seeding the queue with AddAction; the scheduler re-enters it after
// every completion.
func (eng *Engine) Run(execID conduct.ExecutionID) {
	eng.scheduler.Run(sched.Trigger{ExecutionID: execID})
}

// Start seeds an execution with a single entry node and kicks off the
// drain. Equivalent to AddAction followed by Run.
func (eng *Engine) Start(execID conduct.ExecutionID, entry conduct.NodeID) error {
	if err := eng.AddAction(execID, entry); err != nil {
		return err
	}
	eng.Run(execID)
	return nil
}

// Resume re-enters an interrupted node under its original action
// identity.
func (eng *Engine) Resume(execID conduct.ExecutionID, nodeID conduct.NodeID, actionID id.ActionID) error {
	return eng.scheduler.Resume(sched.ResumeRequest{
		ExecutionID: execID,
		NodeID:      nodeID,
		ActionID:    actionID,
	})
}

// Stop aborts an execution, dropping queued work and cancelling
// in-flight actions.
func (eng *Engine) Stop(execID conduct.ExecutionID) error {
	return eng.scheduler.Stop(execID)
}

// Subscribe registers an event subscription for the given kinds. An
// empty kind list subscribes to all lifecycle events.
func (eng *Engine) Subscribe(kinds ...event.Kind) *event.Subscription {
	return eng.bus.Subscribe(kinds...)
}

// Close gracefully shuts the engine down: the scheduler stops accepting
// work and waits for in-flight actions up to the configured shutdown
// timeout, extensions get their shutdown hook, and the event bus closes.
func (eng *Engine) Close(ctx context.Context) error {
	if eng.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.cfg.ShutdownTimeout)
		defer cancel()
	}

	err := eng.scheduler.Close(ctx)
	eng.extensions.EmitShutdown(ctx)
	eng.bus.Close()
	if err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}
	return nil
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the engine's built-in node registry.
func (eng *Engine) Registry() *node.Registry { return eng.registry }

// EventBus returns the event bus.
func (eng *Engine) EventBus() *event.Bus { return eng.bus }

// Scheduler returns the underlying scheduler.
func (eng *Engine) Scheduler() *sched.Scheduler { return eng.scheduler }
