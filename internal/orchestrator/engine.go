package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/conductor-dev/conductor/internal/assess"
	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/internal/decompose"
	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/internal/gate"
	"github.com/conductor-dev/conductor/internal/graph"
	"github.com/conductor-dev/conductor/internal/priority"
	"github.com/conductor-dev/conductor/internal/store"
	"github.com/conductor-dev/conductor/internal/worker"
	"github.com/conductor-dev/conductor/pkg/models"
)

// Engine is the orchestration facade. One coordinator goroutine owns all
// task and subtask state transitions; worker completions are delivered to
// it over a single channel.
type Engine struct {
	cfg        *config.Config
	registry   *worker.Registry
	assessor   *assess.Assessor
	decomposer *decompose.Decomposer
	priorities *priority.Engine
	gate       *gate.Gate
	bus        *events.Bus
	db         *store.DB
	logger     *DebugLogger
	runner     worker.Runner

	mu    sync.Mutex
	tasks map[string]*taskState

	completions chan completion
	kick        chan struct{}

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// taskState is the engine's private view of one task. Guarded by Engine.mu.
type taskState struct {
	task      *models.Task
	req       *models.Requirement
	hints     models.PriorityHints
	graph     *graph.Graph
	subtasks  map[string]*models.Subtask
	approvals []models.Approval
	gates     []*models.GateResult
	scores    map[string]priority.Scored
	inflight  map[string]context.CancelFunc
	backoffs  map[string]*backoff.ExponentialBackOff
	capacity  map[string]bool
	canceled  bool
}

// completion is one worker's report for a finished execution attempt.
type completion struct {
	taskID    string
	subtaskID string
	workerID  string
	started   time.Time
	result    *worker.Result
	err       error
}

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

type engineOptions struct {
	logger *DebugLogger
	bus    *events.Bus
	db     *store.DB
	runner worker.Runner

	// Injectable dependencies for testing.
	assessor   *assess.Assessor
	decomposer *decompose.Decomposer
	priorities *priority.Engine
	gate       *gate.Gate
	registry   *worker.Registry
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithBus sets the event bus for lifecycle and escalation events.
func WithBus(b *events.Bus) Option {
	return func(o *engineOptions) { o.bus = b }
}

// WithStore sets the persistence layer. The engine runs in memory when
// no store is configured.
func WithStore(db *store.DB) Option {
	return func(o *engineOptions) { o.db = db }
}

// WithRunner sets the execution runner workers use for subtasks.
func WithRunner(r worker.Runner) Option {
	return func(o *engineOptions) { o.runner = r }
}

// WithAssessor sets a custom complexity assessor (mainly for testing).
func WithAssessor(a *assess.Assessor) Option {
	return func(o *engineOptions) { o.assessor = a }
}

// WithDecomposer sets a custom decomposer (mainly for testing).
func WithDecomposer(d *decompose.Decomposer) Option {
	return func(o *engineOptions) { o.decomposer = d }
}

// WithPriorityEngine sets a custom priority engine (mainly for testing).
func WithPriorityEngine(p *priority.Engine) Option {
	return func(o *engineOptions) { o.priorities = p }
}

// WithGate sets a custom quality gate (mainly for testing).
func WithGate(g *gate.Gate) Option {
	return func(o *engineOptions) { o.gate = g }
}

// WithRegistry sets a custom worker registry (mainly for testing).
func WithRegistry(r *worker.Registry) Option {
	return func(o *engineOptions) { o.registry = r }
}

// New creates an Engine from configuration and options.
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}

	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	if o.registry == nil {
		o.registry = worker.NewRegistry(cfg.Execution)
	}
	if o.assessor == nil {
		o.assessor = assess.New(cfg.Complexity)
	}
	if o.decomposer == nil {
		o.decomposer = decompose.New()
	}
	if o.priorities == nil {
		o.priorities = priority.New(cfg.Priority)
	}
	if o.gate == nil {
		o.gate = gate.New(cfg.Gate, o.bus)
	}

	return &Engine{
		cfg:         cfg,
		registry:    o.registry,
		assessor:    o.assessor,
		decomposer:  o.decomposer,
		priorities:  o.priorities,
		gate:        o.gate,
		bus:         o.bus,
		db:          o.db,
		logger:      o.logger,
		runner:      o.runner,
		tasks:       make(map[string]*taskState),
		completions: make(chan completion, 64),
		kick:        make(chan struct{}, 1),
	}
}

// Start launches the coordinator loop. It returns immediately; the loop
// runs until Stop is called or ctx is canceled.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	go e.runLoop(loopCtx)
}

// Stop halts the coordinator loop and waits for it to exit. In-flight
// subtask executions receive context cancellation.
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	e.cancel()
	done := e.done
	e.running = false
	e.runMu.Unlock()

	<-done
}

// UpdateConfig applies new tunable weights and thresholds, taking effect
// at the next scheduling tick. The tick interval, worker breaker settings,
// and store location stay as they were at construction. Invalid
// configurations are rejected and the previous one stays active.
func (e *Engine) UpdateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("update config: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("update config: %w", err)
	}

	e.mu.Lock()
	e.cfg = cfg
	e.assessor = assess.New(cfg.Complexity)
	e.priorities = priority.New(cfg.Priority)
	e.gate = gate.New(cfg.Gate, e.bus)
	e.mu.Unlock()

	e.logger.Log("[config] reloaded: complexity threshold %.1f, gate threshold %.1f",
		cfg.Complexity.Threshold, cfg.Gate.OverallThreshold)
	e.poke()
	return nil
}

// publish emits an event if a bus is configured. No-op otherwise.
func (e *Engine) publish(topic string, ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(topic, ev)
	}
}

// persistTask writes a task record if a store is configured.
func (e *Engine) persistTask(t *models.Task) {
	if e.db == nil {
		return
	}
	if err := e.db.SaveTask(t); err != nil {
		e.logger.Log("[store] save task %s: %v", t.ID, err)
	}
}

// persistSubtask writes a subtask record if a store is configured.
func (e *Engine) persistSubtask(st *models.Subtask) {
	if e.db == nil {
		return
	}
	if err := e.db.SaveSubtask(st); err != nil {
		e.logger.Log("[store] save subtask %s: %v", st.ID, err)
	}
}

// persistWorker writes a worker record if a store is configured.
func (e *Engine) persistWorker(w *models.Worker) {
	if e.db == nil {
		return
	}
	if err := e.db.SaveWorker(w); err != nil {
		e.logger.Log("[store] save worker %s: %v", w.ID, err)
	}
}

// removeWorker deletes a worker record if a store is configured.
func (e *Engine) removeWorker(id string) {
	if e.db == nil {
		return
	}
	if err := e.db.DeleteWorker(id); err != nil {
		e.logger.Log("[store] delete worker %s: %v", id, err)
	}
}

// persistGate writes a gate result if a store is configured.
func (e *Engine) persistGate(res *models.GateResult) {
	if e.db == nil {
		return
	}
	if err := e.db.SaveGateResult(res); err != nil {
		e.logger.Log("[store] save gate result %s: %v", res.ID, err)
	}
}

// poke nudges the coordinator to run a scheduling pass without waiting
// for the next tick.
func (e *Engine) poke() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}
