package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
	"github.com/KevinKickass/OpenLadderCore/internal/ladder"
	"github.com/KevinKickass/OpenLadderCore/internal/variables"
)

const (
	defaultScanPeriod   = 10 * time.Millisecond
	defaultSpawnSpacing = 200 * time.Millisecond
	defaultMaxWires     = 256
)

// Engine owns the running ladder program: the variable store, the engine
// state tables and one scan task per wire. The apply path drains every
// task before it swaps the store, scan tasks therefore never observe a
// half-built program.
type Engine struct {
	mu     sync.RWMutex
	logger *zap.Logger
	driver device.IO

	store *variables.Store
	desc  *device.Descriptor
	eval  *ladder.Evaluator

	tasks map[uuid.UUID]context.CancelFunc
	wg    sync.WaitGroup

	scanPeriod   time.Duration
	spawnSpacing time.Duration
	maxWires     int
}

// Option adjusts engine timing, mainly for tests.
type Option func(*Engine)

func WithScanPeriod(d time.Duration) Option   { return func(e *Engine) { e.scanPeriod = d } }
func WithSpawnSpacing(d time.Duration) Option { return func(e *Engine) { e.spawnSpacing = d } }
func WithMaxWires(n int) Option               { return func(e *Engine) { e.maxWires = n } }

func New(driver device.IO, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:       logger,
		driver:       driver,
		tasks:        make(map[uuid.UUID]context.CancelFunc),
		scanPeriod:   defaultScanPeriod,
		spawnSpacing: defaultSpawnSpacing,
		maxWires:     defaultMaxWires,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the current variable store, nil before the first apply.
func (e *Engine) Store() *variables.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store
}

// Descriptor returns the current device descriptor, nil before the first
// apply.
func (e *Engine) Descriptor() *device.Descriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.desc
}

// WireCount reports the number of running scan tasks.
func (e *Engine) WireCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tasks)
}

// Teardown cancels every scan task and waits until all of them returned.
func (e *Engine) Teardown() {
	e.mu.Lock()
	for id, cancel := range e.tasks {
		cancel()
		delete(e.tasks, id)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// Rebind installs a freshly built descriptor and store and resets the
// edge and timer tables. Must only run while no scan task is alive.
func (e *Engine) Rebind(desc *device.Descriptor, store *variables.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.desc = desc
	e.store = store
	e.eval = ladder.NewEvaluator(store,
		ladder.NewEdgeTable(e.logger), ladder.NewTimerTable(e.logger), e.logger)
}

// Evaluator exposes the current evaluator, nil before the first apply.
func (e *Engine) Evaluator() *ladder.Evaluator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.eval
}

// Spawn starts one scan task per wire. Each task parses its own copy of
// the wire JSON so tasks never share node memory. Non-object entries are
// skipped with a warning, an oversized batch is cut short.
func (e *Engine) Spawn(wires []json.RawMessage) {
	e.mu.RLock()
	eval := e.eval
	e.mu.RUnlock()
	if eval == nil {
		e.logger.Error("spawn without an applied program")
		return
	}
	for i, raw := range wires {
		if i >= e.maxWires {
			e.logger.Error("too many wires, batch cut short",
				zap.Int("limit", e.maxWires), zap.Int("total", len(wires)))
			return
		}
		w, err := ladder.ParseWire(raw)
		if err != nil {
			e.logger.Warn("skipping wire", zap.Int("index", i), zap.Error(err))
			continue
		}
		e.startTask(eval, w, i)
		if e.spawnSpacing > 0 && i < len(wires)-1 {
			time.Sleep(e.spawnSpacing)
		}
	}
}

func (e *Engine) startTask(eval *ladder.Evaluator, w *ladder.Wire, index int) {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()

	e.mu.Lock()
	e.tasks[id] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.logger.Debug("wire task started", zap.String("id", id.String()), zap.Int("wire", index))
		for {
			select {
			case <-ctx.Done():
				e.logger.Debug("wire task stopped", zap.String("id", id.String()))
				return
			default:
			}
			eval.ScanWire(w)
			select {
			case <-ctx.Done():
				e.logger.Debug("wire task stopped", zap.String("id", id.String()))
				return
			case <-time.After(e.scanPeriod):
			}
		}
	}()
}
