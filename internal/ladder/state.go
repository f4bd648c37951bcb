package ladder

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	maxEdgeStates  = 64
	maxTimerStates = 32
)

// EdgeTable remembers the previous gate level per variable name. Rising
// edge detection and the one-shot positive coil share the same table, so a
// name observed by both sees one common history.
type EdgeTable struct {
	mu     sync.Mutex
	prev   map[string]bool
	logger *zap.Logger
}

func NewEdgeTable(logger *zap.Logger) *EdgeTable {
	return &EdgeTable{prev: make(map[string]bool), logger: logger}
}

// RisingEdge reports a false-to-true transition of cond for the given name
// and records the new level. A full table rejects new names, the caller
// then sees no edge at all.
func (e *EdgeTable) RisingEdge(name string, cond bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, ok := e.prev[name]
	if !ok {
		if len(e.prev) >= maxEdgeStates {
			e.logger.Error("too many edge states", zap.String("name", name))
			return false
		}
		prev = false
	}
	e.prev[name] = cond
	return cond && !prev
}

// timerRuntime is the engine-side half of a timer, distinct from the
// PT/ET/IN/Q fields living in the variable store.
type timerRuntime struct {
	start   time.Time
	running bool
}

// TimerTable holds the runtime state of every active timer.
type TimerTable struct {
	mu     sync.Mutex
	timers map[string]*timerRuntime
	logger *zap.Logger
}

func NewTimerTable(logger *zap.Logger) *TimerTable {
	return &TimerTable{timers: make(map[string]*timerRuntime), logger: logger}
}

func (t *TimerTable) get(name string) *timerRuntime {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.timers[name]; ok {
		return s
	}
	if len(t.timers) >= maxTimerStates {
		t.logger.Error("too many timer states", zap.String("name", name))
		return nil
	}
	s := &timerRuntime{}
	t.timers[name] = s
	return s
}

// Stop clears the running flag of a timer, used by the Reset element.
func (t *TimerTable) Stop(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.timers[name]; ok {
		s.running = false
	}
}
