package ingest

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
	"github.com/KevinKickass/OpenLadderCore/internal/engine"
	"github.com/KevinKickass/OpenLadderCore/internal/ladder"
	"github.com/KevinKickass/OpenLadderCore/internal/variables"
)

const (
	defaultWindow  = 10 * time.Second
	defaultMaxSize = 512 * 1024
)

// Driver is the rebindable IO port the ingestor reconfigures on apply.
type Driver interface {
	device.IO
	Rebind(*device.Descriptor)
}

// Persister stores the accepted raw document for the next boot.
type Persister interface {
	SaveConfig(data []byte) error
	LoadConfig() ([]byte, error)
}

// document is the top-level shape of a configuration.
type document struct {
	Device    json.RawMessage   `json:"Device"`
	Variables json.RawMessage   `json:"Variables"`
	Wires     []json.RawMessage `json:"Wires"`
}

// Ingestor collects configuration chunks from BLE and the message bus,
// detects the completed document by a successful parse, and drives the
// apply sequence: validate, persist, drain tasks, rebuild, respawn.
type Ingestor struct {
	mu     sync.Mutex
	buf    []byte
	timer  *time.Timer
	window time.Duration
	max    int

	engine    *engine.Engine
	driver    Driver
	persister Persister
	validator *Validator
	logger    *zap.Logger

	onApply []func(*device.Descriptor)
}

type Option func(*Ingestor)

func WithWindow(d time.Duration) Option { return func(i *Ingestor) { i.window = d } }
func WithMaxSize(n int) Option          { return func(i *Ingestor) { i.max = n } }

func New(eng *engine.Engine, drv Driver, persister Persister, logger *zap.Logger, opts ...Option) (*Ingestor, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	ing := &Ingestor{
		window:    defaultWindow,
		max:       defaultMaxSize,
		engine:    eng,
		driver:    drv,
		persister: persister,
		validator: validator,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing, nil
}

// OnApply registers a callback that runs after every successful apply.
// The samplers use it to pick up the new descriptor and store.
func (i *Ingestor) OnApply(fn func(*device.Descriptor)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onApply = append(i.onApply, fn)
}

// Ingest appends one chunk to the buffer. A chunk that completes a
// parseable JSON document triggers the apply, anything else restarts the
// collection window.
func (i *Ingestor) Ingest(chunk []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.restartTimer()
	i.buf = append(i.buf, chunk...)

	if len(i.buf) > i.max {
		i.logger.Warn("configuration buffer over limit, dropping",
			zap.Int("size", len(i.buf)), zap.Int("limit", i.max))
		i.reset()
		return
	}

	if !json.Valid(i.buf) {
		// Noch unvollstaendig, auf weitere Chunks warten
		return
	}

	doc := i.buf
	i.reset()
	if err := i.apply(doc, false); err != nil {
		i.logger.Error("configuration rejected", zap.Error(err))
	}
}

// LoadFromStorage replays the persisted document on boot. A missing blob
// comes back as the persister's error unchanged (storage.ErrNotFound for
// the sqlite store) and nothing is applied.
func (i *Ingestor) LoadFromStorage() error {
	raw, err := i.persister.LoadConfig()
	if err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.apply(raw, true)
}

func (i *Ingestor) restartTimer() {
	if i.timer == nil {
		i.timer = time.AfterFunc(i.window, i.expire)
		return
	}
	i.timer.Reset(i.window)
}

func (i *Ingestor) reset() {
	i.buf = nil
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}

func (i *Ingestor) expire() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.buf) > 0 {
		i.logger.Warn("configuration transfer timed out", zap.Int("dropped_bytes", len(i.buf)))
	}
	i.reset()
}

// apply performs the full transition to a new program. Any error before
// the teardown step leaves the running program untouched.
func (i *Ingestor) apply(raw []byte, loadedFromStorage bool) error {
	if err := i.validator.Validate(raw); err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid configuration document: %w", err)
	}

	desc, err := device.ParseDescriptor(doc.Device)
	if err != nil {
		return err
	}
	store, err := variables.Load(doc.Variables, desc, i.driver, i.logger)
	if err != nil {
		return err
	}
	if err := checkWireReferences(doc.Wires, store); err != nil {
		return err
	}

	if !loadedFromStorage {
		if err := i.persister.SaveConfig(raw); err != nil {
			return err
		}
	}

	// Point of no return: drain every scan task, rebuild, respawn
	i.engine.Teardown()
	i.driver.Rebind(desc)
	i.engine.Rebind(desc, store)
	i.engine.Spawn(doc.Wires)

	for _, fn := range i.onApply {
		fn(desc)
	}
	i.logger.Info("configuration applied",
		zap.Int("wires", len(doc.Wires)),
		zap.Int("variables", len(store.Names())),
		zap.Bool("from_storage", loadedFromStorage))
	return nil
}

// checkWireReferences rejects programs that point at undefined variables.
// Wires that do not even parse are skipped here, the spawn path logs them.
func checkWireReferences(wires []json.RawMessage, store *variables.Store) error {
	for idx, raw := range wires {
		w, err := ladder.ParseWire(raw)
		if err != nil {
			continue
		}
		for _, name := range ladder.References(w.Nodes) {
			if !store.Resolves(name) {
				return fmt.Errorf("wire %d references undefined variable %q", idx, name)
			}
		}
	}
	return nil
}
