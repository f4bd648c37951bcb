package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/engine"
	"github.com/KevinKickass/OpenLadderCore/internal/mqttbus"
	"github.com/KevinKickass/OpenLadderCore/internal/onewire"
)

const defaultInterval = 100 * time.Millisecond

// Bus is the outbound surface the monitor needs. Snapshots only go out
// while the app holds an open session, nobody else reads them.
type Bus interface {
	AppConnected() bool
	Publish(topic string, qos byte, payload []byte)
	Topics() mqttbus.Topics
}

// Monitor periodically publishes the full variable snapshot and the
// debounced OneWire discovery report.
type Monitor struct {
	engine   *engine.Engine
	bus      Bus
	scanner  *onewire.Scanner
	interval time.Duration
	logger   *zap.Logger

	// broadcast mirrors the snapshot to local websocket clients
	broadcast func([]byte)
}

func New(eng *engine.Engine, bus Bus, scanner *onewire.Scanner, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{engine: eng, bus: bus, scanner: scanner, interval: interval, logger: logger}
}

// OnSnapshot registers a local mirror for every snapshot, independent of
// the app session state.
func (m *Monitor) OnSnapshot(fn func([]byte)) { m.broadcast = fn }

// Run publishes until the context ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publishOnce()
		}
	}
}

func (m *Monitor) publishOnce() {
	store := m.engine.Store()
	if store == nil {
		return
	}
	snap, err := store.Snapshot()
	if err != nil {
		m.logger.Error("failed to build snapshot", zap.Error(err))
		return
	}
	if m.broadcast != nil {
		m.broadcast(snap)
	}

	if !m.bus.AppConnected() {
		return
	}
	topics := m.bus.Topics()
	m.bus.Publish(topics.Monitor(), 0, snap)

	desc := m.engine.Descriptor()
	if desc == nil {
		return
	}
	report, err := m.scanner.Search(desc.OneWireBuses())
	if err != nil {
		m.logger.Error("failed to build one wire report", zap.Error(err))
		return
	}
	m.bus.Publish(topics.OneWire(), 0, report)
}
