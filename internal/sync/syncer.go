package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/engine"
	"github.com/KevinKickass/OpenLadderCore/internal/mqttbus"
)

const defaultInterval = 100 * time.Millisecond

// Publisher is the outbound bus surface the syncer needs.
type Publisher interface {
	Connected() bool
	Publish(topic string, qos byte, payload []byte)
	Topics() mqttbus.Topics
}

// Syncer pushes the flat Boolean/Number delta of the running program to
// every configured parent device. Deltas travel at QoS 0, a lost tick is
// replaced by the next one 100 ms later.
type Syncer struct {
	engine   *engine.Engine
	bus      Publisher
	interval time.Duration
	logger   *zap.Logger
}

func New(eng *engine.Engine, bus Publisher, interval time.Duration, logger *zap.Logger) *Syncer {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Syncer{engine: eng, bus: bus, interval: interval, logger: logger}
}

// Run publishes until the context ends.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishOnce()
		}
	}
}

func (s *Syncer) publishOnce() {
	if !s.bus.Connected() {
		return
	}
	desc := s.engine.Descriptor()
	store := s.engine.Store()
	if desc == nil || store == nil || len(desc.ParentDevices) == 0 {
		return
	}
	payload, err := store.FlatDelta()
	if err != nil {
		s.logger.Error("failed to serialize parent delta", zap.Error(err))
		return
	}
	for _, parent := range desc.ParentDevices {
		s.bus.Publish(s.bus.Topics().ChildrenListenerOf(parent), 0, payload)
	}
}
