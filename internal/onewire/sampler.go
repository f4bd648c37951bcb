package onewire

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
	"github.com/KevinKickass/OpenLadderCore/internal/engine"
)

const defaultSamplePeriod = time.Second

// Sampler reads every OneWire input variable and caches the value into
// the store. Bus reads can take tens of milliseconds, so they run here
// and never inline in a wire scan.
type Sampler struct {
	engine   *engine.Engine
	driver   device.OneWireIO
	interval time.Duration
	logger   *zap.Logger
}

func NewSampler(eng *engine.Engine, drv device.OneWireIO, interval time.Duration, logger *zap.Logger) *Sampler {
	if interval <= 0 {
		interval = defaultSamplePeriod
	}
	return &Sampler{engine: eng, driver: drv, interval: interval, logger: logger}
}

// Run samples until the context ends.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	store := s.engine.Store()
	if store == nil {
		return
	}
	for _, name := range store.OneWireNames() {
		v, err := s.driver.ReadOneWire(name)
		if err != nil {
			s.logger.Debug("one wire read failed", zap.String("sensor", name), zap.Error(err))
			continue
		}
		store.SetCachedValue(name, v)
	}
}
