package adcsensor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
	"github.com/KevinKickass/OpenLadderCore/internal/engine"
	"github.com/KevinKickass/OpenLadderCore/internal/variables"
)

const (
	// 24 bit converter, all-zero and all-one readings are wire glitches
	rawMax = 16777215

	bufferSize = 10
	maxSensors = 10

	slowPeriod = 150 * time.Millisecond
	fastPeriod = 100 * time.Millisecond
)

type sensorState struct {
	buf   [bufferSize]float64
	idx   int
	count int
	last  float64
	valid bool
}

// Sampler reads every ADC sensor variable through the bit-bang frontend,
// smooths the readings and caches the result into the store.
type Sampler struct {
	engine *engine.Engine
	driver device.ADCReader
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]*sensorState
}

func NewSampler(eng *engine.Engine, drv device.ADCReader, logger *zap.Logger) *Sampler {
	return &Sampler{engine: eng, driver: drv, logger: logger, states: make(map[string]*sensorState)}
}

// Run samples until the context ends. A 10 Hz converter needs the longer
// pause between reads, everything else runs on the shorter one.
func (s *Sampler) Run(ctx context.Context) {
	for {
		period := s.sampleOnce()
		select {
		case <-ctx.Done():
			return
		case <-time.After(period):
		}
	}
}

func (s *Sampler) sampleOnce() time.Duration {
	period := fastPeriod
	store := s.engine.Store()
	if store == nil {
		return period
	}
	for _, v := range store.ADCSensors() {
		if v.SamplingRate == "10Hz" {
			period = slowPeriod
		}
		store.SetCachedValue(v.Name, s.read(v))
	}
	return period
}

// read runs the full pipeline for one sensor: raw read, extreme-value
// filter, range mapping, moving average.
func (s *Sampler) read(v variables.Variable) float64 {
	if v.MapLow == v.MapHigh || v.Gain < 0 {
		s.logger.Error("invalid mapping parameters or gain", zap.String("sensor", v.Name))
		return 0
	}

	raw, err := s.driver.ReadRaw(v.SensorType, v.ClockPin, v.DataPin, v.SamplingRate)
	if err != nil {
		s.logger.Error("adc read failed", zap.String("sensor", v.Name), zap.Error(err))
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.findOrAddState(v.Name)
	if state == nil {
		return 0
	}

	if raw == 0 || raw == rawMax {
		s.logger.Warn("extreme adc value, keeping last reading",
			zap.String("sensor", v.Name), zap.Uint32("raw", raw))
		if state.valid {
			return state.last
		}
		return 0
	}

	mapped := mapValue(float64(raw), 0, rawMax, v.MapLow, v.MapHigh)

	state.buf[state.idx] = mapped
	state.idx = (state.idx + 1) % bufferSize
	if state.count < bufferSize {
		state.count++
	}
	sum := 0.0
	for i := 0; i < state.count; i++ {
		sum += state.buf[i]
	}
	avg := sum / float64(state.count)

	state.last = avg
	state.valid = true
	return avg
}

func (s *Sampler) findOrAddState(name string) *sensorState {
	if st, ok := s.states[name]; ok {
		return st
	}
	if len(s.states) >= maxSensors {
		s.logger.Error("adc sensor capacity exceeded", zap.String("sensor", name))
		return nil
	}
	st := &sensorState{}
	s.states[name] = st
	return st
}

// mapValue linearly maps a value between two ranges.
func mapValue(value, fromLow, fromHigh, toLow, toHigh float64) float64 {
	if fromHigh == fromLow {
		return toLow
	}
	return (value-fromLow)*(toHigh-toLow)/(fromHigh-fromLow) + toLow
}
