package variables

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
)

// boolSuffixes and numSuffixes are the recognized dotted sub-field names.
// A trailing segment outside these sets is part of the variable name itself.
var boolSuffixes = map[string]bool{"CU": true, "CD": true, "QU": true, "QD": true, "IN": true, "Q": true}
var numSuffixes = map[string]bool{"PV": true, "CV": true, "PT": true, "ET": true}

// Store holds every variable of the running program. It is replaced
// wholesale on apply, never merged. Scalar reads and writes are safe from
// any task; structural change happens only while no wire task runs.
type Store struct {
	mu     sync.RWMutex
	vars   map[string]*Variable
	order  []string
	driver device.IO
	logger *zap.Logger
}

// Load parses the "Variables" array of a configuration document and builds
// a fresh store. Any bad entry fails the whole load, the caller keeps the
// previous store in that case. Pin-bound variables must resolve in the
// descriptor.
func Load(raw json.RawMessage, desc *device.Descriptor, drv device.IO, logger *zap.Logger) (*Store, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("variables is not an array: %w", err)
	}

	s := &Store{
		vars:   make(map[string]*Variable, len(entries)),
		order:  make([]string, 0, len(entries)),
		driver: drv,
		logger: logger,
	}
	for i, entry := range entries {
		v, err := parseVariable(entry)
		if err != nil {
			return nil, fmt.Errorf("variables[%d]: %w", i, err)
		}
		if _, dup := s.vars[v.Name]; dup {
			return nil, fmt.Errorf("duplicate variable name %q", v.Name)
		}
		if err := bindToDescriptor(v, desc); err != nil {
			return nil, err
		}
		s.vars[v.Name] = v
		s.order = append(s.order, v.Name)
	}
	return s, nil
}

func bindToDescriptor(v *Variable, desc *device.Descriptor) error {
	if desc == nil {
		return nil
	}
	switch v.Kind {
	case KindDigitalInput, KindDigitalOutput, KindAnalogInput, KindAnalogOutput:
		if _, ok := desc.LookupPin(v.Name); !ok {
			return fmt.Errorf("variable %q: no pin of that name in the device descriptor", v.Name)
		}
	case KindOneWireInput:
		if _, ok := desc.LookupSensor(v.Name); !ok {
			return fmt.Errorf("variable %q: no one_wire sensor of that name in the device descriptor", v.Name)
		}
	}
	return nil
}

// splitName separates a recognized dotted suffix from the base name.
func splitName(name string) (base, suffix string) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return name, ""
	}
	tail := name[idx+1:]
	if boolSuffixes[tail] || numSuffixes[tail] {
		return name[:idx], tail
	}
	return name, ""
}

// Resolves reports whether a (possibly suffixed) name addresses a variable.
func (s *Store) Resolves(name string) bool {
	base, _ := splitName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vars[base]
	return ok
}

// Names returns the variable names in document order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Store) find(base string) *Variable {
	v, ok := s.vars[base]
	if !ok {
		return nil
	}
	return v
}

// ReadBool resolves a name (with optional .CU/.CD/.QU/.QD/.IN/.Q suffix)
// to its boolean value. Unknown names and kind mismatches read as false.
func (s *Store) ReadBool(name string) bool {
	base, suffix := splitName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.find(base)
	if v == nil {
		s.logger.Warn("bool read of unknown variable", zap.String("name", name))
		return false
	}
	if suffix != "" {
		return readBoolSuffix(v, suffix, s.logger)
	}
	switch v.Kind {
	case KindDigitalInput:
		val, err := s.driver.ReadDigital(v.Name)
		if err != nil {
			s.logger.Warn("digital input read failed", zap.String("name", v.Name), zap.Error(err))
			return false
		}
		return val
	case KindDigitalOutput:
		val, err := s.driver.DigitalOutputState(v.Name)
		if err != nil {
			s.logger.Warn("digital output readback failed", zap.String("name", v.Name), zap.Error(err))
			return false
		}
		return val
	case KindBoolean:
		return v.Bool
	}
	s.logger.Warn("bool read of non-boolean variable", zap.String("name", name), zap.String("type", v.TypeString))
	return false
}

func readBoolSuffix(v *Variable, suffix string, logger *zap.Logger) bool {
	switch {
	case v.Kind == KindCounter && suffix == "CU":
		return v.CU
	case v.Kind == KindCounter && suffix == "CD":
		return v.CD
	case v.Kind == KindCounter && suffix == "QU":
		return v.QU
	case v.Kind == KindCounter && suffix == "QD":
		return v.QD
	case v.Kind == KindTimer && suffix == "IN":
		return v.IN
	case v.Kind == KindTimer && suffix == "Q":
		return v.Q
	}
	logger.Warn("suffix does not match variable kind",
		zap.String("name", v.Name), zap.String("suffix", suffix))
	return false
}

// WriteBool writes a boolean value. Digital outputs go to the driver,
// everything else mutates store memory. Unknown names are a logged no-op.
func (s *Store) WriteBool(name string, val bool) {
	base, suffix := splitName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.find(base)
	if v == nil {
		s.logger.Warn("bool write to unknown variable", zap.String("name", name))
		return
	}
	if suffix != "" {
		writeBoolSuffix(v, suffix, val, s.logger)
		return
	}
	switch v.Kind {
	case KindDigitalOutput:
		if err := s.driver.WriteDigital(v.Name, val); err != nil {
			s.logger.Warn("digital output write failed", zap.String("name", v.Name), zap.Error(err))
		}
	case KindBoolean:
		v.Bool = val
	default:
		s.logger.Warn("bool write to non-writable variable",
			zap.String("name", name), zap.String("type", v.TypeString))
	}
}

func writeBoolSuffix(v *Variable, suffix string, val bool, logger *zap.Logger) {
	switch {
	case v.Kind == KindCounter && suffix == "CU":
		v.CU = val
	case v.Kind == KindCounter && suffix == "CD":
		v.CD = val
	case v.Kind == KindCounter && suffix == "QU":
		v.QU = val
	case v.Kind == KindCounter && suffix == "QD":
		v.QD = val
	case v.Kind == KindTimer && suffix == "IN":
		v.IN = val
	case v.Kind == KindTimer && suffix == "Q":
		v.Q = val
	default:
		logger.Warn("suffix does not match variable kind",
			zap.String("name", v.Name), zap.String("suffix", suffix))
	}
}

// ReadNumber resolves a name (with optional .PV/.CV/.PT/.ET suffix) to its
// numeric value. Unknown names read as 0.
func (s *Store) ReadNumber(name string) float64 {
	base, suffix := splitName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.find(base)
	if v == nil {
		s.logger.Warn("number read of unknown variable", zap.String("name", name))
		return 0
	}
	if suffix != "" {
		switch {
		case v.Kind == KindCounter && suffix == "PV":
			return v.PV
		case v.Kind == KindCounter && suffix == "CV":
			return v.CV
		case v.Kind == KindTimer && suffix == "PT":
			return v.PT
		case v.Kind == KindTimer && suffix == "ET":
			return v.ET
		}
		s.logger.Warn("suffix does not match variable kind",
			zap.String("name", v.Name), zap.String("suffix", suffix))
		return 0
	}
	switch v.Kind {
	case KindNumber, KindTime, KindOneWireInput, KindADCSensor:
		return v.Value
	case KindAnalogInput:
		val, err := s.driver.ReadAnalog(v.Name)
		if err != nil {
			s.logger.Warn("analog input read failed", zap.String("name", v.Name), zap.Error(err))
			return 0
		}
		return val
	case KindAnalogOutput:
		val, err := s.driver.AnalogOutputState(v.Name)
		if err != nil {
			s.logger.Warn("analog output readback failed", zap.String("name", v.Name), zap.Error(err))
			return 0
		}
		return val
	}
	s.logger.Warn("number read of non-numeric variable",
		zap.String("name", name), zap.String("type", v.TypeString))
	return 0
}

// WriteNumber writes a numeric value. Writes to output pins are rounded
// and clamped to the 8 bit DAC range before they reach the driver.
func (s *Store) WriteNumber(name string, val float64) {
	base, suffix := splitName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.find(base)
	if v == nil {
		s.logger.Warn("number write to unknown variable", zap.String("name", name))
		return
	}
	if suffix != "" {
		switch {
		case v.Kind == KindCounter && suffix == "PV":
			v.PV = val
		case v.Kind == KindCounter && suffix == "CV":
			v.CV = val
		case v.Kind == KindTimer && suffix == "PT":
			v.PT = val
		case v.Kind == KindTimer && suffix == "ET":
			v.ET = val
		default:
			s.logger.Warn("suffix does not match variable kind",
				zap.String("name", v.Name), zap.String("suffix", suffix))
		}
		return
	}
	switch v.Kind {
	case KindNumber, KindTime:
		v.Value = val
	case KindDigitalOutput, KindAnalogOutput:
		dac := math.Round(val)
		if dac < 0 {
			dac = 0
		}
		if dac > 255 {
			dac = 255
		}
		if err := s.driver.WriteAnalog(v.Name, uint8(dac)); err != nil {
			s.logger.Warn("dac write failed", zap.String("name", v.Name), zap.Error(err))
		}
	default:
		s.logger.Warn("number write to non-writable variable",
			zap.String("name", name), zap.String("type", v.TypeString))
	}
}

// SetCachedValue updates the cached reading of a OneWire or ADC variable.
// Called from the sampler tasks, never from a wire scan.
func (s *Store) SetCachedValue(name string, val float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.find(name)
	if v == nil || (v.Kind != KindOneWireInput && v.Kind != KindADCSensor) {
		return
	}
	v.Value = val
}

// UpdateCurrentTime sets every "Current Time" variable to the encoded
// wall-clock value HH*10000 + MM*100 + SS.
func (s *Store) UpdateCurrentTime(encoded float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		v := s.vars[name]
		if v.Kind == KindTime && v.TypeString == "Current Time" {
			v.Value = encoded
		}
	}
}

// CounterSnapshot is a point-in-time copy of a counter's fields.
type CounterSnapshot struct {
	PV, CV         float64
	CU, CD, QU, QD bool
}

// TimerSnapshot is a point-in-time copy of a timer's fields.
type TimerSnapshot struct {
	PT, ET float64
	IN, Q  bool
}

// Counter returns a copy of the named counter.
func (s *Store) Counter(name string) (CounterSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.find(name)
	if v == nil || v.Kind != KindCounter {
		return CounterSnapshot{}, false
	}
	return CounterSnapshot{PV: v.PV, CV: v.CV, CU: v.CU, CD: v.CD, QU: v.QU, QD: v.QD}, true
}

// CounterAdd moves the count value and refreshes both output flags.
func (s *Store) CounterAdd(name string, delta float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.find(name)
	if v == nil || v.Kind != KindCounter {
		s.logger.Warn("count on non-counter variable", zap.String("name", name))
		return false
	}
	v.CV += delta
	v.QU = v.CV >= v.PV
	v.QD = v.CV <= 0
	return true
}

// ResetCounter applies the counter branch of the Reset element. CU set
// means count-up mode, the value returns to zero. CD set means count-down,
// the value reloads the preset.
func (s *Store) ResetCounter(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.find(name)
	if v == nil || v.Kind != KindCounter {
		return false
	}
	taken := false
	if v.CU {
		v.CV = 0
		taken = true
	}
	if v.CD {
		v.CV = v.PV
		taken = true
	}
	if taken {
		v.QU = v.CV >= v.PV
		v.QD = v.CV <= 0
	}
	return true
}

// Timer returns a copy of the named timer.
func (s *Store) Timer(name string) (TimerSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.find(name)
	if v == nil || v.Kind != KindTimer {
		return TimerSnapshot{}, false
	}
	return TimerSnapshot{PT: v.PT, ET: v.ET, IN: v.IN, Q: v.Q}, true
}

// UpdateTimer stores the timer fields computed by a TON/TOF state machine.
func (s *Store) UpdateTimer(name string, et float64, in, q bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.find(name)
	if v == nil || v.Kind != KindTimer {
		s.logger.Warn("timer update on non-timer variable", zap.String("name", name))
		return false
	}
	v.ET, v.IN, v.Q = et, in, q
	return true
}

// ResetTimer applies the timer branch of the Reset element.
func (s *Store) ResetTimer(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.find(name)
	if v == nil || v.Kind != KindTimer {
		return false
	}
	v.ET, v.Q, v.IN = 0, false, false
	return true
}

// Kind returns the kind of a base variable name.
func (s *Store) Kind(name string) (Kind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.find(name)
	if v == nil {
		return 0, false
	}
	return v.Kind, true
}

// ADCSensors returns copies of every ADC Sensor variable for the sampler.
func (s *Store) ADCSensors() []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Variable
	for _, name := range s.order {
		if v := s.vars[name]; v.Kind == KindADCSensor {
			out = append(out, *v)
		}
	}
	return out
}

// OneWireNames returns the names of every One Wire Input variable.
func (s *Store) OneWireNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, name := range s.order {
		if s.vars[name].Kind == KindOneWireInput {
			out = append(out, name)
		}
	}
	return out
}
