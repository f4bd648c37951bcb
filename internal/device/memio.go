package device

import (
	"sync"

	"go.uber.org/zap"
)

// MemoryIO is a map-backed driver used on hosts without GPIO hardware and
// in tests. Inputs are set programmatically, outputs are latched.
type MemoryIO struct {
	mu       sync.RWMutex
	desc     *Descriptor
	digital  map[string]bool
	outputs  map[string]bool
	analog   map[string]float64
	dac      map[string]float64
	onewire  map[string]float64
	buses    map[int][]string
	adcRaw   uint32
	adcErr   error
	logger   *zap.Logger
}

func NewMemoryIO(desc *Descriptor, logger *zap.Logger) *MemoryIO {
	return &MemoryIO{
		desc:    desc,
		digital: make(map[string]bool),
		outputs: make(map[string]bool),
		analog:  make(map[string]float64),
		dac:     make(map[string]float64),
		onewire: make(map[string]float64),
		buses:   make(map[int][]string),
		logger:  logger,
	}
}

// Rebind points the driver at a new descriptor after an apply. Latched
// state is kept only for names that still exist.
func (m *MemoryIO) Rebind(desc *Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.desc = desc
}

func (m *MemoryIO) resolve(name string, want PinRole) (Pin, error) {
	if m.desc == nil {
		return Pin{}, ErrUnknownPin
	}
	p, ok := m.desc.LookupPin(name)
	if !ok {
		return Pin{}, ErrUnknownPin
	}
	if p.Role != want {
		return p, ErrNotOutput
	}
	return p, nil
}

// SetInput drives a simulated digital input level.
func (m *MemoryIO) SetInput(name string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.digital[name] = v
}

// SetAnalogInput drives a simulated analog input level.
func (m *MemoryIO) SetAnalogInput(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analog[name] = v
}

// SetOneWireValue injects a sensor reading.
func (m *MemoryIO) SetOneWireValue(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onewire[name] = v
}

// SetBusAddresses injects the raw device addresses present on a bus pin.
func (m *MemoryIO) SetBusAddresses(busPin int, addrs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buses[busPin] = append([]string(nil), addrs...)
}

// SetADCRaw injects the next raw ADC sample.
func (m *MemoryIO) SetADCRaw(raw uint32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adcRaw, m.adcErr = raw, err
}

func (m *MemoryIO) ReadDigital(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.resolve(name, RoleDigitalInput); err != nil {
		return false, err
	}
	return m.digital[name], nil
}

func (m *MemoryIO) WriteDigital(name string, v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.resolve(name, RoleDigitalOutput); err != nil {
		return err
	}
	m.outputs[name] = v
	return nil
}

func (m *MemoryIO) DigitalOutputState(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.resolve(name, RoleDigitalOutput); err != nil {
		return false, err
	}
	return m.outputs[name], nil
}

func (m *MemoryIO) ReadAnalog(name string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.resolve(name, RoleAnalogInput); err != nil {
		return 0, err
	}
	return m.analog[name], nil
}

func (m *MemoryIO) WriteAnalog(name string, v uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.resolve(name, RoleDACOutput); err != nil {
		return err
	}
	m.dac[name] = float64(v)
	return nil
}

func (m *MemoryIO) AnalogOutputState(name string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, err := m.resolve(name, RoleDACOutput); err != nil {
		return 0, err
	}
	return m.dac[name], nil
}

func (m *MemoryIO) ReadOneWire(name string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.desc != nil {
		if _, ok := m.desc.LookupSensor(name); !ok {
			return 0, ErrUnknownPin
		}
	}
	return m.onewire[name], nil
}

func (m *MemoryIO) SearchBus(busPin int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.buses[busPin]...), nil
}

func (m *MemoryIO) ReadRaw(sensorType, clockPin, dataPin, samplingRate string) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adcRaw, m.adcErr
}
