//go:build linux

package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	rpio "github.com/stianeikeland/go-rpio/v4"
	"go.uber.org/zap"
)

const w1DevicesPath = "/sys/bus/w1/devices"

// GPIO drives real pins through the BCM283x memory map and reads OneWire
// sensors through the kernel w1 bus. Analog pins need external hardware
// the board does not have, those calls return ErrUnsupported.
type GPIO struct {
	mu     sync.Mutex
	desc   *Descriptor
	logger *zap.Logger
	opened bool
	latch  map[string]bool
}

func NewGPIO(desc *Descriptor, logger *zap.Logger) (*GPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory map: %w", err)
	}
	g := &GPIO{desc: desc, logger: logger, opened: true, latch: make(map[string]bool)}
	g.configurePins()
	return g, nil
}

func (g *GPIO) configurePins() {
	if g.desc == nil {
		return
	}
	for _, id := range g.desc.DigitalInputs {
		rpio.Pin(id).Input()
	}
	for _, id := range g.desc.DigitalOutputs {
		pin := rpio.Pin(id)
		pin.Output()
		pin.Low()
	}
}

// Rebind reconfigures the pins for a freshly applied descriptor.
func (g *GPIO) Rebind(desc *Descriptor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.desc = desc
	g.latch = make(map[string]bool)
	g.configurePins()
}

// Close releases the gpio memory map.
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.opened {
		return nil
	}
	g.opened = false
	return rpio.Close()
}

func (g *GPIO) pin(name string, want PinRole) (rpio.Pin, error) {
	if g.desc == nil {
		return 0, ErrUnknownPin
	}
	p, ok := g.desc.LookupPin(name)
	if !ok {
		return 0, ErrUnknownPin
	}
	if p.Role != want {
		return 0, ErrNotOutput
	}
	return rpio.Pin(p.ID), nil
}

func (g *GPIO) ReadDigital(name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pin, err := g.pin(name, RoleDigitalInput)
	if err != nil {
		return false, err
	}
	return pin.Read() == rpio.High, nil
}

func (g *GPIO) WriteDigital(name string, v bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	pin, err := g.pin(name, RoleDigitalOutput)
	if err != nil {
		return err
	}
	if v {
		pin.High()
	} else {
		pin.Low()
	}
	g.latch[name] = v
	return nil
}

func (g *GPIO) DigitalOutputState(name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.pin(name, RoleDigitalOutput); err != nil {
		return false, err
	}
	return g.latch[name], nil
}

func (g *GPIO) ReadAnalog(name string) (float64, error) {
	return 0, ErrUnsupported
}

func (g *GPIO) WriteAnalog(name string, v uint8) error {
	return ErrUnsupported
}

func (g *GPIO) AnalogOutputState(name string) (float64, error) {
	return 0, ErrUnsupported
}

// ReadOneWire resolves the logical sensor name to its w1 address and reads
// the kernel w1_slave file. Returns degrees for temperature family parts.
func (g *GPIO) ReadOneWire(name string) (float64, error) {
	g.mu.Lock()
	desc := g.desc
	g.mu.Unlock()
	if desc == nil {
		return 0, ErrUnknownPin
	}
	sensor, ok := desc.LookupSensor(name)
	if !ok {
		return 0, ErrUnknownPin
	}
	return readW1Slave(w1SlaveID(sensor.Address))
}

// SearchBus lists the device addresses the kernel currently sees. The w1
// master is shared, the bus pin only selects which devices we report.
func (g *GPIO) SearchBus(busPin int) ([]string, error) {
	entries, err := os.ReadDir(w1DevicesPath)
	if err != nil {
		return nil, fmt.Errorf("w1 bus scan: %w", err)
	}
	var addrs []string
	for _, e := range entries {
		id := e.Name()
		if strings.HasPrefix(id, "w1_bus_master") {
			continue
		}
		addrs = append(addrs, strings.ToUpper(strings.ReplaceAll(id, "-", "")))
	}
	return addrs, nil
}

// w1SlaveID converts a 16-hex-char address to the kernel's ff-xxxxxxxxxxxx form.
func w1SlaveID(addr string) string {
	a := strings.ToLower(addr)
	if len(a) != 16 {
		return a
	}
	return a[:2] + "-" + a[2:14]
}

func readW1Slave(id string) (float64, error) {
	raw, err := os.ReadFile(filepath.Join(w1DevicesPath, id, "w1_slave"))
	if err != nil {
		return 0, err
	}
	text := string(raw)
	if !strings.Contains(text, "YES") {
		return 0, fmt.Errorf("w1 sensor %s: crc check failed", id)
	}
	idx := strings.LastIndex(text, "t=")
	if idx < 0 {
		return 0, fmt.Errorf("w1 sensor %s: no temperature in payload", id)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(text[idx+2:]))
	if err != nil {
		return 0, fmt.Errorf("w1 sensor %s: %w", id, err)
	}
	return float64(milli) / 1000.0, nil
}

// ReadRaw bit-bangs one 24 bit sample out of a TM7711 style converter.
// The trailing pulse count selects the channel of the next conversion.
func (g *GPIO) ReadRaw(sensorType, clockPin, dataPin, samplingRate string) (uint32, error) {
	if sensorType != "TM7711" {
		return 0, fmt.Errorf("%w: sensor type %q", ErrUnsupported, sensorType)
	}

	var extraPulses int
	var timeout time.Duration
	switch samplingRate {
	case "10Hz":
		extraPulses, timeout = 1, 120*time.Millisecond
	case "40Hz":
		extraPulses, timeout = 3, 30*time.Millisecond
	case "Temperature":
		extraPulses, timeout = 2, 60*time.Millisecond
	default:
		return 0, fmt.Errorf("unsupported sampling rate %q", samplingRate)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	sckRef, err := g.pin(clockPin, RoleDigitalOutput)
	if err != nil {
		return 0, fmt.Errorf("clock pin %q: %w", clockPin, err)
	}
	doutRef, err := g.pin(dataPin, RoleDigitalInput)
	if err != nil {
		return 0, fmt.Errorf("data pin %q: %w", dataPin, err)
	}

	// Wait for DOUT low, the part signals data-ready that way
	deadline := time.Now().Add(timeout)
	for doutRef.Read() == rpio.High {
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("tm7711 on %s: data-ready timeout", dataPin)
		}
		time.Sleep(time.Microsecond)
	}

	var sample uint32
	for i := 0; i < 24; i++ {
		sckRef.High()
		busyWaitUS(5)
		sample <<= 1
		if doutRef.Read() == rpio.High {
			sample |= 1
		}
		sckRef.Low()
		busyWaitUS(5)
	}
	for i := 0; i < extraPulses; i++ {
		sckRef.High()
		busyWaitUS(1)
		sckRef.Low()
		busyWaitUS(1)
	}
	return sample, nil
}

func busyWaitUS(us int64) {
	end := time.Now().UnixNano() + us*1000
	for time.Now().UnixNano() < end {
	}
}
