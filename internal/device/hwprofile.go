package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DriverGPIO   = "gpio"
	DriverMemory = "memory"
)

// HardwareProfile describes the board the runtime is deployed on. The
// profile is optional, without one the runtime probes the gpio
// controller and falls back to the in-memory driver.
type HardwareProfile struct {
	Board  string `yaml:"board"`
	Driver string `yaml:"driver"`
	Pins   struct {
		Digital []int `yaml:"digital"`
		Analog  []int `yaml:"analog"`
		OneWire []int `yaml:"one_wire"`
	} `yaml:"pins"`
}

func LoadHardwareProfile(path string) (*HardwareProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hardware profile: %w", err)
	}
	var p HardwareProfile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse hardware profile: %w", err)
	}
	if p.Driver == "" {
		p.Driver = DriverGPIO
	}
	if p.Driver != DriverGPIO && p.Driver != DriverMemory {
		return nil, fmt.Errorf("unknown driver %q in hardware profile", p.Driver)
	}
	return &p, nil
}

// AllowsDigital reports whether the profile permits the pin as digital
// io. An empty pin list means the board does not restrict pins.
func (p *HardwareProfile) AllowsDigital(pin int) bool {
	return allows(p.Pins.Digital, pin)
}

func (p *HardwareProfile) AllowsAnalog(pin int) bool {
	return allows(p.Pins.Analog, pin)
}

func (p *HardwareProfile) AllowsOneWire(pin int) bool {
	return allows(p.Pins.OneWire, pin)
}

func allows(pins []int, pin int) bool {
	if len(pins) == 0 {
		return true
	}
	for _, p := range pins {
		if p == pin {
			return true
		}
	}
	return false
}
