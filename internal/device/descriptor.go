package device

import (
	"encoding/json"
	"fmt"
)

// PinRole classifies what a symbolic pin name stands for.
type PinRole int

const (
	RoleDigitalInput PinRole = iota
	RoleDigitalOutput
	RoleAnalogInput
	RoleDACOutput
	RoleOneWireBus
)

func (r PinRole) String() string {
	switch r {
	case RoleDigitalInput:
		return "digital_input"
	case RoleDigitalOutput:
		return "digital_output"
	case RoleAnalogInput:
		return "analog_input"
	case RoleDACOutput:
		return "dac_output"
	case RoleOneWireBus:
		return "one_wire_bus"
	}
	return "unknown"
}

// Pin binds a symbolic name to a physical pin id.
type Pin struct {
	Name string
	ID   int
	Role PinRole
}

// OneWireSensor is one logical sensor hanging off a OneWire bus.
type OneWireSensor struct {
	Name    string
	Type    string
	Address string // 16 hex chars
	BusPin  int
}

// Descriptor is the hardware pin map of the device. It is parsed once per
// apply and never mutated afterwards.
type Descriptor struct {
	DeviceName                    string     `json:"device_name"`
	LogicVoltage                  float64    `json:"logic_voltage"`
	DigitalInputs                 []int      `json:"digital_inputs"`
	DigitalInputsNames            []string   `json:"digital_inputs_names"`
	DigitalOutputs                []int      `json:"digital_outputs"`
	DigitalOutputsNames           []string   `json:"digital_outputs_names"`
	AnalogInputs                  []int      `json:"analog_inputs"`
	AnalogInputsNames             []string   `json:"analog_inputs_names"`
	DACOutputs                    []int      `json:"dac_outputs"`
	DACOutputsNames               []string   `json:"dac_outputs_names"`
	OneWireInputs                 []int      `json:"one_wire_inputs"`
	OneWireInputsNames            [][]string `json:"one_wire_inputs_names"`
	OneWireInputsDevicesTypes     [][]string `json:"one_wire_inputs_devices_types"`
	OneWireInputsDevicesAddresses [][]string `json:"one_wire_inputs_devices_addresses"`
	PWMChannels                   []int      `json:"pwm_channels"`
	MaxHardwareTimers             int        `json:"max_hardware_timers"`
	HasRTOS                       bool       `json:"has_rtos"`
	UART                          bool       `json:"UART"`
	I2C                           bool       `json:"I2C"`
	SPI                           bool       `json:"SPI"`
	USB                           bool       `json:"USB"`
	ParentDevices                 []string   `json:"parent_devices"`

	pins    map[string]Pin
	sensors map[string]OneWireSensor
}

// ParseDescriptor parses the "Device" object of a configuration document
// and builds the name lookup tables.
func ParseDescriptor(raw json.RawMessage) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("invalid device descriptor: %w", err)
	}
	if err := d.buildIndex(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Descriptor) buildIndex() error {
	d.pins = make(map[string]Pin)
	d.sensors = make(map[string]OneWireSensor)

	add := func(names []string, ids []int, role PinRole) error {
		if len(names) != len(ids) {
			return fmt.Errorf("%s: %d names for %d pins", role, len(names), len(ids))
		}
		for i, name := range names {
			if _, dup := d.pins[name]; dup {
				return fmt.Errorf("duplicate pin name %q", name)
			}
			d.pins[name] = Pin{Name: name, ID: ids[i], Role: role}
		}
		return nil
	}

	if err := add(d.DigitalInputsNames, d.DigitalInputs, RoleDigitalInput); err != nil {
		return err
	}
	if err := add(d.DigitalOutputsNames, d.DigitalOutputs, RoleDigitalOutput); err != nil {
		return err
	}
	if err := add(d.AnalogInputsNames, d.AnalogInputs, RoleAnalogInput); err != nil {
		return err
	}
	if err := add(d.DACOutputsNames, d.DACOutputs, RoleDACOutput); err != nil {
		return err
	}

	// OneWire: parallel per-bus listen von Name/Typ/Adresse
	for busIdx, busPin := range d.OneWireInputs {
		var names, types, addrs []string
		if busIdx < len(d.OneWireInputsNames) {
			names = d.OneWireInputsNames[busIdx]
		}
		if busIdx < len(d.OneWireInputsDevicesTypes) {
			types = d.OneWireInputsDevicesTypes[busIdx]
		}
		if busIdx < len(d.OneWireInputsDevicesAddresses) {
			addrs = d.OneWireInputsDevicesAddresses[busIdx]
		}
		if len(types) != len(names) || len(addrs) != len(names) {
			return fmt.Errorf("one_wire bus %d: parallel lists disagree (%d names, %d types, %d addresses)",
				busPin, len(names), len(types), len(addrs))
		}
		for i, name := range names {
			if _, dup := d.sensors[name]; dup {
				return fmt.Errorf("duplicate one_wire sensor name %q", name)
			}
			if _, dup := d.pins[name]; dup {
				return fmt.Errorf("one_wire sensor name %q collides with a pin name", name)
			}
			d.sensors[name] = OneWireSensor{
				Name:    name,
				Type:    types[i],
				Address: addrs[i],
				BusPin:  busPin,
			}
		}
	}
	return nil
}

// LookupPin resolves a symbolic pin name.
func (d *Descriptor) LookupPin(name string) (Pin, bool) {
	p, ok := d.pins[name]
	return p, ok
}

// LookupSensor resolves a logical OneWire sensor name.
func (d *Descriptor) LookupSensor(name string) (OneWireSensor, bool) {
	s, ok := d.sensors[name]
	return s, ok
}

// Sensors returns all configured OneWire sensors.
func (d *Descriptor) Sensors() []OneWireSensor {
	out := make([]OneWireSensor, 0, len(d.sensors))
	for _, s := range d.sensors {
		out = append(out, s)
	}
	return out
}

// OneWireBuses returns the bus pin ids in descriptor order.
func (d *Descriptor) OneWireBuses() []int {
	return d.OneWireInputs
}
