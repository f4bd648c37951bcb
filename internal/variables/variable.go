package variables

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the tagged variable variants.
type Kind int

const (
	KindDigitalInput Kind = iota
	KindDigitalOutput
	KindAnalogInput
	KindAnalogOutput
	KindOneWireInput
	KindADCSensor
	KindBoolean
	KindNumber
	KindCounter
	KindTimer
	KindTime
)

const maxNameLen = 63

// Variable is one tagged entry of the store. Only the fields of its Kind
// carry meaning, the rest stay zero.
type Variable struct {
	Name       string
	Kind       Kind
	TypeString string
	Pin        int

	Value float64
	Bool  bool

	// Counter
	PV, CV         float64
	CU, CD, QU, QD bool

	// Timer
	PT, ET float64
	IN, Q  bool

	// ADC Sensor
	SensorType   string
	ClockPin     string
	DataPin      string
	MapLow       float64
	MapHigh      float64
	Gain         float64
	SamplingRate string
}

// rawVariable mirrors the field names the authoring tool sends. ADC fields
// arrive with spaces in the keys, the snapshot writes them without.
type rawVariable struct {
	Name  string          `json:"Name"`
	Type  string          `json:"Type"`
	Pin   int             `json:"Pin"`
	Value json.RawMessage `json:"Value"`

	PV float64 `json:"PV"`
	CV float64 `json:"CV"`
	CU bool    `json:"CU"`
	CD bool    `json:"CD"`
	QU bool    `json:"QU"`
	QD bool    `json:"QD"`

	PT float64 `json:"PT"`
	ET float64 `json:"ET"`
	IN bool    `json:"IN"`
	Q  bool    `json:"Q"`

	SensorType   string  `json:"Sensor Type"`
	ClockPin     string  `json:"PD_SCK"`
	DataPin      string  `json:"DOUT"`
	MapLow       float64 `json:"Map Low"`
	MapHigh      float64 `json:"Map High"`
	Gain         float64 `json:"Gain"`
	SamplingRate string  `json:"Sampling Rate"`
}

func kindFromType(t string) Kind {
	switch t {
	case "Digital Input":
		return KindDigitalInput
	case "Digital Output":
		return KindDigitalOutput
	case "Analog Input":
		return KindAnalogInput
	case "Analog Output":
		return KindAnalogOutput
	case "One Wire Input":
		return KindOneWireInput
	case "ADC Sensor":
		return KindADCSensor
	case "Boolean":
		return KindBoolean
	case "Number":
		return KindNumber
	case "Counter":
		return KindCounter
	case "Timer":
		return KindTimer
	}
	// Everything else ("Time", "Current Time") is a plain time scalar.
	return KindTime
}

func parseVariable(raw json.RawMessage) (*Variable, error) {
	var rv rawVariable
	if err := json.Unmarshal(raw, &rv); err != nil {
		return nil, fmt.Errorf("invalid variable entry: %w", err)
	}
	if rv.Name == "" {
		return nil, fmt.Errorf("variable without a name")
	}
	if len(rv.Name) > maxNameLen {
		return nil, fmt.Errorf("variable name %q exceeds %d chars", rv.Name, maxNameLen)
	}

	v := &Variable{
		Name:       rv.Name,
		Kind:       kindFromType(rv.Type),
		TypeString: rv.Type,
		Pin:        rv.Pin,
	}

	switch v.Kind {
	case KindBoolean:
		// Boolean Value kommt als JSON bool, alles andere als Zahl
		if len(rv.Value) > 0 {
			if err := json.Unmarshal(rv.Value, &v.Bool); err != nil {
				return nil, fmt.Errorf("variable %q: %w", rv.Name, err)
			}
		}
	case KindNumber, KindTime, KindOneWireInput:
		if len(rv.Value) > 0 {
			if err := json.Unmarshal(rv.Value, &v.Value); err != nil {
				return nil, fmt.Errorf("variable %q: %w", rv.Name, err)
			}
		}
	case KindCounter:
		v.PV, v.CV = rv.PV, rv.CV
		v.CU, v.CD = rv.CU, rv.CD
		v.QU = v.CV >= v.PV
		v.QD = v.CV <= 0
	case KindTimer:
		v.PT, v.ET = rv.PT, rv.ET
		v.IN, v.Q = rv.IN, rv.Q
		if v.PT > 0 && v.ET > v.PT {
			v.ET = v.PT
		}
		if v.ET < 0 {
			v.ET = 0
		}
	case KindADCSensor:
		v.SensorType = rv.SensorType
		v.ClockPin = rv.ClockPin
		v.DataPin = rv.DataPin
		v.MapLow, v.MapHigh = rv.MapLow, rv.MapHigh
		v.Gain = rv.Gain
		v.SamplingRate = rv.SamplingRate
		if len(rv.Value) > 0 {
			if err := json.Unmarshal(rv.Value, &v.Value); err != nil {
				return nil, fmt.Errorf("variable %q: %w", rv.Name, err)
			}
		}
	}
	return v, nil
}
