package variables

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Snapshot serializes every variable in document order, augmented with the
// live value of pin-bound entries. The monitor topic and the read
// characteristic both publish this document.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]any, 0, len(s.order))
	for _, name := range s.order {
		v := s.vars[name]
		switch v.Kind {
		case KindDigitalInput:
			live, _ := s.driver.ReadDigital(v.Name)
			out = append(out, ioBoolEntry{v.Name, v.TypeString, v.Pin, live})
		case KindDigitalOutput:
			live, _ := s.driver.DigitalOutputState(v.Name)
			out = append(out, ioBoolEntry{v.Name, v.TypeString, v.Pin, live})
		case KindAnalogInput:
			live, _ := s.driver.ReadAnalog(v.Name)
			out = append(out, ioNumEntry{v.Name, v.TypeString, v.Pin, live})
		case KindAnalogOutput:
			live, _ := s.driver.AnalogOutputState(v.Name)
			out = append(out, ioNumEntry{v.Name, v.TypeString, v.Pin, live})
		case KindOneWireInput:
			out = append(out, ioNumEntry{v.Name, v.TypeString, v.Pin, v.Value})
		case KindADCSensor:
			out = append(out, adcEntry{
				Name: v.Name, Type: v.TypeString, SensorType: v.SensorType,
				ClockPin: v.ClockPin, DataPin: v.DataPin,
				MapLow: v.MapLow, MapHigh: v.MapHigh, Gain: v.Gain,
				SamplingRate: v.SamplingRate, Value: v.Value,
			})
		case KindBoolean:
			out = append(out, boolEntry{v.Name, v.TypeString, v.Bool})
		case KindNumber, KindTime:
			out = append(out, numEntry{v.Name, v.TypeString, v.Value})
		case KindCounter:
			out = append(out, counterEntry{v.Name, v.TypeString, v.PV, v.CV, v.CU, v.CD, v.QU, v.QD})
		case KindTimer:
			out = append(out, timerEntry{v.Name, v.TypeString, v.PT, v.ET, v.IN, v.Q})
		}
	}
	return json.Marshal(out)
}

type ioBoolEntry struct {
	Name  string `json:"Name"`
	Type  string `json:"Type"`
	Pin   int    `json:"Pin"`
	Value bool   `json:"Value"`
}

type ioNumEntry struct {
	Name  string  `json:"Name"`
	Type  string  `json:"Type"`
	Pin   int     `json:"Pin"`
	Value float64 `json:"Value"`
}

type boolEntry struct {
	Name  string `json:"Name"`
	Type  string `json:"Type"`
	Value bool   `json:"Value"`
}

type numEntry struct {
	Name  string  `json:"Name"`
	Type  string  `json:"Type"`
	Value float64 `json:"Value"`
}

type counterEntry struct {
	Name string  `json:"Name"`
	Type string  `json:"Type"`
	PV   float64 `json:"PV"`
	CV   float64 `json:"CV"`
	CU   bool    `json:"CU"`
	CD   bool    `json:"CD"`
	QU   bool    `json:"QU"`
	QD   bool    `json:"QD"`
}

type timerEntry struct {
	Name string  `json:"Name"`
	Type string  `json:"Type"`
	PT   float64 `json:"PT"`
	ET   float64 `json:"ET"`
	IN   bool    `json:"IN"`
	Q    bool    `json:"Q"`
}

// adcEntry writes the ADC keys without the spaces the authoring tool uses.
type adcEntry struct {
	Name         string  `json:"Name"`
	Type         string  `json:"Type"`
	SensorType   string  `json:"SensorType"`
	ClockPin     string  `json:"PD_SCK"`
	DataPin      string  `json:"DOUT"`
	MapLow       float64 `json:"MapLow"`
	MapHigh      float64 `json:"MapHigh"`
	Gain         float64 `json:"Gain"`
	SamplingRate string  `json:"SamplingRate"`
	Value        float64 `json:"Value"`
}

// FlatDelta builds the {name: value} object published to parent devices.
// Only Boolean and Number variables take part in the exchange.
func (s *Store) FlatDelta() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flat := make(map[string]any)
	for _, name := range s.order {
		v := s.vars[name]
		switch v.Kind {
		case KindBoolean:
			flat[name] = v.Bool
		case KindNumber:
			flat[name] = v.Value
		}
	}
	return json.Marshal(flat)
}

// UpdateFromPeers overwrites matching Boolean and Number variables with the
// values of an inbound children_listener payload. Malformed payloads and
// unknown names are dropped without effect.
func (s *Store) UpdateFromPeers(data []byte) {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, raw := range flat {
		v := s.find(name)
		if v == nil {
			continue
		}
		switch v.Kind {
		case KindBoolean:
			var b bool
			if err := json.Unmarshal(raw, &b); err != nil {
				s.logger.Debug("peer update skipped", zap.String("name", name), zap.Error(err))
				continue
			}
			v.Bool = b
		case KindNumber:
			var n float64
			if err := json.Unmarshal(raw, &n); err != nil {
				s.logger.Debug("peer update skipped", zap.String("name", name), zap.Error(err))
				continue
			}
			v.Value = n
		}
	}
}
