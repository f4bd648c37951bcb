package device

import "errors"

var (
	ErrUnknownPin  = errors.New("unknown pin name")
	ErrNotOutput   = errors.New("pin is not an output")
	ErrUnsupported = errors.New("operation not supported by driver")
)

// DigitalIO reads inputs and drives outputs addressed by symbolic pin name.
// Reading back an output returns the last driven level.
type DigitalIO interface {
	ReadDigital(name string) (bool, error)
	WriteDigital(name string, v bool) error
	DigitalOutputState(name string) (bool, error)
}

// AnalogIO covers analog inputs and DAC outputs. DAC values are 8 bit.
type AnalogIO interface {
	ReadAnalog(name string) (float64, error)
	WriteAnalog(name string, v uint8) error
	AnalogOutputState(name string) (float64, error)
}

// OneWireIO reads a cached-or-live value for a logical sensor name and
// enumerates raw device addresses on a bus pin.
type OneWireIO interface {
	ReadOneWire(name string) (float64, error)
	SearchBus(busPin int) ([]string, error)
}

// ADCReader reads one raw sample from a bit-banged ADC frontend.
type ADCReader interface {
	ReadRaw(sensorType, clockPin, dataPin, samplingRate string) (uint32, error)
}

// IO bundles every driver port the runtime consumes.
type IO interface {
	DigitalIO
	AnalogIO
	OneWireIO
	ADCReader
}
