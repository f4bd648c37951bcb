//go:build !linux

package device

import (
	"errors"

	"go.uber.org/zap"
)

// GPIO is only available on linux targets with a mapped gpio controller.
type GPIO struct{}

func NewGPIO(desc *Descriptor, logger *zap.Logger) (*GPIO, error) {
	return nil, errors.New("gpio driver requires linux")
}

func (g *GPIO) Rebind(desc *Descriptor)                       {}
func (g *GPIO) Close() error                                  { return nil }
func (g *GPIO) ReadDigital(name string) (bool, error)         { return false, ErrUnsupported }
func (g *GPIO) WriteDigital(name string, v bool) error        { return ErrUnsupported }
func (g *GPIO) DigitalOutputState(name string) (bool, error)  { return false, ErrUnsupported }
func (g *GPIO) ReadAnalog(name string) (float64, error)       { return 0, ErrUnsupported }
func (g *GPIO) WriteAnalog(name string, v uint8) error        { return ErrUnsupported }
func (g *GPIO) AnalogOutputState(name string) (float64, error) { return 0, ErrUnsupported }
func (g *GPIO) ReadOneWire(name string) (float64, error)      { return 0, ErrUnsupported }
func (g *GPIO) SearchBus(busPin int) ([]string, error)        { return nil, ErrUnsupported }
func (g *GPIO) ReadRaw(sensorType, clockPin, dataPin, samplingRate string) (uint32, error) {
	return 0, ErrUnsupported
}
