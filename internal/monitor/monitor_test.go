package monitor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
	"github.com/KevinKickass/OpenLadderCore/internal/engine"
	"github.com/KevinKickass/OpenLadderCore/internal/mqttbus"
	"github.com/KevinKickass/OpenLadderCore/internal/onewire"
	"github.com/KevinKickass/OpenLadderCore/internal/variables"
)

type fakeBus struct {
	app    bool
	topics mqttbus.Topics
	sent   map[string][][]byte
}

func (f *fakeBus) AppConnected() bool     { return f.app }
func (f *fakeBus) Topics() mqttbus.Topics { return f.topics }
func (f *fakeBus) Publish(topic string, _ byte, payload []byte) {
	f.sent[topic] = append(f.sent[topic], append([]byte(nil), payload...))
}

const monitorDescriptor = `{
	"device_name": "testboard",
	"digital_inputs": [5],
	"digital_inputs_names": ["dig_in_1"],
	"one_wire_inputs": [4],
	"one_wire_inputs_names": [["temp_1"]],
	"one_wire_inputs_devices_types": [["DS18B20"]],
	"one_wire_inputs_devices_addresses": [["28FF4A7791160321"]]
}`

func testMonitor(t *testing.T) (*Monitor, *fakeBus, *device.MemoryIO) {
	t.Helper()
	desc, err := device.ParseDescriptor(json.RawMessage(monitorDescriptor))
	require.NoError(t, err)
	drv := device.NewMemoryIO(desc, zap.NewNop())

	eng := engine.New(drv, zap.NewNop())
	t.Cleanup(eng.Teardown)
	store, err := variables.Load(json.RawMessage(`[
		{"Name": "dig_in_1", "Type": "Digital Input", "Pin": 5},
		{"Name": "bool_1", "Type": "Boolean", "Value": true}
	]`), desc, drv, zap.NewNop())
	require.NoError(t, err)
	eng.Rebind(desc, store)

	bus := &fakeBus{app: true, topics: mqttbus.NewTopics("AABBCCDDEEFF"), sent: map[string][][]byte{}}
	scanner := onewire.NewScanner(drv, zap.NewNop())
	return New(eng, bus, scanner, 100*time.Millisecond, zap.NewNop()), bus, drv
}

func TestSnapshotAndOneWireGoOut(t *testing.T) {
	m, bus, drv := testMonitor(t)
	drv.SetBusAddresses(4, []string{"28FF4A7791160321"})

	for i := 0; i < 3; i++ {
		m.publishOnce()
	}

	snaps := bus.sent["AABBCCDDEEFF/monitor"]
	require.Len(t, snaps, 3)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(snaps[0], &entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e["Name"].(string))
	}
	assert.Contains(t, names, "dig_in_1")
	assert.Contains(t, names, "bool_1")

	reports := bus.sent["AABBCCDDEEFF/one_wire"]
	require.Len(t, reports, 3)
	assert.JSONEq(t, `{"pins": [{"pin": 4, "addresses": ["28FF4A7791160321"]}]}`, string(reports[2]))
}

func TestNothingGoesOutWithoutAppSession(t *testing.T) {
	m, bus, _ := testMonitor(t)
	bus.app = false
	m.publishOnce()
	assert.Empty(t, bus.sent)
}

func TestLocalMirrorRunsWithoutAppSession(t *testing.T) {
	m, bus, _ := testMonitor(t)
	bus.app = false
	var mirrored [][]byte
	m.OnSnapshot(func(snap []byte) { mirrored = append(mirrored, snap) })

	m.publishOnce()
	assert.Len(t, mirrored, 1)
	assert.Empty(t, bus.sent)
}
