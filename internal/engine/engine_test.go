package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
	"github.com/KevinKickass/OpenLadderCore/internal/variables"
)

const testDescriptor = `{
	"device_name": "testboard",
	"digital_inputs": [5, 6],
	"digital_inputs_names": ["dig_in_1", "dig_in_2"],
	"digital_outputs": [12, 13],
	"digital_outputs_names": ["dig_out_1", "dig_out_2"]
}`

const testVariables = `[
	{"Name": "dig_in_1", "Type": "Digital Input", "Pin": 5},
	{"Name": "dig_in_2", "Type": "Digital Input", "Pin": 6},
	{"Name": "dig_out_1", "Type": "Digital Output", "Pin": 12},
	{"Name": "dig_out_2", "Type": "Digital Output", "Pin": 13}
]`

func testEngine(t *testing.T) (*Engine, *device.MemoryIO) {
	t.Helper()
	desc, err := device.ParseDescriptor(json.RawMessage(testDescriptor))
	require.NoError(t, err)
	drv := device.NewMemoryIO(desc, zap.NewNop())
	store, err := variables.Load(json.RawMessage(testVariables), desc, drv, zap.NewNop())
	require.NoError(t, err)

	e := New(drv, zap.NewNop(), WithScanPeriod(2*time.Millisecond), WithSpawnSpacing(0))
	e.Rebind(desc, store)
	t.Cleanup(e.Teardown)
	return e, drv
}

func wiresOf(raws ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(raws))
	for i, r := range raws {
		out[i] = json.RawMessage(r)
	}
	return out
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	assert.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestSpawnAndScan(t *testing.T) {
	e, drv := testEngine(t)
	e.Spawn(wiresOf(`{"Nodes": [
		{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
	]}`))
	require.Equal(t, 1, e.WireCount())

	// inverted contact conducts on a low input
	eventually(t, func() bool {
		v, _ := drv.DigitalOutputState("dig_out_1")
		return v
	})

	drv.SetInput("dig_in_1", true)
	eventually(t, func() bool {
		v, _ := drv.DigitalOutputState("dig_out_1")
		return !v
	})
}

func TestTeardownStopsScanning(t *testing.T) {
	e, drv := testEngine(t)
	e.Spawn(wiresOf(`{"Nodes": [
		{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
	]}`))
	eventually(t, func() bool {
		v, _ := drv.DigitalOutputState("dig_out_1")
		return v
	})

	e.Teardown()
	assert.Zero(t, e.WireCount())

	// no task left to track the input
	drv.SetInput("dig_in_1", true)
	time.Sleep(20 * time.Millisecond)
	v, _ := drv.DigitalOutputState("dig_out_1")
	assert.True(t, v, "output keeps its last driven level")
}

func TestSpawnSkipsMalformedWires(t *testing.T) {
	e, drv := testEngine(t)
	e.Spawn(wiresOf(
		`"just a string"`,
		`{"NoNodesHere": true}`,
		`{"Nodes": [
			{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]},
			{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
		]}`,
	))
	assert.Equal(t, 1, e.WireCount())
	eventually(t, func() bool {
		v, _ := drv.DigitalOutputState("dig_out_1")
		return v
	})
}

func TestMaxWiresCutsBatch(t *testing.T) {
	e, _ := testEngine(t)
	wire := `{"Nodes": [
		{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
	]}`
	opts := e // reuse the configured engine but with a tiny cap
	opts.maxWires = 2
	opts.Spawn(wiresOf(wire, wire, wire, wire))
	assert.Equal(t, 2, opts.WireCount())
}

func TestRebindDiscardsEdgeState(t *testing.T) {
	e, drv := testEngine(t)
	desc := e.Descriptor()

	vars := `[
		{"Name": "dig_in_1", "Type": "Digital Input", "Pin": 5},
		{"Name": "counter_1", "Type": "Counter", "PV": 10, "CV": 0, "CU": true}
	]`
	store, err := variables.Load(json.RawMessage(vars), desc, drv, zap.NewNop())
	require.NoError(t, err)
	e.Rebind(desc, store)

	drv.SetInput("dig_in_1", false) // NOContact conducts
	e.Spawn(wiresOf(`{"Nodes": [
		{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]},
		{"Type": "LadderElement", "ElementType": "CountUp", "ComboBoxValues": ["counter_1"]}
	]}`))

	// one rising edge, held condition does not count again
	eventually(t, func() bool {
		c, ok := e.Store().Counter("counter_1")
		return ok && c.CV == 1
	})
	time.Sleep(20 * time.Millisecond)
	c, _ := e.Store().Counter("counter_1")
	assert.Equal(t, 1.0, c.CV)

	// re-apply: same store content, fresh engine state, the held condition
	// counts once more because the edge history is gone
	e.Teardown()
	store2, err := variables.Load(json.RawMessage(vars), desc, drv, zap.NewNop())
	require.NoError(t, err)
	e.Rebind(desc, store2)
	e.Spawn(wiresOf(`{"Nodes": [
		{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]},
		{"Type": "LadderElement", "ElementType": "CountUp", "ComboBoxValues": ["counter_1"]}
	]}`))
	eventually(t, func() bool {
		c, ok := e.Store().Counter("counter_1")
		return ok && c.CV == 1
	})
}
