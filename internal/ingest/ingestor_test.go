package ingest

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
	"github.com/KevinKickass/OpenLadderCore/internal/engine"
)

const testDoc = `{
	"Device": {
		"device_name": "testboard",
		"logic_voltage": 3.3,
		"digital_inputs": [5],
		"digital_inputs_names": ["dig_in_1"],
		"digital_outputs": [12],
		"digital_outputs_names": ["dig_out_1"],
		"parent_devices": []
	},
	"Variables": [
		{"Name": "dig_in_1", "Type": "Digital Input", "Pin": 5},
		{"Name": "dig_out_1", "Type": "Digital Output", "Pin": 12}
	],
	"Wires": [
		{"Nodes": [
			{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]},
			{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
		]}
	]
}`

type fakePersister struct {
	saved []byte
	calls int
}

func (f *fakePersister) SaveConfig(data []byte) error {
	f.saved = append([]byte(nil), data...)
	f.calls++
	return nil
}

func (f *fakePersister) LoadConfig() ([]byte, error) {
	if f.saved == nil {
		return nil, errors.New("no blob")
	}
	return f.saved, nil
}

func testIngestor(t *testing.T, opts ...Option) (*Ingestor, *engine.Engine, *device.MemoryIO, *fakePersister) {
	t.Helper()
	drv := device.NewMemoryIO(nil, zap.NewNop())
	eng := engine.New(drv, zap.NewNop(),
		engine.WithScanPeriod(2*time.Millisecond), engine.WithSpawnSpacing(0))
	t.Cleanup(eng.Teardown)
	persister := &fakePersister{}
	ing, err := New(eng, drv, persister, zap.NewNop(), opts...)
	require.NoError(t, err)
	return ing, eng, drv, persister
}

func TestSingleShotApply(t *testing.T) {
	ing, eng, drv, persister := testIngestor(t)
	ing.Ingest([]byte(testDoc))

	assert.Equal(t, 1, eng.WireCount())
	assert.JSONEq(t, testDoc, string(persister.saved))

	// the program actually runs
	assert.Eventually(t, func() bool {
		v, _ := drv.DigitalOutputState("dig_out_1")
		return v
	}, time.Second, 5*time.Millisecond)
}

func TestChunkedApplyMatchesSingleShot(t *testing.T) {
	ing, eng, _, persister := testIngestor(t)

	data := []byte(testDoc)
	for start := 0; start < len(data); start += 100 {
		end := start + 100
		if end > len(data) {
			end = len(data)
		}
		ing.Ingest(data[start:end])
	}

	assert.Equal(t, 1, eng.WireCount())
	assert.Equal(t, data, persister.saved, "stored blob equals the original bytes")
}

func TestStructuralErrorKeepsPreviousProgram(t *testing.T) {
	ing, eng, _, persister := testIngestor(t)
	ing.Ingest([]byte(testDoc))
	require.Equal(t, 1, eng.WireCount())
	firstSaves := persister.calls

	// complete JSON, wrong shape
	ing.Ingest([]byte(`{"Device": {"device_name": "x"}, "Variables": [], "Wires": "oops"}`))

	assert.Equal(t, 1, eng.WireCount(), "previous program keeps running")
	assert.Equal(t, firstSaves, persister.calls, "rejected document is not persisted")
}

func TestUndefinedWireReferenceIsRejected(t *testing.T) {
	ing, eng, _, _ := testIngestor(t)
	bad := `{
		"Device": {"device_name": "x"},
		"Variables": [{"Name": "bool_1", "Type": "Boolean", "Value": false}],
		"Wires": [{"Nodes": [
			{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["ghost"]},
			{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["bool_1"]}
		]}]
	}`
	ing.Ingest([]byte(bad))
	assert.Zero(t, eng.WireCount())
}

func TestLoadFromStorageSkipsRePersist(t *testing.T) {
	ing, eng, _, persister := testIngestor(t)
	persister.saved = []byte(testDoc)

	require.NoError(t, ing.LoadFromStorage())
	assert.Equal(t, 1, eng.WireCount())
	assert.Zero(t, persister.calls, "boot replay must not write the blob again")
}

func TestWindowExpiryDropsPartialBuffer(t *testing.T) {
	ing, eng, _, _ := testIngestor(t, WithWindow(30*time.Millisecond))

	data := []byte(testDoc)
	ing.Ingest(data[:50])
	time.Sleep(80 * time.Millisecond)

	// the rest alone is not a document, nothing applies
	ing.Ingest(data[50:])
	assert.Zero(t, eng.WireCount())

	// once the window has dropped the stray rest as well, a fresh complete
	// transfer still works
	time.Sleep(80 * time.Millisecond)
	ing.Ingest(data)
	assert.Equal(t, 1, eng.WireCount())
}

func TestOversizedBufferIsDropped(t *testing.T) {
	ing, eng, _, _ := testIngestor(t, WithMaxSize(64))
	ing.Ingest([]byte(`{"Device": {"device_name": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa`))
	ing.Ingest([]byte(`aaaa"}, "Variables": [], "Wires": []}`))
	assert.Zero(t, eng.WireCount())
}

func TestOnApplyCallback(t *testing.T) {
	ing, _, _, _ := testIngestor(t)
	var gotName string
	ing.OnApply(func(desc *device.Descriptor) { gotName = desc.DeviceName })
	ing.Ingest([]byte(testDoc))
	assert.Equal(t, "testboard", gotName)
}

func TestIdempotentApply(t *testing.T) {
	ing, eng, drv, _ := testIngestor(t)
	ing.Ingest([]byte(testDoc))
	require.Equal(t, 1, eng.WireCount())

	names := eng.Store().Names()
	ing.Ingest([]byte(testDoc))
	assert.Equal(t, 1, eng.WireCount())
	assert.Equal(t, names, eng.Store().Names())

	assert.Eventually(t, func() bool {
		v, _ := drv.DigitalOutputState("dig_out_1")
		return v
	}, time.Second, 5*time.Millisecond)
}

func TestDocumentRoundTripThroughStorage(t *testing.T) {
	ing, eng, _, persister := testIngestor(t)
	ing.Ingest([]byte(testDoc))
	require.Equal(t, 1, eng.WireCount())
	namesBefore := eng.Store().Names()

	// cold boot: new engine, same blob
	ing2, eng2, _, _ := testIngestor(t)
	p2 := ing2.persister.(*fakePersister)
	p2.saved = persister.saved
	require.NoError(t, ing2.LoadFromStorage())
	assert.Equal(t, 1, eng2.WireCount())
	assert.Equal(t, namesBefore, eng2.Store().Names())
}

func mustCompact(t *testing.T, raw string) string {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	out, err := json.Marshal(v)
	require.NoError(t, err)
	return string(out)
}
