package ladder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWire(t *testing.T, raw string) *Wire {
	t.Helper()
	w, err := ParseWire(json.RawMessage(raw))
	require.NoError(t, err)
	return w
}

func TestParseWireRequiresNodes(t *testing.T) {
	_, err := ParseWire(json.RawMessage(`{"Wrong": []}`))
	require.Error(t, err)
	_, err = ParseWire(json.RawMessage(`not json`))
	require.Error(t, err)
}

func TestScanPassThrough(t *testing.T) {
	ev, drv := newEvaluator(t, `[
		{"Name": "dig_in_1", "Type": "Digital Input", "Pin": 5},
		{"Name": "dig_out_1", "Type": "Digital Output", "Pin": 12}
	]`)
	w := mustWire(t, `{"Nodes": [
		{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
	]}`)

	// input low, inverted contact conducts
	ev.ScanWire(w)
	assert.True(t, ev.Store().ReadBool("dig_out_1"))

	drv.SetInput("dig_in_1", true)
	ev.ScanWire(w)
	assert.False(t, ev.Store().ReadBool("dig_out_1"))
}

func TestScanCompareAndMath(t *testing.T) {
	ev, _ := newEvaluator(t, `[
		{"Name": "num_1", "Type": "Number", "Value": 30},
		{"Name": "num_2", "Type": "Number", "Value": 12},
		{"Name": "num_3", "Type": "Number", "Value": 0},
		{"Name": "bool_1", "Type": "Boolean", "Value": false}
	]`)
	w := mustWire(t, `{"Nodes": [
		{"Type": "LadderElement", "ElementType": "GreaterCompare", "ComboBoxValues": ["num_1", "num_2"]},
		{"Type": "LadderElement", "ElementType": "AddMath", "ComboBoxValues": ["num_1", "num_2", "num_3"]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["bool_1"]}
	]}`)

	ev.ScanWire(w)
	assert.Equal(t, 42.0, ev.Store().ReadNumber("num_3"))
	assert.True(t, ev.Store().ReadBool("bool_1"))

	// compare goes false, coil follows, sum stays (no new rising edge)
	ev.Store().WriteNumber("num_1", 5)
	ev.ScanWire(w)
	assert.Equal(t, 42.0, ev.Store().ReadNumber("num_3"))
	assert.False(t, ev.Store().ReadBool("bool_1"))
}

func TestScanBranchOR(t *testing.T) {
	ev, drv := newEvaluator(t, `[
		{"Name": "dig_in_1", "Type": "Digital Input", "Pin": 5},
		{"Name": "dig_in_2", "Type": "Digital Input", "Pin": 6},
		{"Name": "dig_out_1", "Type": "Digital Output", "Pin": 12}
	]`)
	w := mustWire(t, `{"Nodes": [
		{"Type": "Branch",
		 "Nodes1": [{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]}],
		 "Nodes2": [{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_2"]}]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
	]}`)

	// frozen truth table with inverted contact semantics
	cases := []struct {
		in1, in2, out bool
	}{
		{false, false, true},
		{false, true, true},
		{true, false, true},
		{true, true, false},
	}
	for _, tc := range cases {
		drv.SetInput("dig_in_1", tc.in1)
		drv.SetInput("dig_in_2", tc.in2)
		ev.ScanWire(w)
		got := ev.Store().ReadBool("dig_out_1")
		assert.Equal(t, tc.out, got, "in1=%v in2=%v", tc.in1, tc.in2)
	}
}

func TestScanBranchWithTrailingCoilInChild(t *testing.T) {
	ev, drv := newEvaluator(t, `[
		{"Name": "dig_in_1", "Type": "Digital Input", "Pin": 5},
		{"Name": "bool_1", "Type": "Boolean", "Value": false},
		{"Name": "dig_out_1", "Type": "Digital Output", "Pin": 12}
	]`)
	w := mustWire(t, `{"Nodes": [
		{"Type": "Branch",
		 "Nodes1": [
			{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]},
			{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["bool_1"]}
		 ],
		 "Nodes2": [{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_1"]}]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
	]}`)

	// child condition true: the stray coil fires
	ev.ScanWire(w)
	assert.True(t, ev.Store().ReadBool("bool_1"))
	assert.True(t, ev.Store().ReadBool("dig_out_1"))

	// child condition false: the stray coil is skipped, not driven low
	drv.SetInput("dig_in_1", true)
	ev.ScanWire(w)
	assert.True(t, ev.Store().ReadBool("bool_1"))
	assert.False(t, ev.Store().ReadBool("dig_out_1"))
}

func TestScanOffDelayReplacesCondition(t *testing.T) {
	ev, drv := newEvaluator(t, `[
		{"Name": "dig_in_1", "Type": "Digital Input", "Pin": 5},
		{"Name": "dig_in_2", "Type": "Digital Input", "Pin": 6},
		{"Name": "timer_1", "Type": "Timer", "PT": 1000},
		{"Name": "dig_out_1", "Type": "Digital Output", "Pin": 12}
	]`)
	// dig_in_2 high makes its inverted contact false, which would kill the
	// rung if the off-delay ANDed instead of replacing
	drv.SetInput("dig_in_2", true)
	w := mustWire(t, `{"Nodes": [
		{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["dig_in_2"]},
		{"Type": "LadderElement", "ElementType": "OffDelayTimer", "ComboBoxValues": ["timer_1"]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
	]}`)

	ev.ScanWire(w)
	assert.False(t, ev.Store().ReadBool("dig_out_1"))

	// feed the timer a true condition once, its held output then replaces
	// the dead series condition
	drv.SetInput("dig_in_2", false)
	ev.ScanWire(w)
	assert.True(t, ev.Store().ReadBool("dig_out_1"))

	drv.SetInput("dig_in_2", true)
	ev.ScanWire(w)
	assert.True(t, ev.Store().ReadBool("dig_out_1"), "off-delay holds through the dead series")
}

func TestScanEmptyAndUnknownNodes(t *testing.T) {
	ev, _ := newEvaluator(t, `[
		{"Name": "bool_1", "Type": "Boolean", "Value": false},
		{"Name": "dig_out_1", "Type": "Digital Output", "Pin": 12}
	]`)

	// empty node list is a no-op
	ev.ScanWire(&Wire{Nodes: []Node{}})

	// unknown node type drops the condition
	w := mustWire(t, `{"Nodes": [
		{"Type": "Mystery"},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
	]}`)
	ev.ScanWire(w)
	assert.False(t, ev.Store().ReadBool("dig_out_1"))

	// unknown element type keeps the condition
	w = mustWire(t, `{"Nodes": [
		{"Type": "LadderElement", "ElementType": "FancyNewThing", "ComboBoxValues": ["bool_1"]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["dig_out_1"]}
	]}`)
	ev.ScanWire(w)
	assert.True(t, ev.Store().ReadBool("dig_out_1"))
}

func TestReferences(t *testing.T) {
	w := mustWire(t, `{"Nodes": [
		{"Type": "Branch",
		 "Nodes1": [{"Type": "LadderElement", "ElementType": "NOContact", "ComboBoxValues": ["a"]}],
		 "Nodes2": [{"Type": "LadderElement", "ElementType": "GreaterCompare", "ComboBoxValues": ["b", "c"]}]},
		{"Type": "LadderElement", "ElementType": "Coil", "ComboBoxValues": ["d"]}
	]}`)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, References(w.Nodes))
}
