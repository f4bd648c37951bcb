package clockd

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
	"github.com/KevinKickass/OpenLadderCore/internal/engine"
	"github.com/KevinKickass/OpenLadderCore/internal/variables"
)

func TestEncode(t *testing.T) {
	at := time.Date(2024, 4, 1, 13, 37, 42, 0, time.Local)
	assert.Equal(t, float64(133742), Encode(at))

	midnight := time.Date(2024, 4, 1, 0, 0, 0, 0, time.Local)
	assert.Zero(t, Encode(midnight))
}

func TestTickWritesCurrentTimeVariable(t *testing.T) {
	drv := device.NewMemoryIO(nil, zap.NewNop())
	eng := engine.New(drv, zap.NewNop())
	t.Cleanup(eng.Teardown)
	store, err := variables.Load(json.RawMessage(`[
		{"Name": "clock_1", "Type": "Current Time", "Value": 0},
		{"Name": "num_1", "Type": "Number", "Value": 5}
	]`), nil, drv, zap.NewNop())
	require.NoError(t, err)
	eng.Rebind(nil, store)

	u := New(eng, zap.NewNop())
	u.SetClock(func() time.Time {
		return time.Date(2024, 4, 1, 9, 5, 7, 0, time.Local)
	})
	u.tick()

	assert.Equal(t, float64(90507), store.ReadNumber("clock_1"))
	assert.Equal(t, float64(5), store.ReadNumber("num_1"), "other numbers untouched")
}

func TestTickWithoutProgramIsQuiet(t *testing.T) {
	drv := device.NewMemoryIO(nil, zap.NewNop())
	eng := engine.New(drv, zap.NewNop())
	t.Cleanup(eng.Teardown)

	u := New(eng, zap.NewNop())
	u.tick()
}
