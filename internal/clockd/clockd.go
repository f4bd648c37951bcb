package clockd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/engine"
)

const tickPeriod = time.Second

// Updater writes the wall clock into every "Current Time" variable once
// per second, encoded as HH*10000 + MM*100 + SS. Without a time source
// the value simply stays where it was.
type Updater struct {
	engine *engine.Engine
	logger *zap.Logger
	now    func() time.Time
}

func New(eng *engine.Engine, logger *zap.Logger) *Updater {
	return &Updater{engine: eng, logger: logger, now: time.Now}
}

// SetClock replaces the time source, for tests.
func (u *Updater) SetClock(now func() time.Time) { u.now = now }

// Run updates until the context ends.
func (u *Updater) Run(ctx context.Context) {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.tick()
		}
	}
}

func (u *Updater) tick() {
	store := u.engine.Store()
	if store == nil {
		return
	}
	store.UpdateCurrentTime(Encode(u.now()))
}

// Encode is the HHMMSS encoding used by the Current Time variable.
func Encode(t time.Time) float64 {
	return float64(t.Hour()*10000 + t.Minute()*100 + t.Second())
}
