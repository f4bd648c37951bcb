package system

import (
	"errors"

	"github.com/KevinKickass/OpenLadderCore/internal/engine"
	"github.com/KevinKickass/OpenLadderCore/internal/ingest"
	"github.com/KevinKickass/OpenLadderCore/internal/onewire"
	"github.com/KevinKickass/OpenLadderCore/internal/storage"
)

// ErrNoProgram is returned by the read surfaces while no program runs.
var ErrNoProgram = errors.New("no program is running")

// Core bundles the four runtime operations every transport exposes.
// REST and BLE end up here; the message bus and the monitor reach the
// same ingestor, blob store and store snapshot directly, so a monitor
// snapshot looks the same no matter which way the app asked for it.
type Core struct {
	engine   *engine.Engine
	blobs    *storage.Store
	ingestor *ingest.Ingestor
	scanner  *onewire.Scanner
}

func NewCore(eng *engine.Engine, blobs *storage.Store, ing *ingest.Ingestor, scanner *onewire.Scanner) *Core {
	return &Core{engine: eng, blobs: blobs, ingestor: ing, scanner: scanner}
}

// ConfigBlob returns the persisted configuration document verbatim.
func (c *Core) ConfigBlob() ([]byte, error) {
	return c.blobs.LoadConfig()
}

// Snapshot returns the current variable values as a JSON document.
func (c *Core) Snapshot() ([]byte, error) {
	store := c.engine.Store()
	if store == nil {
		return nil, ErrNoProgram
	}
	return store.Snapshot()
}

// OneWireReport runs a discovery pass over the configured buses.
func (c *Core) OneWireReport() ([]byte, error) {
	desc := c.engine.Descriptor()
	if desc == nil {
		return nil, ErrNoProgram
	}
	return c.scanner.Search(desc.OneWireBuses())
}

// Ingest feeds one configuration chunk into the collection window.
func (c *Core) Ingest(chunk []byte) {
	c.ingestor.Ingest(chunk)
}

func (c *Core) WireCount() int {
	return c.engine.WireCount()
}

// peerStore forwards parent deltas to whatever store is current.
// Deltas that arrive before the first apply are dropped.
type peerStore struct {
	engine *engine.Engine
}

func (p peerStore) UpdateFromPeers(data []byte) {
	if store := p.engine.Store(); store != nil {
		store.UpdateFromPeers(data)
	}
}
