package mqttbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/config"
	"github.com/KevinKickass/OpenLadderCore/internal/storage"
)

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeBlobs struct {
	blob []byte
	err  error
}

func (f *fakeBlobs) LoadConfig() ([]byte, error) { return f.blob, f.err }

type fakeIngestor struct{ chunks [][]byte }

func (f *fakeIngestor) Ingest(chunk []byte) {
	f.chunks = append(f.chunks, append([]byte(nil), chunk...))
}

type fakePeers struct{ deltas [][]byte }

func (f *fakePeers) UpdateFromPeers(data []byte) {
	f.deltas = append(f.deltas, append([]byte(nil), data...))
}

func testBus(t *testing.T) (*Bus, *[]published, *fakeBlobs, *fakeIngestor, *fakePeers) {
	t.Helper()
	blobs := &fakeBlobs{err: storage.ErrNotFound}
	ing := &fakeIngestor{}
	peers := &fakePeers{}
	b := New(config.MQTTConfig{QoS: 1}, "AABBCCDDEEFF", ing, blobs, peers, zap.NewNop())
	var sent []published
	b.pub = func(topic string, qos byte, payload []byte) {
		sent = append(sent, published{topic, qos, append([]byte(nil), payload...)})
	}
	return b, &sent, blobs, ing, peers
}

func TestTopicTable(t *testing.T) {
	topics := NewTopics("AABBCCDDEEFF")
	assert.Equal(t, "AABBCCDDEEFF/connection_request", topics.ConnectionRequest())
	assert.Equal(t, "AABBCCDDEEFF/connection_response", topics.ConnectionResponse())
	assert.Equal(t, "AABBCCDDEEFF/config_request", topics.ConfigRequest())
	assert.Equal(t, "AABBCCDDEEFF/config_response", topics.ConfigResponse())
	assert.Equal(t, "AABBCCDDEEFF/config_device", topics.ConfigDevice())
	assert.Equal(t, "AABBCCDDEEFF/monitor", topics.Monitor())
	assert.Equal(t, "AABBCCDDEEFF/one_wire", topics.OneWire())
	assert.Equal(t, "AABBCCDDEEFF/children_listener", topics.ChildrenListener())
	assert.Equal(t, "112233445566/children_listener", topics.ChildrenListenerOf("112233445566"))
}

func TestFormatMAC(t *testing.T) {
	for raw, want := range map[string]string{
		"aa:bb:cc:dd:ee:ff": "AABBCCDDEEFF",
		"AA-BB-CC-DD-EE-FF": "AABBCCDDEEFF",
		"aabbccddeeff":      "AABBCCDDEEFF",
	} {
		got, err := FormatMAC(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := FormatMAC("aa:bb:cc")
	assert.Error(t, err)
	_, err = FormatMAC("zz:zz:zz:zz:zz:zz")
	assert.Error(t, err)
}

func TestResolveMACPrefersOverride(t *testing.T) {
	got, err := ResolveMAC("de:ad:be:ef:00:01")
	require.NoError(t, err)
	assert.Equal(t, "DEADBEEF0001", got)
}

func TestSessionNotifyPublishesOnConnectionResponse(t *testing.T) {
	b, sent, _, _, _ := testBus(t)
	b.session.Handle(MsgConnect)

	require.Len(t, *sent, 1)
	assert.Equal(t, "AABBCCDDEEFF/connection_response", (*sent)[0].topic)
	assert.Equal(t, []byte(MsgConnected), (*sent)[0].payload)
	assert.True(t, b.AppConnected())
}

func TestRepublishNeedsAppSession(t *testing.T) {
	b, sent, blobs, _, _ := testBus(t)
	blobs.blob, blobs.err = []byte(`{"Device":{}}`), nil

	b.republishConfig()
	assert.Empty(t, *sent, "no session, nothing goes out")
}

func TestRepublishSendsStoredBlob(t *testing.T) {
	b, sent, blobs, _, _ := testBus(t)
	blob := []byte(`{"Device":{"device_name":"x"},"Variables":[],"Wires":[]}`)
	blobs.blob, blobs.err = blob, nil
	b.session.Handle(MsgConnect)

	b.republishConfig()
	require.Len(t, *sent, 2)
	assert.Equal(t, "AABBCCDDEEFF/config_response", (*sent)[1].topic)
	assert.Equal(t, blob, (*sent)[1].payload)
}

func TestRepublishWithoutStoredBlobIsQuiet(t *testing.T) {
	b, sent, _, _, _ := testBus(t)
	b.session.Handle(MsgConnect)

	b.republishConfig()
	assert.Len(t, *sent, 1, "only the Connected notice went out")
}

func TestRepublishLoadError(t *testing.T) {
	b, sent, blobs, _, _ := testBus(t)
	blobs.err = errors.New("disk on fire")
	b.session.Handle(MsgConnect)

	b.republishConfig()
	assert.Len(t, *sent, 1)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestConfigChunkGoesToIngestor(t *testing.T) {
	b, _, _, ing, _ := testBus(t)
	b.handleConfigChunk(nil, fakeMessage{payload: []byte(`{"Device":`)})
	require.Len(t, ing.chunks, 1)
	assert.Equal(t, []byte(`{"Device":`), ing.chunks[0])
}

func TestChildrenDeltaGoesToPeerSink(t *testing.T) {
	b, _, _, _, peers := testBus(t)
	b.handleChildrenDelta(nil, fakeMessage{payload: []byte(`{"bool_1":true}`)})
	require.Len(t, peers.deltas, 1)
	assert.Equal(t, []byte(`{"bool_1":true}`), peers.deltas[0])
}

func TestClientIDFallsBackToMAC(t *testing.T) {
	b, _, _, _, _ := testBus(t)
	assert.Equal(t, "olc-AABBCCDDEEFF", b.clientID())

	b.cfg.ClientID = "bench-device"
	assert.Equal(t, "bench-device", b.clientID())
}
