package mqttbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testSession() (*Session, *[]string, *time.Time) {
	var sent []string
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession(func(state string) { sent = append(sent, state) }, zap.NewNop())
	s.SetClock(func() time.Time { return now })
	return s, &sent, &now
}

func TestConnectOpensSession(t *testing.T) {
	s, sent, _ := testSession()
	assert.False(t, s.Connected())

	s.Handle(MsgConnect)
	assert.True(t, s.Connected())
	assert.Equal(t, []string{MsgConnected}, *sent)
}

func TestPresentKeepsSessionAlive(t *testing.T) {
	s, sent, now := testSession()
	s.Handle(MsgConnect)

	for i := 0; i < 5; i++ {
		*now = now.Add(8 * time.Second)
		s.Handle(MsgPresent)
		s.sweep()
	}
	assert.True(t, s.Connected())
	assert.Equal(t, []string{MsgConnected}, *sent)
}

func TestHeartbeatTimeoutDropsSession(t *testing.T) {
	s, sent, now := testSession()
	s.Handle(MsgConnect)

	*now = now.Add(11 * time.Second)
	s.sweep()
	assert.False(t, s.Connected())
	assert.Equal(t, []string{MsgConnected, MsgDisconnected}, *sent)
}

func TestExplicitDisconnect(t *testing.T) {
	s, sent, _ := testSession()
	s.Handle(MsgConnect)
	s.Handle(MsgDisconnect)

	assert.False(t, s.Connected())
	assert.Equal(t, []string{MsgConnected, MsgDisconnected}, *sent)

	// a second Disconnect must not publish again
	s.Handle(MsgDisconnect)
	assert.Equal(t, []string{MsgConnected, MsgDisconnected}, *sent)
}

func TestUnknownLivenessMessageIsIgnored(t *testing.T) {
	s, sent, _ := testSession()
	s.Handle("Hello")
	assert.False(t, s.Connected())
	assert.Empty(t, *sent)
}

func TestSweepWithoutSessionIsQuiet(t *testing.T) {
	s, sent, now := testSession()
	*now = now.Add(time.Hour)
	s.sweep()
	assert.Empty(t, *sent)
}
