package mqttbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	presentTimeout = 10 * time.Second
	watchdogPeriod = time.Second
)

// Session tracks whether the companion app currently talks to the
// device. The monitor publisher and the config republish path only run
// while a session is open.
type Session struct {
	mu          sync.Mutex
	connected   bool
	lastPresent time.Time

	notify func(state string)
	logger *zap.Logger
	now    func() time.Time
}

func NewSession(notify func(state string), logger *zap.Logger) *Session {
	return &Session{notify: notify, logger: logger, now: time.Now}
}

// SetClock replaces the time source, for tests.
func (s *Session) SetClock(now func() time.Time) { s.now = now }

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Handle processes one liveness payload from the connection topic.
func (s *Session) Handle(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch msg {
	case MsgConnect:
		s.connected = true
		s.lastPresent = s.now()
		s.logger.Info("app connected")
		s.notify(MsgConnected)
	case MsgPresent:
		s.lastPresent = s.now()
	case MsgDisconnect:
		s.dropLocked("app disconnected")
	default:
		s.logger.Warn("unknown liveness message", zap.String("payload", msg))
	}
}

// Watch expires the session when the app stops sending Present.
func (s *Session) Watch(ctx context.Context) {
	ticker := time.NewTicker(watchdogPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Session) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected && s.now().Sub(s.lastPresent) > presentTimeout {
		s.dropLocked("app heartbeat timed out")
	}
}

func (s *Session) dropLocked(reason string) {
	if !s.connected {
		return
	}
	s.connected = false
	s.logger.Info(reason)
	s.notify(MsgDisconnected)
}
