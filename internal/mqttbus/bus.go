package mqttbus

import (
	"context"
	"errors"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/config"
	"github.com/KevinKickass/OpenLadderCore/internal/storage"
)

// Ingestor receives raw configuration chunks from the config topic.
type Ingestor interface {
	Ingest(chunk []byte)
}

// BlobLoader hands out the persisted configuration for republishing.
type BlobLoader interface {
	LoadConfig() ([]byte, error)
}

// PeerSink absorbs flat variable deltas sent by other devices.
type PeerSink interface {
	UpdateFromPeers(data []byte)
}

// Bus is the MQTT side of the device: liveness session, configuration
// ingress and republish, peer deltas, and the outbound publish surface
// that the monitor and sync loops use.
type Bus struct {
	cfg      config.MQTTConfig
	client   mqtt.Client
	topics   Topics
	session  *Session
	ingestor Ingestor
	blobs    BlobLoader
	peers    PeerSink
	logger   *zap.Logger

	pub func(topic string, qos byte, payload []byte)
}

func New(cfg config.MQTTConfig, mac string, ingestor Ingestor, blobs BlobLoader, peers PeerSink, logger *zap.Logger) *Bus {
	b := &Bus{
		cfg:      cfg,
		topics:   NewTopics(mac),
		ingestor: ingestor,
		blobs:    blobs,
		peers:    peers,
		logger:   logger,
	}
	b.pub = b.pahoPublish
	b.session = NewSession(func(state string) {
		b.pub(b.topics.ConnectionResponse(), b.cfg.QoS, []byte(state))
	}, logger)
	return b
}

func (b *Bus) Topics() Topics     { return b.topics }
func (b *Bus) Session() *Session  { return b.session }
func (b *Bus) AppConnected() bool { return b.session.Connected() }

// Connected reports whether the broker link is up.
func (b *Bus) Connected() bool {
	return b.client != nil && b.client.IsConnectionOpen()
}

// Publish sends one payload, logging instead of returning the error.
// Callers are periodic loops that retry on the next tick anyway.
func (b *Bus) Publish(topic string, qos byte, payload []byte) {
	b.pub(topic, qos, payload)
}

// Start connects to the broker and runs the liveness watchdog until the
// context ends. Subscriptions are placed in the connect handler so they
// come back after every reconnect.
func (b *Bus) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.BrokerURI).
		SetClientID(b.clientID()).
		SetConnectTimeout(b.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(b.cfg.ReconnectDelay).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.logger.Warn("broker connection lost", zap.Error(err))
		})

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker %s: %w", b.cfg.BrokerURI, err)
	}

	go b.session.Watch(ctx)
	return nil
}

// Stop disconnects from the broker, letting in-flight messages drain.
func (b *Bus) Stop() {
	if b.client != nil {
		b.client.Disconnect(250)
	}
}

func (b *Bus) clientID() string {
	if b.cfg.ClientID != "" {
		return b.cfg.ClientID
	}
	return "olc-" + b.topics.MAC()
}

func (b *Bus) onConnect(c mqtt.Client) {
	// Nach jedem Reconnect neu subscriben
	subs := map[string]mqtt.MessageHandler{
		b.topics.ConnectionRequest(): b.handleConnection,
		b.topics.ConfigRequest():     b.handleConfigRequest,
		b.topics.ConfigDevice():      b.handleConfigChunk,
		b.topics.ChildrenListener():  b.handleChildrenDelta,
	}
	for topic, handler := range subs {
		if token := c.Subscribe(topic, b.cfg.QoS, handler); token.Wait() && token.Error() != nil {
			b.logger.Error("subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}
	b.logger.Info("connected to broker",
		zap.String("broker", b.cfg.BrokerURI), zap.String("mac", b.topics.MAC()))
}

func (b *Bus) handleConnection(_ mqtt.Client, m mqtt.Message) {
	b.session.Handle(string(m.Payload()))
}

func (b *Bus) handleConfigRequest(_ mqtt.Client, _ mqtt.Message) {
	b.republishConfig()
}

func (b *Bus) handleConfigChunk(_ mqtt.Client, m mqtt.Message) {
	b.ingestor.Ingest(m.Payload())
}

func (b *Bus) handleChildrenDelta(_ mqtt.Client, m mqtt.Message) {
	b.peers.UpdateFromPeers(m.Payload())
}

// republishConfig answers a config_request with the stored blob.
func (b *Bus) republishConfig() {
	if !b.session.Connected() {
		b.logger.Warn("config requested without an app session, ignoring")
		return
	}
	blob, err := b.blobs.LoadConfig()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.logger.Warn("config requested but nothing is stored")
		} else {
			b.logger.Error("failed to load stored config", zap.Error(err))
		}
		return
	}
	b.pub(b.topics.ConfigResponse(), b.cfg.QoS, blob)
}

func (b *Bus) pahoPublish(topic string, qos byte, payload []byte) {
	if b.client == nil {
		return
	}
	token := b.client.Publish(topic, qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		b.logger.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
