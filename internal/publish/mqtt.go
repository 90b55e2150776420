// Package publish sends readings to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	cfgpkg "github.com/luhtfiimanal/go-mhz19b/internal/config"
	"github.com/luhtfiimanal/go-mhz19b/internal/monitor"
)

// DefaultTimeout bounds connecting and each publish.
const DefaultTimeout = 5 * time.Second

// client is the subset of paho.Client used here.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher publishes each reading as JSON to a topic.
type Publisher struct {
	c       client
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
	log     *zap.Logger
}

// Connect dials the broker and returns a Publisher for port.
func Connect(cfg cfgpkg.MQTTConfig, port string, log *zap.Logger) (*Publisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "co2mon-" + uuid.NewString()
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(DefaultTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(DefaultTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	log.Info("connected to mqtt broker", zap.String("broker", cfg.Broker), zap.String("client_id", clientID))
	return newPublisher(c, cfg, port, log), nil
}

func newPublisher(c client, cfg cfgpkg.MQTTConfig, port string, log *zap.Logger) *Publisher {
	return &Publisher{
		c:       c,
		topic:   Topic(cfg.Topic, port),
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: DefaultTimeout,
		log:     log,
	}
}

// Topic expands {port} in pattern with a topic-safe form of the port name:
// "/dev/ttyAMA0" becomes "ttyAMA0".
func Topic(pattern, port string) string {
	name := strings.TrimPrefix(port, "/dev/")
	name = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(name)
	return strings.ReplaceAll(pattern, "{port}", name)
}

// Payload encodes a reading.
func Payload(r monitor.Reading) ([]byte, error) {
	return json.Marshal(r)
}

// Record implements monitor.Recorder.
func (p *Publisher) Record(_ context.Context, r monitor.Reading) error {
	payload, err := Payload(r)
	if err != nil {
		return err
	}
	token := p.c.Publish(p.topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt publish %s: timeout", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", p.topic, err)
	}
	p.log.Debug("published reading", zap.String("topic", p.topic), zap.Int("ppm", int(r.PPM)))
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.c.Disconnect(250)
}
