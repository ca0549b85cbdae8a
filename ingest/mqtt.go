package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/webkin/webkin/kinematictree"
	"github.com/webkin/webkin/logging"
)

// MQTTConfig configures the MQTT broker ingest adapter.
type MQTTConfig struct {
	BrokerHost  string
	BrokerPort  int
	JointsTopic string
	TreeTopic   string
}

// MQTTAdapter subscribes to a broker's joints and tree topics and dispatches
// decoded payloads to the coordinator's callbacks. The underlying paho
// client runs its own reconnect loop; Connect only kicks off the first
// connection attempt.
type MQTTAdapter struct {
	cfg      MQTTConfig
	onTree   TreeHandler
	onJoints JointsHandler
	logger   logging.Logger

	client mqtt.Client
}

// NewMQTTAdapter builds an adapter from cfg. Connect must be called
// separately to start the transport thread.
func NewMQTTAdapter(cfg MQTTConfig, onTree TreeHandler, onJoints JointsHandler, logger logging.Logger) (*MQTTAdapter, error) {
	if cfg.BrokerHost == "" {
		return nil, &ErrNotConfigured{Transport: "mqtt", Field: "broker_host"}
	}
	return &MQTTAdapter{cfg: cfg, onTree: onTree, onJoints: onJoints, logger: logger}, nil
}

// Connect opens the broker connection and subscribes to both topics.
// Connection failure is logged and non-fatal: the paho client's own
// internal loop keeps retrying in the background.
func (a *MQTTAdapter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", a.cfg.BrokerHost, a.cfg.BrokerPort))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		a.subscribe(c)
	})

	a.client = mqtt.NewClient(opts)
	token := a.client.Connect()
	token.WaitTimeout(5 * time.Second)
	if err := token.Error(); err != nil {
		a.logger.Warnw("mqtt connect failed, client will keep retrying", "broker", a.cfg.BrokerHost, "error", err)
		return nil
	}
	return nil
}

func (a *MQTTAdapter) subscribe(c mqtt.Client) {
	if a.cfg.TreeTopic != "" {
		if token := c.Subscribe(a.cfg.TreeTopic, 1, a.handleTree); token.Wait() && token.Error() != nil {
			a.logger.Warnw("mqtt subscribe to tree topic failed", "topic", a.cfg.TreeTopic, "error", token.Error())
		}
	}
	if a.cfg.JointsTopic != "" {
		if token := c.Subscribe(a.cfg.JointsTopic, 0, a.handleJoints); token.Wait() && token.Error() != nil {
			a.logger.Warnw("mqtt subscribe to joints topic failed", "topic", a.cfg.JointsTopic, "error", token.Error())
		}
	}
}

func (a *MQTTAdapter) handleTree(_ mqtt.Client, msg mqtt.Message) {
	var doc kinematictree.NodeDoc
	if err := json.Unmarshal(msg.Payload(), &doc); err != nil {
		a.logger.Warnw("dropping malformed tree document from mqtt", "error", err)
		return
	}
	a.onTree(&doc)
}

func (a *MQTTAdapter) handleJoints(_ mqtt.Client, msg mqtt.Message) {
	var joints map[string]float64
	if err := json.Unmarshal(msg.Payload(), &joints); err != nil {
		a.logger.Warnw("dropping malformed joints payload from mqtt", "error", err)
		return
	}
	a.onJoints(joints)
}

// Disconnect closes the broker connection, unsubscribing implicitly.
func (a *MQTTAdapter) Disconnect() error {
	if a.client != nil && a.client.IsConnected() {
		a.client.Disconnect(250)
	}
	return nil
}

// IsConnected reports the underlying paho client's connection state.
func (a *MQTTAdapter) IsConnected() bool {
	return a.client != nil && a.client.IsConnected()
}

