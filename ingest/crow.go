package ingest

import (
	"context"
	"encoding/json"
	"net"
	"time"

	rdkutils "github.com/webkin/webkin/utils"

	"github.com/webkin/webkin/kinematictree"
	"github.com/webkin/webkin/logging"
)

// crowQoS bundles a topic's reliability parameters: qos 1 asks the broker
// for reliable delivery, qos 0 for fire-and-forget. Only qos is sent in the
// subscribe frame; ackPeriod is neither transmitted nor used for timing.
type crowQoS struct {
	qos       int
	ackPeriod time.Duration
}

// Default QoS per topic kind, grounded on the original listener's
// subscribe() parameters: the tree topic is subscribed reliable (qos=1,
// ack=100ms) since a missed tree document is expensive to be without;
// the joints topic is unreliable (qos=0, ack=50ms) since updates are
// frequent and a dropped one is superseded by the next.
var (
	defaultTreeQoS   = crowQoS{qos: 1, ackPeriod: 100 * time.Millisecond}
	defaultJointsQoS = crowQoS{qos: 0, ackPeriod: 50 * time.Millisecond}
)

// defaultKeepalive is how often the adapter re-sends its subscribe frames
// regardless of QoS, so a crowker restart doesn't silently orphan it.
const defaultKeepalive = 2 * time.Second

// crowFrame is the wire envelope this adapter receives: a topic name plus a
// JSON payload, one JSON object per datagram. There is no publicly available client library for the
// original broker's wire protocol, so this adapter speaks directly to a
// UDP socket using this minimal self-describing framing.
type crowFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// subscribeFrame is sent once on connect and then once per keepalive
// interval to (re)register interest in a topic with the crowker.
type subscribeFrame struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
	QoS   int    `json:"qos"`
}

// CrowConfig configures the Crow datagram pub/sub adapter.
type CrowConfig struct {
	CrowkerAddr string
	JointsTopic string
	TreeTopic   string
	Keepalive   time.Duration
}

// CrowAdapter speaks the bespoke UDP datagram protocol to a crowker broker:
// it periodically re-subscribes to survive broker restarts, and decodes
// inbound frames by topic.
type CrowAdapter struct {
	cfg      CrowConfig
	onTree   TreeHandler
	onJoints JointsHandler
	logger   logging.Logger

	conn    *net.UDPConn
	workers rdkutils.StoppableWorkers
}

// NewCrowAdapter builds an adapter from cfg. Connect must be called
// separately to open the socket and start the transport threads.
func NewCrowAdapter(cfg CrowConfig, onTree TreeHandler, onJoints JointsHandler, logger logging.Logger) (*CrowAdapter, error) {
	if cfg.CrowkerAddr == "" {
		return nil, &ErrNotConfigured{Transport: "crow", Field: "crowker_addr"}
	}
	if cfg.Keepalive == 0 {
		cfg.Keepalive = defaultKeepalive
	}
	return &CrowAdapter{cfg: cfg, onTree: onTree, onJoints: onJoints, logger: logger}, nil
}

// Connect opens the UDP endpoint and starts the receive and keepalive
// threads. Connection failure (e.g. an unresolvable crowker address) is
// logged and non-fatal.
func (a *CrowAdapter) Connect() error {
	raddr, err := net.ResolveUDPAddr("udp", a.cfg.CrowkerAddr)
	if err != nil {
		a.logger.Warnw("crow: cannot resolve crowker address, adapter stays disconnected", "addr", a.cfg.CrowkerAddr, "error", err)
		return nil
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		a.logger.Warnw("crow: dial failed, adapter stays disconnected", "addr", a.cfg.CrowkerAddr, "error", err)
		return nil
	}
	a.conn = conn

	a.workers = rdkutils.NewStoppableWorkers(a.receiveLoop, a.keepaliveLoop)
	return nil
}

func (a *CrowAdapter) receiveLoop(ctx context.Context) {
	buf := make([]byte, 64*1024)
	for {
		if ctx.Err() != nil {
			return
		}
		a.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := a.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}
		a.handleDatagram(buf[:n])
	}
}

func (a *CrowAdapter) handleDatagram(data []byte) {
	var frame crowFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		a.logger.Warnw("crow: dropping malformed datagram", "error", err)
		return
	}
	switch frame.Topic {
	case a.cfg.TreeTopic:
		var doc kinematictree.NodeDoc
		if err := json.Unmarshal(frame.Payload, &doc); err != nil {
			a.logger.Warnw("crow: dropping malformed tree document", "error", err)
			return
		}
		a.onTree(&doc)
	case a.cfg.JointsTopic:
		var joints map[string]float64
		if err := json.Unmarshal(frame.Payload, &joints); err != nil {
			a.logger.Warnw("crow: dropping malformed joints payload", "error", err)
			return
		}
		a.onJoints(joints)
	}
}

// keepaliveLoop sends subscribe frames for both topics immediately and then
// every cfg.Keepalive (defaultKeepalive unless configured), so a crowker
// restart sees fresh interest without the adapter having to detect the
// restart itself. Both topics share this one interval.
func (a *CrowAdapter) keepaliveLoop(ctx context.Context) {
	interval := a.cfg.Keepalive
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.subscribeTopic(a.cfg.TreeTopic, defaultTreeQoS)
	a.subscribeTopic(a.cfg.JointsTopic, defaultJointsQoS)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.subscribeTopic(a.cfg.TreeTopic, defaultTreeQoS)
			a.subscribeTopic(a.cfg.JointsTopic, defaultJointsQoS)
		}
	}
}

func (a *CrowAdapter) subscribeTopic(topic string, qos crowQoS) {
	if topic == "" {
		return
	}
	data, err := json.Marshal(subscribeFrame{Op: "subscribe", Topic: topic, QoS: qos.qos})
	if err != nil {
		return
	}
	if _, err := a.conn.Write(data); err != nil {
		a.logger.Warnw("crow: resubscribe write failed", "topic", topic, "error", err)
	}
}

// Disconnect stops the transport threads and closes the socket.
func (a *CrowAdapter) Disconnect() error {
	if a.workers != nil {
		a.workers.Stop()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

// IsConnected reports whether the UDP socket was successfully opened.
func (a *CrowAdapter) IsConnected() bool {
	return a.conn != nil
}

