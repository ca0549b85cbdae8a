// Package ingest implements the transport adapters that feed tree
// documents and joint updates into the scene coordinator from outside the
// process: an MQTT broker adapter and a bespoke UDP datagram pub/sub
// adapter, behind one uniform interface.
package ingest

import (
	"github.com/webkin/webkin/kinematictree"
)

// TreeHandler is invoked with a freshly decoded tree document.
type TreeHandler func(*kinematictree.NodeDoc)

// JointsHandler is invoked with a decoded joint_name -> value map.
type JointsHandler func(map[string]float64)

// Adapter is the uniform shape every ingest transport implements. Each
// adapter's New*Adapter constructor configures it without connecting;
// Connect starts its background
// transport thread; Disconnect stops it and blocks until the thread has
// joined. OnTree/OnJoints callbacks run on the adapter's own thread and
// must be safe to call concurrently with everything else in the process —
// they take the scene lock themselves.
type Adapter interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
}

// ErrNotConfigured is returned by an adapter constructor when required
// configuration is missing; this is the "transport not configured"
// outcome (this server has no compile-time transport selection, so the
// equivalent failure mode is a missing required field).
type ErrNotConfigured struct {
	Transport string
	Field     string
}

func (e *ErrNotConfigured) Error() string {
	return "ingest: " + e.Transport + " adapter missing required field " + e.Field
}
