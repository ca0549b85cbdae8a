// Package coordinator holds the single authoritative, lock-guarded copy of
// the visualization server's scene state and fans mutations out to every
// connected client. It is the one place in the process that touches the
// kinematic tree, the calibration store, and the set of live client
// connections together.
package coordinator

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/webkin/webkin/calibration"
	"github.com/webkin/webkin/kinematictree"
	"github.com/webkin/webkin/logging"
)

// ErrUnknownJoint is returned by the coordinator's per-joint calibration
// methods for an unrecognized joint name, surfaced by the HTTP layer as a
// 404. It is
// distinct from the silent-ignore policy used for joint coordinate/override
// updates, which tolerate unknown names by design.
var ErrUnknownJoint = errors.New("coordinator: unknown joint name")

// Broadcaster is the minimal send surface the coordinator needs from the
// HTTP/WebSocket runtime: push a pre-serialized text frame to one client.
// The set of current clients is kept by the Coordinator itself. Kept as an
// interface here
// so the coordinator has no import-time dependency on the websocket
// package.
type Broadcaster interface {
	// Send pushes data to the client identified by id. A returned error is
	// logged by the caller and never aborts a broadcast to other clients.
	Send(id string, data []byte) error
}

// Coordinator is the scene lock plus everything it guards. All exported
// methods acquire the lock for their entire duration.
type Coordinator struct {
	mu sync.Mutex

	tree      *kinematictree.Tree
	treeDoc   *kinematictree.NodeDoc
	overrides *calibration.Store
	clients   map[string]Broadcaster
	zUp       bool

	logger logging.Logger
}

// New builds a Coordinator with an empty tree and no clients. Call
// LoadTree before serving any request.
func New(overrides *calibration.Store, zUp bool, logger logging.Logger) *Coordinator {
	return &Coordinator{
		tree:      kinematictree.NewTree(),
		overrides: overrides,
		clients:   map[string]Broadcaster{},
		zUp:       zUp,
		logger:    logger,
	}
}

// ZUp reports the server's z-up display convention.
func (c *Coordinator) ZUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zUp
}

// sceneInitLocked builds the scene_init payload from the coordinator's
// current state. Caller must hold the lock.
func (c *Coordinator) sceneInitLocked() SceneInit {
	joints := c.tree.JointNames()
	sort.Strings(joints)
	return SceneInit{
		Type:       "scene_init",
		Nodes:      c.tree.SceneSnapshot(),
		Joints:     joints,
		JointsInfo: c.tree.JointsInfo(),
		ZUp:        c.zUp,
	}
}

func (c *Coordinator) sceneUpdateLocked() SceneUpdate {
	return SceneUpdate{
		Type:       "scene_update",
		Nodes:      c.tree.SceneSnapshot(),
		JointsInfo: c.tree.JointsInfo(),
	}
}

// broadcastLocked serializes msg and sends it to every registered client,
// under the lock. A send failure to one client never aborts the broadcast
// to the others; it is logged and the dead connection is left for the
// runtime to later remove via Unregister.
func (c *Coordinator) broadcastLocked(msg any) {
	data, err := marshalJSON(msg)
	if err != nil {
		c.logger.Errorw("failed to marshal outbound scene message", "error", err)
		return
	}
	for id, client := range c.clients {
		if err := client.Send(id, data); err != nil {
			c.logger.Warnw("send to client failed, leaving removal to the connection's own lifecycle", "client", id, "error", err)
		}
	}
}

// LoadTree replaces the tree with doc: it applies any known calibration
// overrides, runs a forward pass, and broadcasts scene_init to every
// connected client. A malformed document leaves the previous tree in
// place and returns an error without broadcasting.
func (c *Coordinator) LoadTree(doc *kinematictree.NodeDoc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newTree := kinematictree.NewTree()
	if err := newTree.Load(doc); err != nil {
		c.logger.Warnw("rejecting malformed tree document, keeping previous tree", "error", err)
		return err
	}
	c.overrides.ApplyTo(newTree)
	newTree.UpdateForward()

	c.tree = newTree
	c.treeDoc = doc
	c.broadcastLocked(c.sceneInitLocked())
	return nil
}

// CurrentTreeDoc returns the document the live tree was most recently
// loaded from, for serving GET /api/tree.
func (c *Coordinator) CurrentTreeDoc() *kinematictree.NodeDoc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.treeDoc
}

// SceneSnapshot returns the current scene_update-shaped payload, for
// serving GET /api/scene.
func (c *Coordinator) SceneSnapshot() SceneUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sceneUpdateLocked()
}

// SetJoints applies a batch of joint coordinates (ignoring unknown names),
// recomputes the scene, and broadcasts scene_update.
func (c *Coordinator) SetJoints(joints map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tree.SetJointCoords(joints)
	c.tree.UpdateForward()
	c.broadcastLocked(c.sceneUpdateLocked())
}

// SetZero sets the named joint's axis_offset so its current coord reads as
// zero, persists it, and broadcasts. Returns ErrUnknownJoint if name isn't
// a joint in the live tree.
func (c *Coordinator) SetZero(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tree.Joint(name); !ok {
		return ErrUnknownJoint
	}
	if err := c.overrides.SetZero(c.tree, name); err != nil {
		return errors.Wrap(err, "persist zero offset")
	}
	c.tree.UpdateForward()
	c.broadcastLocked(c.sceneUpdateLocked())
	return nil
}

// SetOverride partially merges ov into the named joint's calibration,
// persists, and broadcasts.
func (c *Coordinator) SetOverride(name string, ov calibration.Override) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tree.Joint(name); !ok {
		return ErrUnknownJoint
	}
	if err := c.overrides.SetOverride(c.tree, name, ov); err != nil {
		return errors.Wrap(err, "persist override")
	}
	c.tree.UpdateForward()
	c.broadcastLocked(c.sceneUpdateLocked())
	return nil
}

// Overrides returns a snapshot of the held calibration overrides, for
// serving GET /api/axis/overrides.
func (c *Coordinator) Overrides() map[string]calibration.Override {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overrides.Snapshot()
}

// ClearAllOverrides empties the override map, restores every joint to its
// declared values, persists, and broadcasts.
func (c *Coordinator) ClearAllOverrides() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.overrides.ClearAll(c.tree, c.treeDoc); err != nil {
		return errors.Wrap(err, "clear all overrides")
	}
	c.tree.UpdateForward()
	c.broadcastLocked(c.sceneUpdateLocked())
	return nil
}

// ClearOverride removes a single joint's override, restores its declared
// values, persists, and broadcasts. Returns ErrUnknownJoint if name isn't a
// joint in the live tree.
func (c *Coordinator) ClearOverride(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tree.Joint(name); !ok {
		return ErrUnknownJoint
	}
	if err := c.overrides.ClearOne(c.tree, c.treeDoc, name); err != nil {
		return errors.Wrap(err, "clear override")
	}
	c.tree.UpdateForward()
	c.broadcastLocked(c.sceneUpdateLocked())
	return nil
}

// Register adds a client under the lock and returns the scene_init payload
// it should send, computed from the state at the moment of registration so
// the client never observes a torn scene relative to a concurrent mutation.
func (c *Coordinator) Register(id string, client Broadcaster) SceneInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[id] = client
	return c.sceneInitLocked()
}

// Unregister removes a client. Safe to call more than once for the same id.
func (c *Coordinator) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, id)
}
