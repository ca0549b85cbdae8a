package kinematictree

import (
	"encoding/json"

	"github.com/pkg/errors"

	spatial "github.com/webkin/webkin/spatialmath"
)

// defaultSliderMin/Max are the per-type slider defaults: rotators
// default to a ±180° range and actuators to ±1000 in the source's linear
// unit. Both are stored and compared in the same units the wire document
// uses for coord/axis_offset; no degrees-to-radians conversion happens
// here, matching the original's own unconverted slider bounds.
var defaultSliderMin = map[NodeType]float64{
	Rotator:  -180,
	Actuator: -1000,
}

var defaultSliderMax = map[NodeType]float64{
	Rotator:  180,
	Actuator: 1000,
}

// NodeDoc is the wire representation of a single node, recursively
// containing its children.
type NodeDoc struct {
	Name       string            `json:"name"`
	Type       NodeType          `json:"type"`
	Pose       spatial.Pose      `json:"pose"`
	Axis       *spatial.Vec3JSON `json:"axis,omitempty"`
	AxisOffset *float64          `json:"axis_offset,omitempty"`
	AxisScale  *float64          `json:"axis_scale,omitempty"`
	SliderMin  *float64          `json:"slider_min,omitempty"`
	SliderMax  *float64          `json:"slider_max,omitempty"`
	Model      json.RawMessage   `json:"model,omitempty"`
	Children   []*NodeDoc        `json:"children,omitempty"`
}

// validate checks the required fields for this node's declared type.
func (d *NodeDoc) validate() error {
	if d.Name == "" {
		return errors.Wrap(ErrMalformedTree, "node missing name")
	}
	switch d.Type {
	case Transform, Rotator, Actuator:
	case "":
		return errors.Wrapf(ErrMalformedTree, "node %q missing type", d.Name)
	default:
		return errors.Wrapf(ErrMalformedTree, "node %q has unknown type %q", d.Name, d.Type)
	}
	if d.Type.IsJoint() && d.Axis == nil {
		return errors.Wrapf(ErrMalformedTree, "joint node %q missing axis", d.Name)
	}
	return nil
}

// Node is a single element of the in-memory kinematic tree: its rest pose
// relative to its parent's joint frame, its joint-calibration parameters (if
// it is a joint), its opaque model blob, and its ordered children.
//
// Node is not safe for concurrent use; all access must go through a Tree
// under the caller's own synchronization (the scene coordinator's lock,
// in the server's case).
type Node struct {
	Name      string
	Type      NodeType
	LocalPose spatial.Pose
	Axis      spatial.Vec3
	Model     json.RawMessage
	Children  []*Node

	// Calibration parameters. Meaningless for Transform nodes.
	Coord      float64
	AxisOffset float64
	AxisScale  float64
	SliderMin  float64
	SliderMax  float64

	// GlobalPose is written by Tree.UpdateForward and must only be read
	// after a forward pass has completed.
	GlobalPose spatial.Pose
}

func newNodeFromDoc(doc *NodeDoc) *Node {
	n := &Node{
		Name:      doc.Name,
		Type:      doc.Type,
		LocalPose: doc.Pose,
		Model:     doc.Model,
		AxisScale: 1,
	}
	// A document that omits its pose leaves an all-zero quaternion, which
	// is not a rotation; treat it as the identity orientation.
	if o := doc.Pose.Orientation; o.Real == 0 && o.Imag == 0 && o.Jmag == 0 && o.Kmag == 0 {
		n.LocalPose.Orientation = spatial.IdentityQuat
	}
	if doc.Axis != nil {
		n.Axis = spatial.Vec3(*doc.Axis)
	}
	if doc.AxisOffset != nil {
		n.AxisOffset = *doc.AxisOffset
	}
	if doc.AxisScale != nil {
		n.AxisScale = *doc.AxisScale
	}
	n.SliderMin = defaultSliderMin[n.Type]
	n.SliderMax = defaultSliderMax[n.Type]
	if doc.SliderMin != nil {
		n.SliderMin = *doc.SliderMin
	}
	if doc.SliderMax != nil {
		n.SliderMax = *doc.SliderMax
	}
	return n
}

// EffectiveCoord computes θ_eff = (coord + axis_offset) · axis_scale, the
// value actually fed to the joint transform. Meaningless for non-joints.
func (n *Node) EffectiveCoord() float64 {
	return (n.Coord + n.AxisOffset) * n.AxisScale
}

// JointTransform returns the pose contributed by this node's own joint
// motion: identity for Transform nodes, a rotation about Axis for Rotator,
// a translation along Axis for Actuator.
func (n *Node) JointTransform() spatial.Pose {
	switch n.Type {
	case Rotator:
		return spatial.NewPoseFromOrientation(spatial.QuatFromAxisAngle(n.Axis, n.EffectiveCoord()))
	case Actuator:
		return spatial.NewPoseFromPoint(n.Axis.Mul(n.EffectiveCoord()))
	default:
		return spatial.IdentityPose()
	}
}
