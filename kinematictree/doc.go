// Package kinematictree implements the tree-of-joints engine that backs the
// visualization server's authoritative forward-kinematics state: loading a
// recursive JSON tree document, addressing joints by name, composing poses
// down the tree in one traversal, and deriving the zero-offset and
// calibration parameters.
package kinematictree

import "errors"

// ErrMalformedTree is returned by Load when a node document is missing a
// required field or carries an unknown type tag.
var ErrMalformedTree = errors.New("kinematictree: malformed tree document")

// ErrDuplicateName is returned by Load when two nodes in the same document
// share a name.
var ErrDuplicateName = errors.New("kinematictree: duplicate node name")

// ErrNoRoot is returned by Load when given a nil document.
var ErrNoRoot = errors.New("kinematictree: tree document has no root node")

// NodeType is the closed set of node variants a Node may take.
type NodeType string

// The three node variants. Non-joint nodes (Transform) ignore calibration
// fields entirely; Rotator and Actuator are joints and are indexed in a
// Tree's joint lookup map.
const (
	Transform NodeType = "transform"
	Rotator   NodeType = "rotator"
	Actuator  NodeType = "actuator"
)

// IsJoint reports whether nodes of this type are addressable joints.
func (t NodeType) IsJoint() bool {
	return t == Rotator || t == Actuator
}
