package kinematictree

import (
	"encoding/json"

	"github.com/pkg/errors"

	spatial "github.com/webkin/webkin/spatialmath"
)

// Tree is the in-memory kinematic tree: a single rooted hierarchy of Nodes
// plus a flat joint-name lookup map. A Tree is not safe for concurrent use;
// callers (the scene coordinator) must serialize access.
type Tree struct {
	root   *Node
	joints map[string]*Node
}

// NewTree returns an empty tree with no root.
func NewTree() *Tree {
	return &Tree{joints: map[string]*Node{}}
}

// Root returns the tree's root node, or nil if no tree has been loaded.
func (t *Tree) Root() *Node {
	return t.root
}

// Load parses doc into a fresh tree, replacing any tree previously held by
// t. It rebuilds the joint lookup map and runs one forward pass so the tree
// is immediately query-able. It does not apply calibration overrides; the
// scene coordinator calls calibration.Store.ApplyTo after Load and then runs
// UpdateForward again.
func (t *Tree) Load(doc *NodeDoc) error {
	if doc == nil {
		return ErrNoRoot
	}
	joints := map[string]*Node{}
	seen := map[string]bool{}
	root, err := buildNode(doc, joints, seen)
	if err != nil {
		return err
	}
	t.root = root
	t.joints = joints
	t.UpdateForward()
	return nil
}

// buildNode recursively constructs a Node tree from doc, rejecting any
// document where two nodes (joint or not) share a name: seen tracks every
// name encountered so far, while joints collects only the addressable ones.
func buildNode(doc *NodeDoc, joints map[string]*Node, seen map[string]bool) (*Node, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	if seen[doc.Name] {
		return nil, errors.Wrapf(ErrDuplicateName, "%q", doc.Name)
	}
	seen[doc.Name] = true
	n := newNodeFromDoc(doc)
	if n.Type.IsJoint() {
		joints[n.Name] = n
	}
	for _, childDoc := range doc.Children {
		child, err := buildNode(childDoc, joints, seen)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

// SetJointCoord sets the raw coord of the named joint. Names not present in
// the joint lookup are silently ignored (publishers may
// send a superset of joints during tree transitions).
func (t *Tree) SetJointCoord(name string, value float64) {
	if n, ok := t.joints[name]; ok {
		n.Coord = value
	}
}

// SetJointCoords applies a batch of named coords, ignoring unknown names.
func (t *Tree) SetJointCoords(coords map[string]float64) {
	for name, value := range coords {
		t.SetJointCoord(name, value)
	}
}

// UpdateForward performs a single recursive descent from the root, writing
// GlobalPose on every node in traversal order. It is a no-op on an empty
// tree.
func (t *Tree) UpdateForward() {
	if t.root == nil {
		return
	}
	updateNode(t.root, spatial.IdentityPose())
}

func updateNode(n *Node, parentPose spatial.Pose) {
	n.GlobalPose = spatial.Compose(spatial.Compose(parentPose, n.LocalPose), n.JointTransform())
	for _, child := range n.Children {
		updateNode(child, n.GlobalPose)
	}
}

// SceneNode is the per-node payload of a scene snapshot: its freshly
// computed global pose and its opaque model blob, forwarded verbatim.
type SceneNode struct {
	Pose  spatial.Pose    `json:"pose"`
	Model json.RawMessage `json:"model,omitempty"`
}

// SceneSnapshot emits a flat name -> {pose, model} map for every node in the
// tree, using the pose written by the most recent UpdateForward.
func (t *Tree) SceneSnapshot() map[string]SceneNode {
	out := map[string]SceneNode{}
	if t.root == nil {
		return out
	}
	collectScene(t.root, out)
	return out
}

func collectScene(n *Node, out map[string]SceneNode) {
	out[n.Name] = SceneNode{Pose: n.GlobalPose, Model: n.Model}
	for _, child := range n.Children {
		collectScene(child, out)
	}
}

// JointInfo is the calibration-facing view of a single joint: its type and
// the slider/axis metadata a calibration UI needs to render a control.
type JointInfo struct {
	Type       NodeType `json:"type"`
	SliderMin  float64  `json:"slider_min"`
	SliderMax  float64  `json:"slider_max"`
	AxisScale  float64  `json:"axis_scale"`
	AxisOffset float64  `json:"axis_offset"`
}

// JointsInfo emits the calibration parameters of every joint in the tree.
func (t *Tree) JointsInfo() map[string]JointInfo {
	out := make(map[string]JointInfo, len(t.joints))
	for name, n := range t.joints {
		out[name] = JointInfo{
			Type:       n.Type,
			SliderMin:  n.SliderMin,
			SliderMax:  n.SliderMax,
			AxisScale:  n.AxisScale,
			AxisOffset: n.AxisOffset,
		}
	}
	return out
}

// JointNames returns the names of every joint in the tree, in no particular
// order (callers that need deterministic order should sort the result).
func (t *Tree) JointNames() []string {
	names := make([]string, 0, len(t.joints))
	for name := range t.joints {
		names = append(names, name)
	}
	return names
}

// Joint looks up a joint node by name, returning ok=false if it doesn't
// exist or isn't a joint.
func (t *Tree) Joint(name string) (*Node, bool) {
	n, ok := t.joints[name]
	return n, ok
}

// FindOriginalAxisParams is a pure function over a tree document (not over
// the live tree) that returns the declared axis_offset/axis_scale/
// slider_min/slider_max for the named joint, falling back to type defaults
// for fields the document left unspecified. It is used to restore declared
// values after an override is cleared.
func FindOriginalAxisParams(doc *NodeDoc, name string) (JointInfo, bool) {
	found := findNodeDoc(doc, name)
	if found == nil || !found.Type.IsJoint() {
		return JointInfo{}, false
	}
	info := JointInfo{
		Type:      found.Type,
		SliderMin: defaultSliderMin[found.Type],
		SliderMax: defaultSliderMax[found.Type],
		AxisScale: 1,
	}
	if found.AxisOffset != nil {
		info.AxisOffset = *found.AxisOffset
	}
	if found.AxisScale != nil {
		info.AxisScale = *found.AxisScale
	}
	if found.SliderMin != nil {
		info.SliderMin = *found.SliderMin
	}
	if found.SliderMax != nil {
		info.SliderMax = *found.SliderMax
	}
	return info, true
}

func findNodeDoc(doc *NodeDoc, name string) *NodeDoc {
	if doc == nil {
		return nil
	}
	if doc.Name == name {
		return doc
	}
	for _, child := range doc.Children {
		if found := findNodeDoc(child, name); found != nil {
			return found
		}
	}
	return nil
}
