package kinematictree

import (
	"math"
	"testing"

	"go.viam.com/test"

	spatial "github.com/webkin/webkin/spatialmath"
)

func ptr(f float64) *float64 { return &f }

func simpleRotatorDoc() *NodeDoc {
	axis := spatial.Vec3JSON{Z: 1}
	return &NodeDoc{
		Name: "root",
		Type: Rotator,
		Axis: &axis,
		Children: []*NodeDoc{
			{Name: "C1", Type: Transform},
			{Name: "C2", Type: Transform},
		},
	}
}

func TestLoadBuildsJointLookupAndForwardPass(t *testing.T) {
	tr := NewTree()
	test.That(t, tr.Load(simpleRotatorDoc()), test.ShouldBeNil)
	_, ok := tr.Joint("root")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(tr.JointNames()), test.ShouldEqual, 1)
}

// A rotator at 90deg (pi/2) about Z rotates root to [0,0,sqrt2/2,sqrt2/2].
func TestCompositionIdentityS1(t *testing.T) {
	tr := NewTree()
	test.That(t, tr.Load(simpleRotatorDoc()), test.ShouldBeNil)
	tr.SetJointCoord("root", math.Pi/2)
	tr.UpdateForward()

	scene := tr.SceneSnapshot()
	root := scene["root"]
	test.That(t, root.Pose.Orientation.Real, test.ShouldAlmostEqual, math.Sqrt2/2)
	test.That(t, root.Pose.Orientation.Kmag, test.ShouldAlmostEqual, math.Sqrt2/2)

	// Children inherit the joint's transform.
	test.That(t, spatial.QuatAlmostEqual(scene["C1"].Pose.Orientation, root.Pose.Orientation, 1e-9), test.ShouldBeTrue)
	test.That(t, spatial.QuatAlmostEqual(scene["C2"].Pose.Orientation, root.Pose.Orientation, 1e-9), test.ShouldBeTrue)
}

// An actuator with axis_scale=0.01 moving coord=100 ends up at [1,0,0].
func TestActuatorScaleS3(t *testing.T) {
	axis := spatial.Vec3JSON{X: 1}
	doc := &NodeDoc{Name: "A", Type: Actuator, Axis: &axis, AxisScale: ptr(0.01)}
	tr := NewTree()
	test.That(t, tr.Load(doc), test.ShouldBeNil)
	tr.SetJointCoord("A", 100)
	tr.UpdateForward()

	pos := tr.SceneSnapshot()["A"].Pose.Position
	test.That(t, spatial.Vec3AlmostEqual(pos, spatial.NewVec3(1, 0, 0), 1e-9), test.ShouldBeTrue)
}

// Axis offset is additive with the raw coordinate.
func TestOffsetIsAdditive(t *testing.T) {
	const delta = 0.3

	a := NewTree()
	test.That(t, a.Load(simpleRotatorDoc()), test.ShouldBeNil)
	joint, _ := a.Joint("root")
	joint.AxisOffset = delta
	joint.Coord = 1.0
	a.UpdateForward()

	b := NewTree()
	test.That(t, b.Load(simpleRotatorDoc()), test.ShouldBeNil)
	b.SetJointCoord("root", 1.0+delta)
	b.UpdateForward()

	test.That(t, spatial.PoseAlmostEqual(
		a.SceneSnapshot()["root"].Pose, b.SceneSnapshot()["root"].Pose, 1e-9), test.ShouldBeTrue)
}

// Setting axis_offset := -coord drives theta_eff to zero
// regardless of axis_scale.
func TestZeroIdempotence(t *testing.T) {
	tr := NewTree()
	test.That(t, tr.Load(simpleRotatorDoc()), test.ShouldBeNil)
	j, _ := tr.Joint("root")
	j.Coord = 1.5708
	j.AxisScale = 3.7

	j.AxisOffset = -j.Coord
	test.That(t, j.EffectiveCoord(), test.ShouldAlmostEqual, 0)
}

// JointsInfo round-trips the document's declared calibration
// fields.
func TestJointsInfoRoundTrip(t *testing.T) {
	axis := spatial.Vec3JSON{Z: 1}
	doc := &NodeDoc{
		Name:       "root",
		Type:       Rotator,
		Axis:       &axis,
		AxisOffset: ptr(0.5),
		AxisScale:  ptr(2),
		SliderMin:  ptr(-90),
		SliderMax:  ptr(90),
	}
	tr := NewTree()
	test.That(t, tr.Load(doc), test.ShouldBeNil)

	info := tr.JointsInfo()["root"]
	test.That(t, info.AxisOffset, test.ShouldEqual, 0.5)
	test.That(t, info.AxisScale, test.ShouldEqual, float64(2))
	test.That(t, info.SliderMin, test.ShouldEqual, float64(-90))
	test.That(t, info.SliderMax, test.ShouldEqual, float64(90))
}

// FindOriginalAxisParams restores declared values (or type
// defaults for unspecified ones), which is how ClearAll/ClearOne recover
// the document's baseline after an override is dropped.
func TestFindOriginalAxisParamsFallsBackToTypeDefaults(t *testing.T) {
	axis := spatial.Vec3JSON{Z: 1}
	doc := &NodeDoc{Name: "root", Type: Rotator, Axis: &axis, AxisOffset: ptr(0.5)}

	info, ok := FindOriginalAxisParams(doc, "root")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, info.AxisOffset, test.ShouldEqual, 0.5)
	test.That(t, info.AxisScale, test.ShouldEqual, float64(1))
	test.That(t, info.SliderMin, test.ShouldEqual, defaultSliderMin[Rotator])
	test.That(t, info.SliderMax, test.ShouldEqual, defaultSliderMax[Rotator])
}

func TestFindOriginalAxisParamsUnknownName(t *testing.T) {
	_, ok := FindOriginalAxisParams(simpleRotatorDoc(), "nope")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSetJointCoordsIgnoresUnknownNames(t *testing.T) {
	tr := NewTree()
	test.That(t, tr.Load(simpleRotatorDoc()), test.ShouldBeNil)
	tr.SetJointCoords(map[string]float64{"root": 1, "ghost": 99})
	j, _ := tr.Joint("root")
	test.That(t, j.Coord, test.ShouldEqual, float64(1))
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	doc := &NodeDoc{
		Name: "root",
		Type: Transform,
		Children: []*NodeDoc{
			{Name: "dup", Type: Transform},
			{Name: "dup", Type: Transform},
		},
	}
	tr := NewTree()
	err := tr.Load(doc)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadRejectsMissingAxisOnJoint(t *testing.T) {
	doc := &NodeDoc{Name: "root", Type: Rotator}
	tr := NewTree()
	err := tr.Load(doc)
	test.That(t, err, test.ShouldNotBeNil)
}
