package coordinator

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/webkin/webkin/calibration"
	"github.com/webkin/webkin/kinematictree"
	"github.com/webkin/webkin/logging"
	spatial "github.com/webkin/webkin/spatialmath"
)

type recordingClient struct {
	received [][]byte
}

func (r *recordingClient) Send(_ string, data []byte) error {
	r.received = append(r.received, data)
	return nil
}

func newTestCoordinator(t *testing.T) *Coordinator {
	store := calibration.New(filepath.Join(t.TempDir(), "axis_overrides.json"), logging.NewTestLogger(t))
	return New(store, false, logging.NewTestLogger(t))
}

func testTreeDoc() *kinematictree.NodeDoc {
	axis := spatial.Vec3JSON{Z: 1}
	return &kinematictree.NodeDoc{Name: "root", Type: kinematictree.Rotator, Axis: &axis}
}

func TestRegisterReceivesCurrentSceneInit(t *testing.T) {
	c := newTestCoordinator(t)
	test.That(t, c.LoadTree(testTreeDoc()), test.ShouldBeNil)

	init := c.Register("client-1", &recordingClient{})
	test.That(t, init.Type, test.ShouldEqual, "scene_init")
	test.That(t, len(init.Nodes), test.ShouldEqual, 1)
}

// Two mutations serialized at the lock produce two broadcasts in the
// same order at every connected client.
func TestBroadcastMonotonicity(t *testing.T) {
	c := newTestCoordinator(t)
	test.That(t, c.LoadTree(testTreeDoc()), test.ShouldBeNil)

	client := &recordingClient{}
	c.Register("client-1", client)

	c.SetJoints(map[string]float64{"root": 1})
	c.SetJoints(map[string]float64{"root": 2})

	test.That(t, len(client.received), test.ShouldEqual, 2)

	var first, second struct {
		Nodes map[string]struct {
			Pose struct {
				Orientation [4]float64 `json:"orientation"`
			} `json:"pose"`
		} `json:"nodes"`
	}
	test.That(t, json.Unmarshal(client.received[0], &first), test.ShouldBeNil)
	test.That(t, json.Unmarshal(client.received[1], &second), test.ShouldBeNil)
	test.That(t, first.Nodes["root"].Pose.Orientation, test.ShouldNotResemble, second.Nodes["root"].Pose.Orientation)
}

func TestSetJointsUnknownNameIgnored(t *testing.T) {
	c := newTestCoordinator(t)
	test.That(t, c.LoadTree(testTreeDoc()), test.ShouldBeNil)

	c.SetJoints(map[string]float64{"ghost": 100})
	snap := c.SceneSnapshot()
	test.That(t, len(snap.Nodes), test.ShouldEqual, 1)
}

func TestLoadTreeRejectsMalformedDocKeepsPrevious(t *testing.T) {
	c := newTestCoordinator(t)
	test.That(t, c.LoadTree(testTreeDoc()), test.ShouldBeNil)

	err := c.LoadTree(&kinematictree.NodeDoc{Name: "bad", Type: kinematictree.Rotator})
	test.That(t, err, test.ShouldNotBeNil)

	doc := c.CurrentTreeDoc()
	test.That(t, doc.Name, test.ShouldEqual, "root")
}

func TestSetZeroUnknownJointReturnsError(t *testing.T) {
	c := newTestCoordinator(t)
	test.That(t, c.LoadTree(testTreeDoc()), test.ShouldBeNil)

	err := c.SetZero("ghost")
	test.That(t, err, test.ShouldEqual, ErrUnknownJoint)
}

func TestUnregisterStopsFurtherBroadcasts(t *testing.T) {
	c := newTestCoordinator(t)
	test.That(t, c.LoadTree(testTreeDoc()), test.ShouldBeNil)

	client := &recordingClient{}
	c.Register("client-1", client)
	c.Unregister("client-1")

	c.SetJoints(map[string]float64{"root": 1})
	test.That(t, len(client.received), test.ShouldEqual, 0)
}
