package spatialmath

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: a position and a unit-quaternion orientation.
// Composition P1.Compose(P2) is non-commutative: the result first applies
// P1, then P2 expressed in the frame P1 establishes.
type Pose struct {
	Position    Vec3
	Orientation quat.Number
}

// IdentityPose is the composition identity: zero translation, no rotation.
func IdentityPose() Pose {
	return Pose{Position: ZeroVec3, Orientation: IdentityQuat}
}

// NewPoseFromPoint builds a pose with the given translation and no rotation.
func NewPoseFromPoint(p Vec3) Pose {
	return Pose{Position: p, Orientation: IdentityQuat}
}

// NewPoseFromOrientation builds a pose with the given rotation and no
// translation.
func NewPoseFromOrientation(q quat.Number) Pose {
	return Pose{Position: ZeroVec3, Orientation: q}
}

// Compose returns p1·p2 = (p1.pos + p1.ori·p2.pos, p1.ori·p2.ori), the rigid
// transform that first applies p1 and then p2 in the frame p1 establishes.
func Compose(p1, p2 Pose) Pose {
	return Pose{
		Position:    p1.Position.Add(QuatRotateVec(p1.Orientation, p2.Position)),
		Orientation: QuatMul(p1.Orientation, p2.Orientation),
	}
}

// PoseAlmostEqual reports whether two poses are within epsilon of each other
// in both position and orientation.
func PoseAlmostEqual(a, b Pose, epsilon float64) bool {
	return Vec3AlmostEqual(a.Position, b.Position, epsilon) && QuatAlmostEqual(a.Orientation, b.Orientation, epsilon)
}

// wirePose is the JSON shape of a Pose on the wire: §6's
// {position: [x,y,z], orientation: [x,y,z,w]}.
type wirePose struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

// MarshalJSON emits the wire shape, with orientation ordered (x,y,z,w).
func (p Pose) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePose{
		Position:    [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Orientation: [4]float64{p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag, p.Orientation.Real},
	})
}

// UnmarshalJSON parses the wire shape and normalizes the orientation
// quaternion, since an untrusted publisher may send a non-unit quaternion.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var w wirePose
	w.Orientation = [4]float64{0, 0, 0, 1}
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Wrap(err, "unmarshal pose")
	}
	p.Position = Vec3{X: w.Position[0], Y: w.Position[1], Z: w.Position[2]}
	p.Orientation = QuatNormalize(quat.Number{
		Imag: w.Orientation[0],
		Jmag: w.Orientation[1],
		Kmag: w.Orientation[2],
		Real: w.Orientation[3],
	})
	return nil
}
