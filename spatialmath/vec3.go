// Package spatialmath implements the pose and quaternion arithmetic used by
// the kinematic tree engine: vector addition/scaling, quaternion Hamilton
// products, and pose composition.
package spatialmath

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Vec3 is a point or direction in 3-space. It is an alias for r3.Vector so
// callers get its Add/Sub/Mul/Cross/Dot/Norm methods for free.
type Vec3 = r3.Vector

// Vec3JSON is a Vec3 that marshals/unmarshals as the wire's [x,y,z] array,
// since r3.Vector's exported fields would otherwise round-trip as an
// object. Convert with Vec3(v) / Vec3JSON(v).
type Vec3JSON Vec3

func (v Vec3JSON) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{v.X, v.Y, v.Z})
}

func (v *Vec3JSON) UnmarshalJSON(data []byte) error {
	var a [3]float64
	if err := json.Unmarshal(data, &a); err != nil {
		return errors.Wrap(err, "unmarshal vec3")
	}
	v.X, v.Y, v.Z = a[0], a[1], a[2]
	return nil
}

// ZeroVec3 is the additive identity.
var ZeroVec3 = Vec3{X: 0, Y: 0, Z: 0}

// NewVec3 builds a Vec3 from its components.
func NewVec3(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Vec3AlmostEqual reports whether two vectors differ by less than epsilon in
// each component.
func Vec3AlmostEqual(a, b Vec3, epsilon float64) bool {
	return floatAlmostEqual(a.X, b.X, epsilon) &&
		floatAlmostEqual(a.Y, b.Y, epsilon) &&
		floatAlmostEqual(a.Z, b.Z, epsilon)
}

func floatAlmostEqual(a, b, epsilon float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= epsilon
}
