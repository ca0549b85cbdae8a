package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// IdentityQuat is the orientation representing no rotation.
var IdentityQuat = quat.Number{Real: 1}

// QuatFromAxisAngle builds a quaternion rotating by theta radians about
// axis. Unlike the axis-angle conversions used elsewhere in this package's
// upstream (which renormalize the axis before use), axis is taken as given:
// a caller that passes a non-unit axis gets a non-unit-axis rotation. This
// matches the original server's behavior and is relied upon by callers that
// construct an effective joint axis without renormalizing it first.
func QuatFromAxisAngle(axis Vec3, theta float64) quat.Number {
	half := theta / 2
	s := math.Sin(half)
	return quat.Number{
		Real: math.Cos(half),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// QuatMul returns the Hamilton product q1*q2, matching Pose composition
// order: applying q2 in the frame established by q1.
func QuatMul(q1, q2 quat.Number) quat.Number {
	return quat.Mul(q1, q2)
}

// QuatNormalize returns q scaled to unit length. The zero quaternion
// normalizes to the identity rather than panicking or producing NaNs, since
// wire input of all-zero orientation is otherwise a valid (if degenerate)
// payload.
func QuatNormalize(q quat.Number) quat.Number {
	norm := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if norm == 0 {
		return IdentityQuat
	}
	return quat.Scale(1/norm, q)
}

// QuatRotateVec rotates v by q via the sandwich product q*(v,0)*conj(q).
// For a non-unit q the result is also scaled by |q|².
func QuatRotateVec(q quat.Number, v Vec3) Vec3 {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return Vec3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// QuatAlmostEqual reports whether two quaternions differ by less than
// epsilon in each component.
func QuatAlmostEqual(a, b quat.Number, epsilon float64) bool {
	return floatAlmostEqual(a.Real, b.Real, epsilon) &&
		floatAlmostEqual(a.Imag, b.Imag, epsilon) &&
		floatAlmostEqual(a.Jmag, b.Jmag, epsilon) &&
		floatAlmostEqual(a.Kmag, b.Kmag, epsilon)
}
