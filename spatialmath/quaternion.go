// Package spatialmath holds the vector and rotation math used to pose bone chains. Vectors are
// golang/geo r3.Vector values and rotations are gonum unit quaternions.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// oppositeEpsilon is the 1+cos threshold under which two directions are treated as opposite.
const oppositeEpsilon = 1e-9

// IdentityQuat is the rotation that does nothing.
var IdentityQuat = quat.Number{Real: 1}

// QuatFromAxisAngle returns the rotation of theta radians about axis.
func QuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	return NewR4AAFromVector(axis, theta).ToQuat()
}

// RotateVector applies the rotation q to v.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// InverseRotateVector applies the inverse of the unit rotation q to v.
func InverseRotateVector(q quat.Number, v r3.Vector) r3.Vector {
	return RotateVector(quat.Conj(q), v)
}

// Normalize scales q to unit length. The zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return IdentityQuat
	}
	return quat.Scale(1/n, q)
}

// Flip multiplies a quaternion by -1, returning the same orientation in the opposing octant.
func Flip(q quat.Number) quat.Number {
	return quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}

// QuaternionAlmostEqual reports whether a and b describe the same rotation within tol, treating q
// and -q as equal.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	return quat.Abs(quat.Sub(a, b)) <= tol || quat.Abs(quat.Add(a, b)) <= tol
}

// FromToRotation returns the shortest-arc rotation taking direction from onto direction to. When the
// two are antiparallel the rotation is a half turn about twist, projected perpendicular to from; if
// twist is itself parallel to from, any perpendicular axis is used. Zero-length inputs yield the identity.
func FromToRotation(from, to, twist r3.Vector) quat.Number {
	f := from.Normalize()
	t := to.Normalize()
	if f.Norm2() == 0 || t.Norm2() == 0 {
		return IdentityQuat
	}
	c := f.Dot(t)
	if c >= 1 {
		return IdentityQuat
	}
	if c <= -1+oppositeEpsilon {
		axis := twist.Sub(f.Mul(twist.Dot(f)))
		if axis.Norm2() < oppositeEpsilon {
			axis = f.Ortho()
		}
		return QuatFromAxisAngle(axis, math.Pi)
	}
	axis := f.Cross(t)
	s := math.Sqrt((1 + c) * 2)
	return Normalize(quat.Number{Real: s / 2, Imag: axis.X / s, Jmag: axis.Y / s, Kmag: axis.Z / s})
}

// QuatToRotationMatrix returns the rotation matrix of q as an mgl64 homogeneous matrix.
func QuatToRotationMatrix(q quat.Number) mgl64.Mat4 {
	return mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}.Normalize().Mat4()
}
