package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/boneik/utils"
)

// gimbalEpsilon is how close |sin(roll)| may get to 1 before the decomposition is treated as locked.
const gimbalEpsilon = 1e-9

var (
	xAxis = r3.Vector{X: 1}
	yAxis = r3.Vector{Y: 1}
	zAxis = r3.Vector{Z: 1}
)

// EulerAngles are rotations in radians about the X (Roll), Y (Pitch) and Z (Yaw) axes. They are
// applied Z first, then X, then Y, so the composed rotation is Ry * Rx * Rz. The decomposition keeps
// Roll in [-pi/2, pi/2].
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// NewEulerAngles returns the zero rotation.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{}
}

// NewEulerAnglesDegrees builds EulerAngles from per-axis degrees.
func NewEulerAnglesDegrees(roll, pitch, yaw float64) *EulerAngles {
	return &EulerAngles{Roll: utils.DegToRad(roll), Pitch: utils.DegToRad(pitch), Yaw: utils.DegToRad(yaw)}
}

// Degrees returns the angles in degrees, ordered X, Y, Z.
func (ea *EulerAngles) Degrees() [3]float64 {
	return [3]float64{utils.RadToDeg(ea.Roll), utils.RadToDeg(ea.Pitch), utils.RadToDeg(ea.Yaw)}
}

// Quaternion composes the angles into a unit quaternion.
func (ea *EulerAngles) Quaternion() quat.Number {
	qx := QuatFromAxisAngle(xAxis, ea.Roll)
	qy := QuatFromAxisAngle(yAxis, ea.Pitch)
	qz := QuatFromAxisAngle(zAxis, ea.Yaw)
	return quat.Mul(quat.Mul(qy, qx), qz)
}

// GimbalLocked reports whether Roll sits at +-90 degrees as produced by QuatToEulerAngles in lock. There
// only Pitch - sin(Roll)*Yaw is determined by the rotation.
func (ea *EulerAngles) GimbalLocked() bool {
	return math.Abs(ea.Roll) == math.Pi/2
}

// QuatToEulerAngles decomposes q into EulerAngles. In gimbal lock Yaw is fixed at zero and the
// whole remaining rotation is carried by Pitch.
func QuatToEulerAngles(q quat.Number) *EulerAngles {
	m := QuatToRotationMatrix(q)
	sinRoll := utils.ClampFloat(-m.At(1, 2), -1, 1)
	ea := &EulerAngles{Roll: math.Asin(sinRoll)}
	if math.Abs(sinRoll) < 1-gimbalEpsilon {
		ea.Pitch = math.Atan2(m.At(0, 2), m.At(2, 2))
		ea.Yaw = math.Atan2(m.At(1, 0), m.At(1, 1))
		return ea
	}
	ea.Roll = math.Copysign(math.Pi/2, sinRoll)
	ea.Pitch = math.Atan2(-m.At(2, 0), m.At(0, 0))
	return ea
}
