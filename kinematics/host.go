// Package kinematics poses linear bone chains so that an end effector tracks a target point. Chains are
// solved by cyclic coordinate descent or by a first-order Jacobian update, with a calibrated stretch pose
// used for targets out of reach.
package kinematics

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/boneik/referenceframe"
)

// Host is the transform hierarchy that bones are attached to. Frames are addressed by integer handles.
type Host interface {
	NumFrames() int
	// Parent returns the parent of frame, and false when frame is attached to the world.
	Parent(frame int) (int, bool)
	WorldPosition(frame int) r3.Vector
	InverseTransformPoint(frame int, world r3.Vector) r3.Vector
	TransformDirection(frame int, local r3.Vector) r3.Vector
	LocalRotation(frame int) quat.Number
	SetLocalRotation(frame int, q quat.Number)
	// RotateAround turns frame about its origin by angle radians around a world axis.
	RotateAround(frame int, worldAxis r3.Vector, angle float64)
	// AimAxis turns frame so that localAxis points along worldDir, using localTwist as the turn axis
	// when the two point in opposite directions.
	AimAxis(frame int, localAxis, worldDir, localTwist r3.Vector)
}

var _ Host = (*referenceframe.Skeleton)(nil)
