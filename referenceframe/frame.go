// Package referenceframe holds Skeleton, a transform hierarchy of named frames addressed by integer
// handles. It answers the spatial queries a bone chain needs: world positions, point and direction
// transforms, and rotation writes in local or world space.
package referenceframe

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	spatial "go.viam.com/boneik/spatialmath"
)

// NoParent is the parent handle of a frame attached directly to the world.
const NoParent = -1

// Frame is one node of a Skeleton. Translation and Rotation are relative to the parent frame.
type Frame struct {
	Name        string
	Parent      int
	Translation r3.Vector
	Rotation    quat.Number
}

// Skeleton is an arena of frames. A frame's parent is always added before it, so the hierarchy is
// acyclic by construction. Handles are stable for the life of the Skeleton. Skeleton is not safe for
// concurrent use.
type Skeleton struct {
	name   string
	frames []Frame
	byName map[string]int
}

// NewSkeleton returns an empty skeleton.
func NewSkeleton(name string) *Skeleton {
	return &Skeleton{name: name, byName: map[string]int{}}
}

// Name returns the skeleton's name.
func (s *Skeleton) Name() string {
	return s.name
}

// AddFrame appends a frame and returns its handle.
func (s *Skeleton) AddFrame(name string, parent int, translation r3.Vector, rotation quat.Number) (int, error) {
	if name == "" {
		return NoParent, ErrEmptyFrameName
	}
	if _, ok := s.byName[name]; ok {
		return NoParent, NewDuplicateFrameError(name)
	}
	if parent != NoParent && (parent < 0 || parent >= len(s.frames)) {
		return NoParent, NewParentFrameMissingError(name, parent)
	}
	id := len(s.frames)
	s.frames = append(s.frames, Frame{
		Name:        name,
		Parent:      parent,
		Translation: translation,
		Rotation:    spatial.Normalize(rotation),
	})
	s.byName[name] = id
	return id, nil
}

// FrameID looks up a frame handle by name.
func (s *Skeleton) FrameID(name string) (int, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// Frame returns a copy of the frame at id.
func (s *Skeleton) Frame(id int) Frame {
	return s.frames[id]
}

// NumFrames returns how many frames have been added.
func (s *Skeleton) NumFrames() int {
	return len(s.frames)
}

// Parent returns the parent handle of id and whether it has one.
func (s *Skeleton) Parent(id int) (int, bool) {
	p := s.frames[id].Parent
	return p, p != NoParent
}

// LocalRotation returns the rotation of id relative to its parent.
func (s *Skeleton) LocalRotation(id int) quat.Number {
	return s.frames[id].Rotation
}

// SetLocalRotation replaces the rotation of id relative to its parent.
func (s *Skeleton) SetLocalRotation(id int, q quat.Number) {
	s.frames[id].Rotation = spatial.Normalize(q)
}

// SetTranslation replaces the translation of id relative to its parent.
func (s *Skeleton) SetTranslation(id int, t r3.Vector) {
	s.frames[id].Translation = t
}

// WorldPose returns the world position and rotation of id.
func (s *Skeleton) WorldPose(id int) (r3.Vector, quat.Number) {
	f := s.frames[id]
	pos, rot := f.Translation, f.Rotation
	for p := f.Parent; p != NoParent; p = s.frames[p].Parent {
		parent := s.frames[p]
		pos = spatial.RotateVector(parent.Rotation, pos).Add(parent.Translation)
		rot = quat.Mul(parent.Rotation, rot)
	}
	return pos, rot
}

// WorldPosition returns the origin of id in world space.
func (s *Skeleton) WorldPosition(id int) r3.Vector {
	pos, _ := s.WorldPose(id)
	return pos
}

// WorldRotation returns the rotation of id in world space.
func (s *Skeleton) WorldRotation(id int) quat.Number {
	_, rot := s.WorldPose(id)
	return rot
}

// parentWorldRotation is the identity for frames attached to the world.
func (s *Skeleton) parentWorldRotation(id int) quat.Number {
	if p, ok := s.Parent(id); ok {
		return s.WorldRotation(p)
	}
	return spatial.IdentityQuat
}

// SetWorldRotation sets the local rotation of id so that its world rotation becomes q.
func (s *Skeleton) SetWorldRotation(id int, q quat.Number) {
	s.SetLocalRotation(id, quat.Mul(quat.Conj(s.parentWorldRotation(id)), q))
}

// TransformPoint maps a point in the local space of id to world space.
func (s *Skeleton) TransformPoint(id int, local r3.Vector) r3.Vector {
	pos, rot := s.WorldPose(id)
	return spatial.RotateVector(rot, local).Add(pos)
}

// InverseTransformPoint maps a world point into the local space of id.
func (s *Skeleton) InverseTransformPoint(id int, world r3.Vector) r3.Vector {
	pos, rot := s.WorldPose(id)
	return spatial.InverseRotateVector(rot, world.Sub(pos))
}

// TransformDirection rotates a direction from the local space of id to world space.
func (s *Skeleton) TransformDirection(id int, local r3.Vector) r3.Vector {
	return spatial.RotateVector(s.WorldRotation(id), local)
}

// InverseTransformDirection rotates a world direction into the local space of id.
func (s *Skeleton) InverseTransformDirection(id int, world r3.Vector) r3.Vector {
	return spatial.InverseRotateVector(s.WorldRotation(id), world)
}

// RotateAround turns id about its own origin by angle radians around a world-space axis.
func (s *Skeleton) RotateAround(id int, worldAxis r3.Vector, angle float64) {
	delta := spatial.QuatFromAxisAngle(worldAxis, angle)
	s.SetWorldRotation(id, quat.Mul(delta, s.WorldRotation(id)))
}

// AimAxis turns id by the shortest arc so that localAxis points along worldDir. localTwist, a local
// axis, picks the turn axis when localAxis currently points directly away from worldDir.
func (s *Skeleton) AimAxis(id int, localAxis, worldDir, localTwist r3.Vector) {
	rot := s.WorldRotation(id)
	current := spatial.RotateVector(rot, localAxis)
	twist := spatial.RotateVector(rot, localTwist)
	delta := spatial.FromToRotation(current, worldDir, twist)
	s.SetWorldRotation(id, quat.Mul(delta, rot))
}

// Pose returns the local rotation of every frame, indexed by handle.
func (s *Skeleton) Pose() []quat.Number {
	pose := make([]quat.Number, len(s.frames))
	for i, f := range s.frames {
		pose[i] = f.Rotation
	}
	return pose
}

// SetPose restores rotations captured by Pose. Extra entries are ignored.
func (s *Skeleton) SetPose(pose []quat.Number) {
	for i := 0; i < len(pose) && i < len(s.frames); i++ {
		s.frames[i].Rotation = pose[i]
	}
}
