package kinematics

import (
	"math"
	"strconv"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	spatial "go.viam.com/boneik/spatialmath"
	"go.viam.com/boneik/utils"
)

// NoBone is the handle used where a bone has no parent or child.
const NoBone = -1

// limitEpsilon is how far, in degrees, a clamped angle must move before the rotation is rewritten.
const limitEpsilon = 1e-9

// Limit is a closed interval of allowed rotation about one axis, in degrees.
type Limit struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DefaultLimit allows any rotation.
var DefaultLimit = Limit{Min: -180, Max: 180}

// Valid reports whether the interval is ordered and within [-180, 180].
func (l Limit) Valid() bool {
	return l.Min <= l.Max && l.Min >= -180 && l.Max <= 180
}

// rollRange intersects the limit with the [-90, 90] range of a decomposed roll. A limit entirely outside
// that range collapses to the nearest end.
func (l Limit) rollRange() (float64, float64) {
	lo := utils.ClampFloat(l.Min, -90, 90)
	hi := utils.ClampFloat(l.Max, -90, 90)
	return lo, hi
}

// Bone is one joint of a chain, attached to a host frame. Limits are indexed X, Y, Z and applied to the
// Euler decomposition of the frame's local rotation. AimAxis, in local space, is the axis the bone turns
// about when an aim is ambiguous.
type Bone struct {
	Frame   int
	Limits  [3]Limit
	AimAxis r3.Vector
	IsRoot  bool

	id     int
	arena  *Bones
	parent int
	child  int

	stretchDirection r3.Vector
	stretchPoint     r3.Vector
	restRotation     quat.Number
	stretchRotation  quat.Number
}

// ID returns the bone's handle in its arena.
func (b *Bone) ID() int {
	return b.id
}

// Parent returns the handle of the nearest ancestor bone, or NoBone.
func (b *Bone) Parent() int {
	return b.parent
}

// Child returns the handle of the bone below this one in its chain, or NoBone.
func (b *Bone) Child() int {
	return b.child
}

// StretchDirection returns the calibrated unit direction, in the bone's local space, towards its child.
func (b *Bone) StretchDirection() r3.Vector {
	return b.stretchDirection
}

// FindParent links the bone to the nearest ancestor bone in the host hierarchy. A parent that is not a
// root gets this bone as its child. The walk fails with ErrChainTooLong if the host hierarchy loops.
func (b *Bone) FindParent() error {
	host := b.arena.host
	b.parent = NoBone
	frame := b.Frame
	for steps := 0; ; steps++ {
		if steps > host.NumFrames() {
			return ErrChainTooLong
		}
		p, ok := host.Parent(frame)
		if !ok {
			return nil
		}
		if id, ok := b.arena.byFrame[p]; ok {
			b.parent = id
			if parent := b.arena.bones[id]; !parent.IsRoot {
				parent.child = b.id
			}
			return nil
		}
		frame = p
	}
}

// LimitRotation clamps each Euler angle of the local rotation into its limit. The rotation is only
// written back when some angle actually moved.
//
// Roll is decomposed into [-90, 90], so its limit is intersected with that range. At a roll of +-90
// degrees only pitch - sin(roll)*yaw is fixed by the rotation; yaw is then taken as close to zero as its
// limit allows and the remainder is carried by pitch.
func (b *Bone) LimitRotation() {
	host := b.arena.host
	ea := spatial.QuatToEulerAngles(host.LocalRotation(b.Frame))
	angles := ea.Degrees()

	lo, hi := b.Limits[0].rollRange()
	roll := utils.ClampFloat(angles[0], lo, hi)
	if ea.GimbalLocked() && utils.Float64AlmostEqual(roll, angles[0], limitEpsilon) {
		sign := math.Copysign(1, angles[0])
		locked := utils.NormalizeAngleDeg(angles[1])
		yaw := utils.ClampFloat(0, b.Limits[2].Min, b.Limits[2].Max)
		pitch := utils.ClampFloat(utils.NormalizeAngleDeg(locked+sign*yaw), b.Limits[1].Min, b.Limits[1].Max)
		if utils.Float64AlmostEqual(utils.NormalizeAngleDeg(pitch-sign*yaw), locked, limitEpsilon) {
			return
		}
		host.SetLocalRotation(b.Frame, spatial.NewEulerAnglesDegrees(sign*90, pitch, yaw).Quaternion())
		return
	}

	changed := !utils.Float64AlmostEqual(roll, angles[0], limitEpsilon)
	angles[0] = roll
	for i := 1; i < 3; i++ {
		deg := utils.NormalizeAngleDeg(angles[i])
		clamped := utils.ClampFloat(deg, b.Limits[i].Min, b.Limits[i].Max)
		if !utils.Float64AlmostEqual(clamped, deg, limitEpsilon) {
			changed = true
		}
		angles[i] = clamped
	}
	if !changed {
		return
	}
	host.SetLocalRotation(b.Frame, spatial.NewEulerAnglesDegrees(angles[0], angles[1], angles[2]).Quaternion())
}

// SetStretchDirection records the direction from the bone towards worldPoint in the bone's local space,
// along with the point itself.
func (b *Bone) SetStretchDirection(worldPoint r3.Vector) {
	if b.IsRoot {
		return
	}
	b.stretchPoint = worldPoint
	b.stretchDirection = b.arena.host.InverseTransformPoint(b.Frame, worldPoint).Normalize()
}

// SetStretchRotate calibrates the stretch pose. The current local rotation becomes the rest rotation.
// The stretch rotation keeps the calibrated stretch direction on the child's calibrated position, within
// the bone's limits, so stretching right after calibration gives back the calibration pose. Bones hanging
// directly off a root keep their rest rotation.
func (b *Bone) SetStretchRotate() {
	host := b.arena.host
	b.restRotation = host.LocalRotation(b.Frame)
	b.stretchRotation = b.restRotation
	if b.parent == NoBone {
		return
	}
	if b.arena.bones[b.parent].IsRoot {
		return
	}

	host.AimAxis(b.Frame, b.stretchDirection, b.stretchPoint.Sub(host.WorldPosition(b.Frame)), b.AimAxis)
	b.LimitRotation()
	b.stretchRotation = host.LocalRotation(b.Frame)
	host.SetLocalRotation(b.Frame, b.restRotation)
}

// Stretch applies the calibrated stretch rotation.
func (b *Bone) Stretch() {
	b.arena.host.SetLocalRotation(b.Frame, b.stretchRotation)
}

// Rest applies the rotation the bone had when it was calibrated.
func (b *Bone) Rest() {
	b.arena.host.SetLocalRotation(b.Frame, b.restRotation)
}

// Bones is an arena of bones over one host. Handles are stable for the life of the arena.
type Bones struct {
	host    Host
	bones   []*Bone
	byFrame map[int]int
}

// NewBones returns an empty arena over host.
func NewBones(host Host) *Bones {
	return &Bones{host: host, byFrame: map[int]int{}}
}

// Host returns the transform hierarchy the bones live in.
func (bs *Bones) Host() Host {
	return bs.host
}

// AddBone attaches a bone to frame and returns its handle. The bone turns about local +Z and has no
// rotation limits until configured otherwise.
func (bs *Bones) AddBone(frame int, isRoot bool) (int, error) {
	if frame < 0 || frame >= bs.host.NumFrames() {
		return NoBone, NewFrameOutOfRangeError(frame)
	}
	if _, ok := bs.byFrame[frame]; ok {
		return NoBone, NewDuplicateBoneError(strconv.Itoa(frame))
	}
	id := len(bs.bones)
	bs.bones = append(bs.bones, &Bone{
		Frame:           frame,
		Limits:          [3]Limit{DefaultLimit, DefaultLimit, DefaultLimit},
		AimAxis:         r3.Vector{Z: 1},
		IsRoot:          isRoot,
		id:              id,
		arena:           bs,
		parent:          NoBone,
		child:           NoBone,
		restRotation:    spatial.IdentityQuat,
		stretchRotation: spatial.IdentityQuat,
	})
	bs.byFrame[frame] = id
	return id, nil
}

// Bone returns the bone with handle id.
func (bs *Bones) Bone(id int) *Bone {
	return bs.bones[id]
}

// BoneAt returns the handle of the bone attached to frame.
func (bs *Bones) BoneAt(frame int) (int, bool) {
	id, ok := bs.byFrame[frame]
	return id, ok
}

// Len returns the number of bones.
func (bs *Bones) Len() int {
	return len(bs.bones)
}
