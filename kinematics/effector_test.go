package kinematics

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/boneik/logging"
	"go.viam.com/boneik/referenceframe"
	spatial "go.viam.com/boneik/spatialmath"
)

const (
	baseBone = iota
	shoulderBone
	elbowBone
	wristBone
)

var zAxis = r3.Vector{Z: 1}

func vectorsAlmostEqual(t *testing.T, a, b r3.Vector, tol float64) {
	t.Helper()
	test.That(t, a.X, test.ShouldAlmostEqual, b.X, tol)
	test.That(t, a.Y, test.ShouldAlmostEqual, b.Y, tol)
	test.That(t, a.Z, test.ShouldAlmostEqual, b.Z, tol)
}

// newPlanarArm builds a root bone at the origin with three unit-length bones laid out along +X and an
// effector on the tip.
func newPlanarArm(t *testing.T, kind SolverKind) (*referenceframe.Skeleton, *Bones, *EndEffector) {
	t.Helper()
	skel := referenceframe.NewSkeleton("planar")
	parent := referenceframe.NoParent
	for _, f := range []struct {
		name string
		x    float64
	}{{"base", 0}, {"shoulder", 0}, {"elbow", 1}, {"wrist", 1}, {"tip", 1}} {
		id, err := skel.AddFrame(f.name, parent, r3.Vector{X: f.x}, spatial.IdentityQuat)
		test.That(t, err, test.ShouldBeNil)
		parent = id
	}

	bones := NewBones(skel)
	for frame := 0; frame < 4; frame++ {
		_, err := bones.AddBone(frame, frame == 0)
		test.That(t, err, test.ShouldBeNil)
	}
	tip, _ := skel.FrameID("tip")
	eff, err := NewEndEffector("tip", bones, tip, NewEffectorConfig(kind), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return skel, bones, eff
}

func calibrate(t *testing.T, eff *EndEffector) {
	t.Helper()
	test.That(t, eff.InitBone(), test.ShouldBeNil)
	eff.InitBoneConfig()
}

// bend turns the elbow and wrist one radian each so that the chain is away from the straight pose.
func bend(skel *referenceframe.Skeleton) {
	for _, name := range []string{"elbow", "wrist"} {
		id, _ := skel.FrameID(name)
		skel.SetLocalRotation(id, spatial.QuatFromAxisAngle(zAxis, 1))
	}
}

func TestInitBone(t *testing.T) {
	_, bones, eff := newPlanarArm(t, CCD)
	test.That(t, eff.BoneNumber(), test.ShouldEqual, 0)
	test.That(t, eff.LastBone(), test.ShouldEqual, NoBone)

	test.That(t, eff.InitBone(), test.ShouldBeNil)
	test.That(t, eff.BoneNumber(), test.ShouldEqual, 3)
	test.That(t, eff.Chain(), test.ShouldResemble, []int{wristBone, elbowBone, shoulderBone})
	test.That(t, eff.LastBone(), test.ShouldEqual, shoulderBone)

	test.That(t, bones.Bone(wristBone).Parent(), test.ShouldEqual, elbowBone)
	test.That(t, bones.Bone(wristBone).Child(), test.ShouldEqual, NoBone)
	test.That(t, bones.Bone(elbowBone).Child(), test.ShouldEqual, wristBone)
	test.That(t, bones.Bone(shoulderBone).Child(), test.ShouldEqual, elbowBone)
	test.That(t, bones.Bone(shoulderBone).Parent(), test.ShouldEqual, baseBone)
	// roots are never linked down into a chain
	test.That(t, bones.Bone(baseBone).Child(), test.ShouldEqual, NoBone)
}

func TestInitBoneErrors(t *testing.T) {
	t.Run("start at root", func(t *testing.T) {
		_, bones, _ := newPlanarArm(t, CCD)
		cfg := NewEffectorConfig(CCD)
		cfg.StartBone = baseBone
		eff, err := NewEndEffector("root", bones, 4, cfg, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, eff.InitBone(), test.ShouldBeError, ErrEmptyChain)
	})

	t.Run("no bone above effector", func(t *testing.T) {
		skel := referenceframe.NewSkeleton("bare")
		_, err := skel.AddFrame("lonely", referenceframe.NoParent, r3.Vector{}, spatial.IdentityQuat)
		test.That(t, err, test.ShouldBeNil)
		eff, err := NewEndEffector("lonely", NewBones(skel), 0, NewEffectorConfig(CCD), logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, eff.InitBone(), test.ShouldBeError, ErrNoStartBone)
	})

	t.Run("looping host", func(t *testing.T) {
		skel := referenceframe.NewSkeleton("loop")
		for _, name := range []string{"a", "b", "tip"} {
			_, err := skel.AddFrame(name, referenceframe.NoParent, r3.Vector{X: 1}, spatial.IdentityQuat)
			test.That(t, err, test.ShouldBeNil)
		}
		bones := NewBones(loopHost{skel})
		for frame := 0; frame < 2; frame++ {
			_, err := bones.AddBone(frame, false)
			test.That(t, err, test.ShouldBeNil)
		}
		eff, err := NewEndEffector("tip", bones, 2, NewEffectorConfig(Jacobian), logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		err = eff.InitBone()
		test.That(t, errors.Is(err, ErrChainTooLong), test.ShouldBeTrue)
		test.That(t, eff.BoneNumber(), test.ShouldEqual, 0)
	})

	t.Run("failure drops the previous chain", func(t *testing.T) {
		_, bones, eff := newPlanarArm(t, Jacobian)
		calibrate(t, eff)
		test.That(t, eff.BoneNumber(), test.ShouldEqual, 3)
		test.That(t, eff.solver.axis, test.ShouldHaveLength, 3)

		// the start bone becomes a root, leaving nothing to move
		bones.Bone(wristBone).IsRoot = true
		test.That(t, eff.InitBone(), test.ShouldBeError, ErrEmptyChain)
		test.That(t, eff.Chain(), test.ShouldBeEmpty)
		test.That(t, eff.rootFirst, test.ShouldBeEmpty)
		test.That(t, eff.LastBone(), test.ShouldEqual, NoBone)
		test.That(t, eff.solver.axis, test.ShouldHaveLength, 0)
		test.That(t, eff.solver.scalar, test.ShouldHaveLength, 0)
	})
}

// loopHost parents frame 0 and 1 to each other, and every other frame to 0.
type loopHost struct {
	*referenceframe.Skeleton
}

func (h loopHost) Parent(frame int) (int, bool) {
	if frame == 0 {
		return 1, true
	}
	return 0, true
}

func TestNewEndEffectorErrors(t *testing.T) {
	_, bones, _ := newPlanarArm(t, CCD)
	_, err := NewEndEffector("far", bones, 42, NewEffectorConfig(CCD), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeError, NewFrameOutOfRangeError(42))

	cfg := NewEffectorConfig(Jacobian)
	cfg.StepSize = -1
	cfg.Iterations = -3
	_, err = NewEndEffector("bad", bones, 4, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "step size")
	test.That(t, err.Error(), test.ShouldContainSubstring, "iterations")
}

func TestInitBoneConfig(t *testing.T) {
	skel, bones, eff := newPlanarArm(t, CCD)
	calibrate(t, eff)
	test.That(t, eff.MaxRange(), test.ShouldAlmostEqual, 9, 1e-12)
	for _, id := range eff.Chain() {
		vectorsAlmostEqual(t, bones.Bone(id).StretchDirection(), r3.Vector{X: 1}, 1e-12)
	}
	// calibration leaves the pose alone
	tip, _ := skel.FrameID("tip")
	vectorsAlmostEqual(t, skel.WorldPosition(tip), r3.Vector{X: 3}, 1e-12)
}

func TestCCDConverges(t *testing.T) {
	skel, _, eff := newPlanarArm(t, CCD)
	calibrate(t, eff)
	bend(skel)

	// half of the calibrated squared reach
	for _, target := range []r3.Vector{{X: 1.5, Y: 1.5}, {X: 2, Y: 0.5}} {
		res := eff.SetTargetPosition(target)
		test.That(t, res.Mode, test.ShouldEqual, ModeReaching)
		test.That(t, res.Converged, test.ShouldBeTrue)
		test.That(t, res.Iterations, test.ShouldBeLessThanOrEqualTo, DefaultCCDIterations)
		test.That(t, eff.CheckEnd(), test.ShouldBeTrue)
		test.That(t, eff.Target(), test.ShouldResemble, target)
	}
}

func TestCCDExhaustsIterationsSilently(t *testing.T) {
	skel, _, eff := newPlanarArm(t, CCD)
	calibrate(t, eff)
	tip, _ := skel.FrameID("tip")

	// a straight chain aimed at a closer point on its own line cannot fold with root-first CCD
	res := eff.SetTargetPosition(r3.Vector{X: 2})
	test.That(t, res.Mode, test.ShouldEqual, ModeReaching)
	test.That(t, res.Converged, test.ShouldBeFalse)
	test.That(t, res.Iterations, test.ShouldEqual, DefaultCCDIterations)
	test.That(t, eff.CheckEnd(), test.ShouldBeFalse)
	vectorsAlmostEqual(t, skel.WorldPosition(tip), r3.Vector{X: 3}, 1e-9)
}

func TestReachBoundary(t *testing.T) {
	skel, _, eff := newPlanarArm(t, CCD)
	calibrate(t, eff)
	tip, _ := skel.FrameID("tip")

	// exactly at the calibrated reach still runs the solver
	res := eff.SetTargetPosition(r3.Vector{Y: 3})
	test.That(t, res.Mode, test.ShouldEqual, ModeReaching)

	res = eff.SetTargetPosition(r3.Vector{Y: -3.5})
	test.That(t, res.Mode, test.ShouldEqual, ModeStretching)
	test.That(t, res.Iterations, test.ShouldEqual, 0)
	test.That(t, res.Converged, test.ShouldBeFalse)
	vectorsAlmostEqual(t, skel.WorldPosition(tip), r3.Vector{Y: -3}, 1e-9)
}

func TestStretchFullLength(t *testing.T) {
	for _, kind := range []SolverKind{CCD, Jacobian} {
		t.Run(kind.String(), func(t *testing.T) {
			skel, bones, eff := newPlanarArm(t, kind)
			bend(skel)
			calibrate(t, eff)
			eff.SetTargetPosition(r3.Vector{X: 1, Y: 1.2})

			eff.Stretch()
			tip, _ := skel.FrameID("tip")
			last := bones.Bone(eff.LastBone())
			dist := skel.WorldPosition(tip).Sub(skel.WorldPosition(last.Frame)).Norm2()
			test.That(t, dist, test.ShouldAlmostEqual, eff.MaxRange(), 1e-9)
		})
	}
}

func TestStretchReproducesCalibrationPose(t *testing.T) {
	for name, pose := range map[string]func(skel *referenceframe.Skeleton){
		"twisted straight": func(skel *referenceframe.Skeleton) {
			// bones twisted about their own length
			shoulder, _ := skel.FrameID("shoulder")
			elbow, _ := skel.FrameID("elbow")
			wrist, _ := skel.FrameID("wrist")
			skel.SetLocalRotation(shoulder, spatial.QuatFromAxisAngle(zAxis, math.Pi/6))
			skel.SetLocalRotation(elbow, spatial.QuatFromAxisAngle(r3.Vector{X: 1}, 0.7))
			skel.SetLocalRotation(wrist, spatial.QuatFromAxisAngle(r3.Vector{X: 1}, -0.4))
		},
		"bent": bend,
		"bent out of plane": func(skel *referenceframe.Skeleton) {
			elbow, _ := skel.FrameID("elbow")
			wrist, _ := skel.FrameID("wrist")
			skel.SetLocalRotation(elbow, spatial.NewEulerAnglesDegrees(20, -35, 50).Quaternion())
			skel.SetLocalRotation(wrist, spatial.NewEulerAnglesDegrees(-40, 10, 70).Quaternion())
		},
	} {
		t.Run(name, func(t *testing.T) {
			skel, _, eff := newPlanarArm(t, CCD)
			tip, _ := skel.FrameID("tip")
			pose(skel)
			before := skel.Pose()
			tipPos := skel.WorldPosition(tip)

			calibrate(t, eff)
			eff.SetTargetPosition(r3.Vector{X: 0.5, Y: 1})
			eff.Stretch()
			for i, q := range skel.Pose() {
				test.That(t, spatial.QuaternionAlmostEqual(q, before[i], 1e-9), test.ShouldBeTrue)
			}
			vectorsAlmostEqual(t, skel.WorldPosition(tip), tipPos, 1e-9)
		})
	}
}

func TestStretchContinuousAtBoundary(t *testing.T) {
	skel, bones, eff := newPlanarArm(t, CCD)
	bend(skel)
	calibrate(t, eff)
	tip, _ := skel.FrameID("tip")
	origin := skel.WorldPosition(bones.Bone(eff.LastBone()).Frame)
	reach := math.Sqrt(eff.MaxRange())
	dir := r3.Vector{X: -1, Y: 2, Z: 0.5}.Normalize()

	// just past the calibrated reach the effector stops at the reach, on the way to the target
	target := origin.Add(dir.Mul(reach * 1.001))
	res := eff.SetTargetPosition(target)
	test.That(t, res.Mode, test.ShouldEqual, ModeStretching)
	vectorsAlmostEqual(t, skel.WorldPosition(tip), origin.Add(dir.Mul(reach)), 1e-9)
	test.That(t, skel.WorldPosition(tip).Distance(target), test.ShouldAlmostEqual, reach*0.001, 1e-9)
}

func TestResetRestoresRest(t *testing.T) {
	skel, _, eff := newPlanarArm(t, Jacobian)
	bend(skel)
	pose := skel.Pose()
	calibrate(t, eff)

	eff.SetTargetPosition(r3.Vector{X: 0.5, Y: 1})
	eff.Reset()
	for i, q := range skel.Pose() {
		test.That(t, spatial.QuaternionAlmostEqual(q, pose[i], 1e-12), test.ShouldBeTrue)
	}
}

func TestJacobianConverges(t *testing.T) {
	skel, _, eff := newPlanarArm(t, Jacobian)
	calibrate(t, eff)
	bend(skel)

	res := eff.SetTargetPosition(r3.Vector{X: 1.5, Y: 1.5})
	test.That(t, res.Mode, test.ShouldEqual, ModeReaching)
	test.That(t, res.Iterations, test.ShouldEqual, DefaultJacobianIterations)
	test.That(t, res.Converged, test.ShouldBeTrue)
}

func TestJacobianSingleBone(t *testing.T) {
	skel := referenceframe.NewSkeleton("single")
	base, err := skel.AddFrame("base", referenceframe.NoParent, r3.Vector{}, spatial.IdentityQuat)
	test.That(t, err, test.ShouldBeNil)
	arm, err := skel.AddFrame("arm", base, r3.Vector{}, spatial.IdentityQuat)
	test.That(t, err, test.ShouldBeNil)
	tip, err := skel.AddFrame("tip", arm, r3.Vector{X: 1}, spatial.IdentityQuat)
	test.That(t, err, test.ShouldBeNil)

	bones := NewBones(skel)
	_, err = bones.AddBone(base, true)
	test.That(t, err, test.ShouldBeNil)
	armBone, err := bones.AddBone(arm, false)
	test.That(t, err, test.ShouldBeNil)
	bones.Bone(armBone).AimAxis = r3.Vector{X: 1}

	eff, err := NewEndEffector("tip", bones, tip, NewEffectorConfig(Jacobian), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	calibrate(t, eff)
	test.That(t, eff.BoneNumber(), test.ShouldEqual, 1)

	target := r3.Vector{Y: 0.9}
	for i := 0; i < 3; i++ {
		test.That(t, eff.SetTargetPosition(target).Mode, test.ShouldEqual, ModeReaching)
	}
	aim := skel.TransformDirection(arm, r3.Vector{X: 1})
	toTarget := target.Sub(skel.WorldPosition(arm)).Normalize()
	test.That(t, aim.Dot(toTarget), test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, aim.Cross(toTarget).Norm(), test.ShouldBeLessThan, 1e-6)
}

func TestJacobianDegenerateStaysFinite(t *testing.T) {
	skel, _, eff := newPlanarArm(t, Jacobian)
	calibrate(t, eff)
	tip, _ := skel.FrameID("tip")

	// effector and target on one line through every bone
	eff.SetTargetPosition(r3.Vector{X: 1.5})
	pos := skel.WorldPosition(tip)
	test.That(t, math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z), test.ShouldBeFalse)
	for _, q := range skel.Pose() {
		test.That(t, quat.IsNaN(q), test.ShouldBeFalse)
	}
}

func TestAddBoneResizesScratch(t *testing.T) {
	skel := referenceframe.NewSkeleton("growing")
	parent := referenceframe.NoParent
	for i, name := range []string{"base", "upper", "middle", "lower", "tip"} {
		x := 1.0
		if i == 0 {
			x = 0
		}
		id, err := skel.AddFrame(name, parent, r3.Vector{X: x}, spatial.IdentityQuat)
		test.That(t, err, test.ShouldBeNil)
		parent = id
	}
	bones := NewBones(skel)
	for _, frame := range []int{0, 1, 3} {
		_, err := bones.AddBone(frame, frame == 0)
		test.That(t, err, test.ShouldBeNil)
	}

	eff, err := NewEndEffector("tip", bones, 4, NewEffectorConfig(Jacobian), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	calibrate(t, eff)
	test.That(t, eff.BoneNumber(), test.ShouldEqual, 2)
	test.That(t, eff.solver.axis, test.ShouldHaveLength, 2)
	test.That(t, eff.solver.scalar, test.ShouldHaveLength, 2)

	_, err = bones.AddBone(2, false)
	test.That(t, err, test.ShouldBeNil)
	calibrate(t, eff)
	test.That(t, eff.BoneNumber(), test.ShouldEqual, 3)
	test.That(t, eff.solver.axis, test.ShouldHaveLength, 3)
	test.That(t, eff.solver.scalar, test.ShouldHaveLength, 3)

	res := eff.SetTargetPosition(r3.Vector{X: 2, Y: 1})
	test.That(t, res.Mode, test.ShouldEqual, ModeReaching)
}

func TestModeTransitionsLogged(t *testing.T) {
	skel, bones, _ := newPlanarArm(t, CCD)
	logger, logs := logging.NewObservedTestLogger(t)
	tip, _ := skel.FrameID("tip")
	eff, err := NewEndEffector("tip", bones, tip, NewEffectorConfig(CCD), logger)
	test.That(t, err, test.ShouldBeNil)
	calibrate(t, eff)
	bend(skel)

	eff.SetTargetPosition(r3.Vector{X: 1.5, Y: 1.5})
	eff.SetTargetPosition(r3.Vector{X: 1.5, Y: 1.4})
	eff.SetTargetPosition(r3.Vector{X: 10})
	eff.SetTargetPosition(r3.Vector{X: 11})
	eff.SetTargetPosition(r3.Vector{X: 1.5, Y: 1.5})
	test.That(t, logs.FilterMessage("end effector mode changed").Len(), test.ShouldEqual, 3)
	test.That(t, logs.FilterMessage("calibrated bone chain").Len(), test.ShouldEqual, 1)
}
