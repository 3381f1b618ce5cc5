package kinematics

import (
	"slices"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo/mutable"

	"go.viam.com/boneik/logging"
)

// Mode says how the last target was handled.
type Mode int

const (
	// ModeReaching means the target was within reach and the solver ran.
	ModeReaching Mode = iota
	// ModeStretching means the target was out of reach and the chain was stretched towards it.
	ModeStretching
)

func (m Mode) String() string {
	switch m {
	case ModeReaching:
		return "reaching"
	case ModeStretching:
		return "stretching"
	default:
		return "unknown"
	}
}

// Result describes one SetTargetPosition call. Iterations and Converged are only set when reaching.
type Result struct {
	Mode       Mode
	Iterations int
	Converged  bool
}

// EndEffector drives a chain of bones so that its effector frame tracks a target. It exclusively owns
// the rotations of the bones in its chain and is not safe for concurrent use.
//
// InitBone and then InitBoneConfig must run before the first SetTargetPosition, and again whenever the
// hierarchy or rest pose changes. This is not checked.
type EndEffector struct {
	name      string
	bones     *Bones
	frame     int
	startBone int
	tolerance float64
	solver    Solver
	logger    logging.Logger

	target   r3.Vector
	maxRange float64
	// chain runs from the bone nearest the effector up to, not including, the root
	chain     []int
	rootFirst []int
	mode      Mode
	hasMode   bool
}

// NewEndEffector creates an effector on frame that solves with the algorithm described by cfg.
func NewEndEffector(name string, bones *Bones, frame int, cfg EffectorConfig, logger logging.Logger) (*EndEffector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config for end effector %q", name)
	}
	if frame < 0 || frame >= bones.host.NumFrames() {
		return nil, NewFrameOutOfRangeError(frame)
	}
	tolerance := cfg.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}
	return &EndEffector{
		name:      name,
		bones:     bones,
		frame:     frame,
		startBone: cfg.StartBone,
		tolerance: tolerance,
		solver:    NewSolver(cfg),
		logger:    logger,
	}, nil
}

// Name returns the effector's name.
func (e *EndEffector) Name() string {
	return e.name
}

// Frame returns the host frame whose position is controlled.
func (e *EndEffector) Frame() int {
	return e.frame
}

// Solver returns the algorithm used when the target is within reach.
func (e *EndEffector) Solver() SolverKind {
	return e.solver.Kind
}

// Chain returns the bone handles of the chain, nearest the effector first.
func (e *EndEffector) Chain() []int {
	return slices.Clone(e.chain)
}

// BoneNumber returns the number of bones in the chain.
func (e *EndEffector) BoneNumber() int {
	return len(e.chain)
}

// LastBone returns the handle of the chain bone adjacent to the root.
func (e *EndEffector) LastBone() int {
	if len(e.chain) == 0 {
		return NoBone
	}
	return e.chain[len(e.chain)-1]
}

// MaxRange returns the calibrated squared distance between the effector and the last bone.
func (e *EndEffector) MaxRange() float64 {
	return e.maxRange
}

// Target returns the last target handed to the solver.
func (e *EndEffector) Target() r3.Vector {
	return e.target
}

// resolveStartBone returns the configured starting bone, or the nearest bone above the effector frame.
func (e *EndEffector) resolveStartBone() (int, error) {
	if e.startBone != NoBone {
		if e.startBone < 0 || e.startBone >= e.bones.Len() {
			return NoBone, ErrNoStartBone
		}
		return e.startBone, nil
	}
	host := e.bones.host
	frame := e.frame
	for steps := 0; steps <= host.NumFrames(); steps++ {
		p, ok := host.Parent(frame)
		if !ok {
			return NoBone, ErrNoStartBone
		}
		if id, ok := e.bones.BoneAt(p); ok {
			return id, nil
		}
		frame = p
	}
	return NoBone, ErrChainTooLong
}

// InitBone rebuilds the chain by walking up from the starting bone until a root bone, which is not part
// of the chain, or a bone with no parent. Solver scratch space is resized to the new chain length. On
// error the chain is left empty.
func (e *EndEffector) InitBone() error {
	chain, err := e.walkChain()
	if err != nil {
		e.chain, e.rootFirst = nil, nil
		e.solver.resize(0)
		return err
	}

	e.chain = chain
	e.rootFirst = slices.Clone(chain)
	mutable.Reverse(e.rootFirst)
	e.solver.resize(len(chain))
	e.logger.Debugw("built bone chain", "effector", e.name, "bones", len(chain), "lastBone", e.LastBone())
	return nil
}

func (e *EndEffector) walkChain() ([]int, error) {
	start, err := e.resolveStartBone()
	if err != nil {
		return nil, err
	}
	bone := e.bones.Bone(start)
	if bone.IsRoot {
		return nil, ErrEmptyChain
	}
	bone.child = NoBone

	var chain []int
	for {
		if len(chain) >= e.bones.Len() {
			return nil, errors.Wrapf(ErrChainTooLong, "end effector %q", e.name)
		}
		chain = append(chain, bone.id)
		if err := bone.FindParent(); err != nil {
			return nil, err
		}
		if bone.parent == NoBone || e.bones.Bone(bone.parent).IsRoot {
			return chain, nil
		}
		bone = e.bones.Bone(bone.parent)
	}
}

// InitBoneConfig calibrates the chain from its current pose: stretch directions towards each bone's
// child, stretch rotations, and the maximum reach. InitBone must have run.
func (e *EndEffector) InitBoneConfig() {
	host := e.bones.host
	point := host.WorldPosition(e.frame)
	for _, id := range e.chain {
		bone := e.bones.Bone(id)
		bone.SetStretchDirection(point)
		point = host.WorldPosition(bone.Frame)
	}
	for _, id := range e.chain {
		e.bones.Bone(id).SetStretchRotate()
	}
	e.maxRange = host.WorldPosition(e.frame).Sub(host.WorldPosition(e.bones.Bone(e.LastBone()).Frame)).Norm2()
	e.logger.Debugw("calibrated bone chain", "effector", e.name, "maxRange", e.maxRange)
}

// SetTargetPosition poses the chain towards target. Targets further from the last bone than the
// calibrated reach stretch the chain towards the target; anything else runs the solver. Failing to
// converge is not an error.
func (e *EndEffector) SetTargetPosition(target r3.Vector) Result {
	host := e.bones.host
	last := e.bones.Bone(e.LastBone())
	if target.Sub(host.WorldPosition(last.Frame)).Norm2() > e.maxRange {
		e.setMode(ModeStretching)
		e.stretchTowards(target)
		return Result{Mode: ModeStretching}
	}

	e.setMode(ModeReaching)
	e.target = target
	iterations, converged := e.solver.solve(e)
	return Result{Mode: ModeReaching, Iterations: iterations, Converged: converged}
}

func (e *EndEffector) setMode(mode Mode) {
	if e.hasMode && e.mode == mode {
		return
	}
	e.logger.Debugw("end effector mode changed", "effector", e.name, "mode", mode)
	e.mode = mode
	e.hasMode = true
}

// stretchTowards applies the stretch pose root first, then aims the last bone at target.
func (e *EndEffector) stretchTowards(target r3.Vector) {
	host := e.bones.host
	e.Stretch()
	last := e.bones.Bone(e.LastBone())
	toEffector := host.InverseTransformPoint(last.Frame, host.WorldPosition(e.frame))
	host.AimAxis(last.Frame, toEffector, target.Sub(host.WorldPosition(last.Frame)), last.AimAxis)
	last.LimitRotation()
}

// Stretch applies the calibrated stretch pose to every bone of the chain, root first.
func (e *EndEffector) Stretch() {
	for _, id := range e.rootFirst {
		e.bones.Bone(id).Stretch()
	}
}

// Reset returns every bone of the chain to its calibrated rest rotation.
func (e *EndEffector) Reset() {
	for _, id := range e.rootFirst {
		e.bones.Bone(id).Rest()
	}
}

// CheckEnd reports whether the effector is within tolerance of the target.
func (e *EndEffector) CheckEnd() bool {
	return e.bones.host.WorldPosition(e.frame).Sub(e.target).Norm2() < e.tolerance
}
