package kinematics

import (
	"os"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/multierr"

	"go.viam.com/boneik/logging"
	"go.viam.com/boneik/referenceframe"
)

// BoneConfig is the JSON form of a Bone. Limits, when present, are ordered X, Y, Z in degrees.
type BoneConfig struct {
	Frame   string     `json:"frame"`
	Root    bool       `json:"root,omitempty"`
	AimAxis *r3.Vector `json:"aim_axis,omitempty"`
	Limits  []Limit    `json:"limits,omitempty"`
}

// EffectorConfigJSON is the JSON form of an EndEffector. Start names the frame of the chain bone nearest
// the effector and may be empty.
type EffectorConfigJSON struct {
	Name       string  `json:"name"`
	Frame      string  `json:"frame"`
	Start      string  `json:"start,omitempty"`
	Solver     string  `json:"solver,omitempty"`
	Iterations int     `json:"iterations,omitempty"`
	Tolerance  float64 `json:"tolerance,omitempty"`
	Step       float64 `json:"step,omitempty"`
}

// RigConfigJSON represents all supported fields in a rig JSON file: a skeleton plus the bones and end
// effectors attached to it.
type RigConfigJSON struct {
	referenceframe.SkeletonConfigJSON
	Bones     []BoneConfig         `json:"bones"`
	Effectors []EffectorConfigJSON `json:"effectors"`
}

// Rig is a parsed rig file.
type Rig struct {
	Skeleton  *referenceframe.Skeleton
	Bones     *Bones
	effectors map[string]*EndEffector
}

// UnmarshalRigJSON parses jsonData into a Rig.
func UnmarshalRigJSON(jsonData []byte, logger logging.Logger) (*Rig, error) {
	if len(jsonData) == 0 {
		return nil, referenceframe.ErrNoSkeletonInformation
	}
	cfg := &RigConfigJSON{}
	if err := json5.Unmarshal(jsonData, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return cfg.ParseConfig(logger)
}

// ParseRigJSONFile reads filename and parses the contained JSON data.
func ParseRigJSONFile(filename string, logger logging.Logger) (*Rig, error) {
	//nolint:gosec
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	return UnmarshalRigJSON(jsonData, logger)
}

// Validate reports every problem with the bones and effectors at once. Frame names are resolved against
// the skeleton config.
func (cfg *RigConfigJSON) Validate() error {
	frames := lo.SliceToMap(cfg.Frames, func(f referenceframe.FrameConfig) (string, bool) { return f.ID, true })
	boneFrames := lo.Map(cfg.Bones, func(b BoneConfig, _ int) string { return b.Frame })

	errs := cfg.SkeletonConfigJSON.Validate()
	for _, dup := range lo.FindDuplicates(boneFrames) {
		errs = multierr.Append(errs, NewDuplicateBoneError(dup))
	}
	for _, b := range cfg.Bones {
		if !frames[b.Frame] {
			errs = multierr.Append(errs, referenceframe.NewFrameNotFoundError(b.Frame))
		}
		if len(b.Limits) != 0 && len(b.Limits) != 3 {
			errs = multierr.Append(errs, errors.Errorf("bone %q must have 0 or 3 limits, got %d", b.Frame, len(b.Limits)))
			continue
		}
		for i, l := range b.Limits {
			if !l.Valid() {
				errs = multierr.Append(errs, NewInvalidLimitError(b.Frame, i, l))
			}
		}
	}

	names := lo.Map(cfg.Effectors, func(e EffectorConfigJSON, _ int) string { return e.Name })
	for _, dup := range lo.FindDuplicates(names) {
		errs = multierr.Append(errs, errors.Errorf("end effector %q is defined more than once", dup))
	}
	for _, e := range cfg.Effectors {
		if e.Name == "" {
			errs = multierr.Append(errs, errors.New("end effector name cannot be empty"))
		}
		if !frames[e.Frame] {
			errs = multierr.Append(errs, referenceframe.NewFrameNotFoundError(e.Frame))
		}
		if e.Start != "" && !lo.Contains(boneFrames, e.Start) {
			errs = multierr.Append(errs, NewBoneNotFoundError(e.Start))
		}
		if e.Solver != "" {
			if _, err := ParseSolverKind(e.Solver); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

// ParseConfig builds the skeleton, bones and end effectors described by the config. Effectors are not
// calibrated; call Rig.Calibrate.
func (cfg *RigConfigJSON) ParseConfig(logger logging.Logger) (*Rig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	skel, err := cfg.SkeletonConfigJSON.ParseConfig()
	if err != nil {
		return nil, err
	}

	rig := &Rig{Skeleton: skel, Bones: NewBones(skel), effectors: map[string]*EndEffector{}}
	for _, bc := range cfg.Bones {
		frame, _ := skel.FrameID(bc.Frame)
		id, err := rig.Bones.AddBone(frame, bc.Root)
		if err != nil {
			return nil, err
		}
		bone := rig.Bones.Bone(id)
		if bc.AimAxis != nil {
			bone.AimAxis = *bc.AimAxis
		}
		copy(bone.Limits[:], bc.Limits)
	}

	for _, ec := range cfg.Effectors {
		kind := CCD
		if ec.Solver != "" {
			kind, _ = ParseSolverKind(ec.Solver)
		}
		effCfg := EffectorConfig{
			StartBone:  NoBone,
			Solver:     kind,
			Iterations: ec.Iterations,
			Tolerance:  ec.Tolerance,
			StepSize:   ec.Step,
		}
		if ec.Start != "" {
			startFrame, _ := skel.FrameID(ec.Start)
			effCfg.StartBone, _ = rig.Bones.BoneAt(startFrame)
		}
		frame, _ := skel.FrameID(ec.Frame)
		eff, err := NewEndEffector(ec.Name, rig.Bones, frame, effCfg, logger.Sublogger(ec.Name))
		if err != nil {
			return nil, err
		}
		rig.effectors[ec.Name] = eff
	}
	return rig, nil
}

// Calibrate builds and calibrates the chain of every effector from the current pose.
func (r *Rig) Calibrate() error {
	var errs error
	for _, name := range r.EffectorNames() {
		eff := r.effectors[name]
		if err := eff.InitBone(); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "end effector %q", name))
			continue
		}
		eff.InitBoneConfig()
	}
	return errs
}

// Effector returns the end effector with the given name.
func (r *Rig) Effector(name string) (*EndEffector, error) {
	eff, ok := r.effectors[name]
	if !ok {
		return nil, NewEffectorNotFoundError(name)
	}
	return eff, nil
}

// EffectorNames returns the names of all end effectors, sorted.
func (r *Rig) EffectorNames() []string {
	names := lo.Keys(r.effectors)
	sort.Strings(names)
	return names
}
