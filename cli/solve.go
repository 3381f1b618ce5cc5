package cli

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/yosuke-furukawa/json5/encoding/json5"

	"go.viam.com/boneik/kinematics"
	"go.viam.com/boneik/logging"
	spatial "go.viam.com/boneik/spatialmath"
)

// loadRig reads the rig config, applies any solver overrides to the named effector and builds the rig.
func loadRig(c *cli.Context, logger logging.Logger, effector string) (*kinematics.Rig, error) {
	//nolint:gosec
	data, err := os.ReadFile(c.String(generalFlagConfig))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	cfg := &kinematics.RigConfigJSON{}
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	for i := range cfg.Effectors {
		if cfg.Effectors[i].Name != effector {
			continue
		}
		if solver := c.String(solveFlagSolver); solver != "" {
			cfg.Effectors[i].Solver = solver
		}
		if iterations := c.Int(solveFlagIterations); iterations != 0 {
			cfg.Effectors[i].Iterations = iterations
		}
	}
	return cfg.ParseConfig(logger)
}

// InfoAction prints the frames and end effectors of a rig.
func InfoAction(c *cli.Context) error {
	logger := newLogger(c)
	rig, err := kinematics.ParseRigJSONFile(c.String(generalFlagConfig), logger)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "rig %q", rig.Skeleton.Name())
	fmt.Fprintln(c.App.Writer, poseTable(rig))
	for _, name := range rig.EffectorNames() {
		eff, err := rig.Effector(name)
		if err != nil {
			return err
		}
		printf(c.App.Writer, "end effector %q on frame %q, solver %s",
			name, rig.Skeleton.Frame(eff.Frame()).Name, eff.Solver())
	}
	return nil
}

// SolveAction calibrates the rig in its configured pose, solves one end effector towards the target and
// prints the resulting pose.
func SolveAction(c *cli.Context) error {
	logger := newLogger(c)
	target := c.Float64Slice(solveFlagTarget)
	if len(target) != 3 {
		return errors.Errorf("--%s needs exactly 3 values, got %d", solveFlagTarget, len(target))
	}
	name := c.String(solveFlagEffector)

	rig, err := loadRig(c, logger, name)
	if err != nil {
		return err
	}
	eff, err := rig.Effector(name)
	if err != nil {
		return err
	}
	if err := eff.InitBone(); err != nil {
		return errors.Wrapf(err, "end effector %q", name)
	}
	eff.InitBoneConfig()

	goal := r3.Vector{X: target[0], Y: target[1], Z: target[2]}
	res := eff.SetTargetPosition(goal)
	reached := rig.Skeleton.WorldPosition(eff.Frame())
	logger.Infow("solved", "effector", name, "mode", res.Mode, "iterations", res.Iterations)

	printf(c.App.Writer, "mode: %s, iterations: %d, converged: %t", res.Mode, res.Iterations, res.Converged)
	printf(c.App.Writer, "effector at %s, %.4f from target", formatVector(reached), reached.Distance(goal))
	fmt.Fprintln(c.App.Writer, poseTable(rig))
	return nil
}

// poseTable renders every frame of the rig with its world position and local rotation.
func poseTable(rig *kinematics.Rig) string {
	skel := rig.Skeleton
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Parent", "Bone", "World Position", "Local Rotation"})
	for id := 0; id < skel.NumFrames(); id++ {
		f := skel.Frame(id)
		parent := ""
		if p, ok := skel.Parent(id); ok {
			parent = skel.Frame(p).Name
		}
		bone := ""
		if b, ok := rig.Bones.BoneAt(id); ok {
			bone = "yes"
			if rig.Bones.Bone(b).IsRoot {
				bone = "root"
			}
		}
		deg := spatial.QuatToEulerAngles(f.Rotation).Degrees()
		t.AppendRow([]interface{}{
			fmt.Sprintf("%d", id),
			f.Name,
			parent,
			bone,
			formatVector(skel.WorldPosition(id)),
			fmt.Sprintf("Roll:%.2f, Pitch:%.2f, Yaw:%.2f", deg[0], deg[1], deg[2]),
		})
	}
	return t.Render()
}
