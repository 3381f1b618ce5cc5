// Package cli contains the boneik command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	solveFlagEffector   = "effector"
	solveFlagTarget     = "target"
	solveFlagSolver     = "solver"
	solveFlagIterations = "iterations"
)

var app = &cli.App{
	Name:            "boneik",
	Usage:           "pose bone chains towards targets with inverse kinematics",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     generalFlagConfig,
			Aliases:  []string{"c"},
			Usage:    "load the rig from `FILE`",
			Required: true,
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "info",
			Usage:     "print the frames, bones and end effectors of a rig",
			UsageText: "boneik --config <rig.json> info",
			Action:    InfoAction,
		},
		{
			Name:      "solve",
			Usage:     "calibrate a rig and move one end effector towards a target",
			UsageText: "boneik --config <rig.json> solve --effector <name> --target x,y,z [other options]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     solveFlagEffector,
					Usage:    "name of the end effector to move",
					Required: true,
				},
				&cli.Float64SliceFlag{
					Name:     solveFlagTarget,
					Usage:    "world position of the target as x,y,z",
					Required: true,
				},
				&cli.StringFlag{
					Name:  solveFlagSolver,
					Usage: "override the configured solver, ccd or jacobian",
				},
				&cli.IntFlag{
					Name:  solveFlagIterations,
					Usage: "override the configured iteration count",
				},
			},
			Action: SolveAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
