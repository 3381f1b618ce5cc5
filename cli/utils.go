package cli

import (
	"fmt"
	"io"

	"github.com/golang/geo/r3"
	"github.com/urfave/cli/v2"

	"go.viam.com/boneik/logging"
	"go.viam.com/boneik/utils"
)

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(generalFlagDebug) {
		return logging.NewDebugLogger("boneik")
	}
	return logging.NewLogger("boneik")
}

// printf prints a message with no decoration.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck // no need to check error
	fmt.Fprintf(w, format+"\n", a...)
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", zeroSign(v.X), zeroSign(v.Y), zeroSign(v.Z))
}

// zeroSign keeps values that round to zero from printing as -0.000.
func zeroSign(f float64) float64 {
	if utils.Float64AlmostEqual(f, 0, 5e-4) {
		return 0
	}
	return f
}
