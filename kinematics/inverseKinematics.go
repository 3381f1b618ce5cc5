package kinematics

import (
	"math"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	// DefaultCCDIterations is the iteration cap of the CCD solver.
	DefaultCCDIterations = 5
	// DefaultJacobianIterations is the fixed sweep count of the Jacobian solver.
	DefaultJacobianIterations = 100
	// DefaultStepSize is the Jacobian solver's radians per unit of sensitivity.
	DefaultStepSize = 0.1
	// DefaultTolerance is the squared effector-to-target distance counted as converged.
	DefaultTolerance = 1e-4
)

// SolverKind selects the algorithm an EndEffector uses when the target is within reach.
type SolverKind int

const (
	// CCD rotates one bone at a time, root first, and stops early once the effector is close enough.
	CCD SolverKind = iota
	// Jacobian rotates every bone at once along an approximate Jacobian column for a fixed number of
	// sweeps.
	Jacobian
)

func (k SolverKind) String() string {
	switch k {
	case CCD:
		return "ccd"
	case Jacobian:
		return "jacobian"
	default:
		return "unknown"
	}
}

// ParseSolverKind parses "ccd" or "jacobian", ignoring case.
func ParseSolverKind(name string) (SolverKind, error) {
	switch strings.ToLower(name) {
	case "ccd":
		return CCD, nil
	case "jacobian":
		return Jacobian, nil
	default:
		return CCD, NewUnknownSolverError(name)
	}
}

// EffectorConfig describes how an EndEffector solves. Zero Iterations, Tolerance and StepSize use the
// defaults for the solver kind.
type EffectorConfig struct {
	// StartBone is the chain bone nearest the effector. NoBone picks the nearest bone above the
	// effector frame.
	StartBone  int
	Solver     SolverKind
	Iterations int
	Tolerance  float64
	StepSize   float64
}

// NewEffectorConfig returns the default configuration for kind.
func NewEffectorConfig(kind SolverKind) EffectorConfig {
	cfg := EffectorConfig{StartBone: NoBone, Solver: kind, Tolerance: DefaultTolerance}
	switch kind {
	case CCD:
		cfg.Iterations = DefaultCCDIterations
	case Jacobian:
		cfg.Iterations = DefaultJacobianIterations
		cfg.StepSize = DefaultStepSize
	}
	return cfg
}

// Validate returns every problem with the configuration.
func (cfg EffectorConfig) Validate() error {
	var errs error
	if cfg.Solver != CCD && cfg.Solver != Jacobian {
		errs = multierr.Append(errs, NewUnknownSolverError(cfg.Solver.String()))
	}
	if cfg.Iterations < 0 {
		errs = multierr.Append(errs, errors.Errorf("iterations must not be negative, got %d", cfg.Iterations))
	}
	if cfg.Tolerance < 0 || math.IsNaN(cfg.Tolerance) {
		errs = multierr.Append(errs, errors.Errorf("tolerance must not be negative, got %v", cfg.Tolerance))
	}
	if cfg.StepSize < 0 || math.IsNaN(cfg.StepSize) {
		errs = multierr.Append(errs, errors.Errorf("step size must not be negative, got %v", cfg.StepSize))
	}
	if cfg.StartBone < NoBone {
		errs = multierr.Append(errs, errors.Errorf("start bone %d is not a bone handle", cfg.StartBone))
	}
	return errs
}

// Solver is one of the two chain solvers, chosen when the effector is built. The scratch slices are
// sized to the chain by InitBone and reused by every solve.
type Solver struct {
	Kind          SolverKind
	MaxIterations int
	StepSize      float64

	axis   []r3.Vector
	scalar []float64
}

// NewSolver builds the solver described by cfg, filling in defaults.
func NewSolver(cfg EffectorConfig) Solver {
	defaults := NewEffectorConfig(cfg.Solver)
	s := Solver{Kind: cfg.Solver, MaxIterations: cfg.Iterations, StepSize: cfg.StepSize}
	if s.MaxIterations == 0 {
		s.MaxIterations = defaults.Iterations
	}
	if s.StepSize == 0 {
		s.StepSize = defaults.StepSize
	}
	return s
}

// resize fits the scratch space to a chain of n bones.
func (s *Solver) resize(n int) {
	if s.Kind != Jacobian {
		return
	}
	if cap(s.axis) < n {
		s.axis = make([]r3.Vector, n)
		s.scalar = make([]float64, n)
	}
	s.axis = s.axis[:n]
	s.scalar = s.scalar[:n]
}

// solve moves the chain of e towards its target and returns the iterations run and whether the effector
// ended within tolerance.
func (s *Solver) solve(e *EndEffector) (int, bool) {
	switch s.Kind {
	case Jacobian:
		return s.solveJacobian(e)
	default:
		return s.solveCCD(e)
	}
}
