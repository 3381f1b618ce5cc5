package kinematics

import (
	"github.com/pkg/errors"
)

var (
	// ErrEmptyChain is returned when no bone lies between the starting bone and the root.
	ErrEmptyChain = errors.New("bone chain has no bones below the root")

	// ErrChainTooLong is returned when walking a chain visits more bones than exist, which means the
	// hierarchy loops.
	ErrChainTooLong = errors.New("bone chain is longer than the number of bones, hierarchy has a loop")

	// ErrNoStartBone is returned when an effector has no bone above it to start a chain from.
	ErrNoStartBone = errors.New("no starting bone found for end effector")
)

// NewFrameOutOfRangeError returns an error indicating that a frame handle does not exist in the host.
func NewFrameOutOfRangeError(frame int) error {
	return errors.Errorf("frame %d is out of range", frame)
}

// NewDuplicateBoneError returns an error indicating that a frame already carries a bone.
func NewDuplicateBoneError(frame string) error {
	return errors.Errorf("frame %q already has a bone", frame)
}

// NewBoneNotFoundError returns an error indicating that no bone is attached to the named frame.
func NewBoneNotFoundError(frame string) error {
	return errors.Errorf("no bone on frame %q", frame)
}

// NewEffectorNotFoundError returns an error indicating that no effector has the given name.
func NewEffectorNotFoundError(name string) error {
	return errors.Errorf("no end effector named %q", name)
}

// NewUnknownSolverError returns an error indicating that a solver name is not recognized.
func NewUnknownSolverError(name string) error {
	return errors.Errorf("unknown solver %q, must be one of ccd or jacobian", name)
}

// NewInvalidLimitError returns an error indicating that a rotation limit is malformed.
func NewInvalidLimitError(frame string, axis int, limit Limit) error {
	return errors.Errorf("bone %q axis %d limit [%v, %v] is invalid", frame, axis, limit.Min, limit.Max)
}
