package referenceframe

import (
	"github.com/pkg/errors"
)

var (
	// ErrCircularReference is returned when a chain of parents loops back on itself.
	ErrCircularReference = errors.New("infinite loop finding path from end effector to world")

	// ErrEmptyFrameName is returned when a frame is configured without an id.
	ErrEmptyFrameName = errors.New("frame id cannot be empty")

	// ErrNoSkeletonInformation is used when a skeleton file has no content.
	ErrNoSkeletonInformation = errors.New("no skeleton information")
)

// NewFrameNotFoundError returns an error indicating that a frame with the given name could not be found.
func NewFrameNotFoundError(name string) error {
	return errors.Errorf("frame with name %q not in skeleton", name)
}

// NewDuplicateFrameError returns an error indicating that a frame name is already taken.
func NewDuplicateFrameError(name string) error {
	return errors.Errorf("cannot add frame %q, a frame with that name already exists", name)
}

// NewParentFrameMissingError returns an error indicating that a parent handle does not exist.
func NewParentFrameMissingError(name string, parent int) error {
	return errors.Errorf("parent %d of frame %q is not in skeleton", parent, name)
}
