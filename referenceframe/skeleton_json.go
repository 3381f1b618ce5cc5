package referenceframe

import (
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/multierr"

	spatial "go.viam.com/boneik/spatialmath"
)

// OrientationConfig is an orientation in degrees about X, Y and Z, applied Z then X then Y.
type OrientationConfig struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// FrameConfig is the JSON form of a Frame. Parent is the id of another frame, or empty for the world.
type FrameConfig struct {
	ID          string            `json:"id"`
	Parent      string            `json:"parent,omitempty"`
	Translation r3.Vector         `json:"translation"`
	Orientation OrientationConfig `json:"orientation"`
}

// SkeletonConfigJSON represents all supported fields in a skeleton JSON file.
type SkeletonConfigJSON struct {
	Name   string        `json:"name"`
	Frames []FrameConfig `json:"frames"`
}

// UnmarshalSkeletonJSON parses jsonData into a Skeleton.
func UnmarshalSkeletonJSON(jsonData []byte) (*Skeleton, error) {
	if len(jsonData) == 0 {
		return nil, ErrNoSkeletonInformation
	}
	cfg := &SkeletonConfigJSON{}
	if err := json5.Unmarshal(jsonData, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return cfg.ParseConfig()
}

// ParseSkeletonJSONFile reads filename and parses the contained JSON data.
func ParseSkeletonJSONFile(filename string) (*Skeleton, error) {
	//nolint:gosec
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	return UnmarshalSkeletonJSON(jsonData)
}

// Validate reports every naming problem in the config at once.
func (cfg *SkeletonConfigJSON) Validate() error {
	var errs error
	seen := map[string]bool{}
	for _, f := range cfg.Frames {
		if f.ID == "" {
			errs = multierr.Append(errs, ErrEmptyFrameName)
			continue
		}
		if seen[f.ID] {
			errs = multierr.Append(errs, NewDuplicateFrameError(f.ID))
		}
		seen[f.ID] = true
	}
	for _, f := range cfg.Frames {
		if f.Parent != "" && !seen[f.Parent] {
			errs = multierr.Append(errs, NewFrameNotFoundError(f.Parent))
		}
	}
	return errs
}

// ParseConfig builds a Skeleton from the config. Frames may be listed in any order.
func (cfg *SkeletonConfigJSON) ParseConfig() (*Skeleton, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ordered, err := sortFrames(cfg.Frames)
	if err != nil {
		return nil, err
	}

	skel := NewSkeleton(cfg.Name)
	for _, f := range ordered {
		parent := NoParent
		if f.Parent != "" {
			parent, _ = skel.FrameID(f.Parent)
		}
		o := f.Orientation
		rot := spatial.NewEulerAnglesDegrees(o.Roll, o.Pitch, o.Yaw).Quaternion()
		if _, err := skel.AddFrame(f.ID, parent, f.Translation, rot); err != nil {
			return nil, err
		}
	}
	return skel, nil
}

// sortFrames orders frames so that every parent precedes its children, keeping the configured order
// otherwise. Names are assumed validated.
func sortFrames(frames []FrameConfig) ([]FrameConfig, error) {
	byID := make(map[string]FrameConfig, len(frames))
	for _, f := range frames {
		byID[f.ID] = f
	}

	placed := make(map[string]bool, len(frames))
	ordered := make([]FrameConfig, 0, len(frames))
	for _, f := range frames {
		// walk up until reaching the world or an already placed frame
		var path []FrameConfig
		onPath := map[string]bool{}
		for curr := f; !placed[curr.ID]; {
			if onPath[curr.ID] {
				return nil, ErrCircularReference
			}
			onPath[curr.ID] = true
			path = append(path, curr)
			if curr.Parent == "" {
				break
			}
			curr = byID[curr.Parent]
		}
		for i := len(path) - 1; i >= 0; i-- {
			placed[path[i].ID] = true
			ordered = append(ordered, path[i])
		}
	}
	return ordered, nil
}
