package kinematics

import (
	"github.com/golang/geo/r3"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// FollowSource supplies the position an effector should follow. It returns false when there is nothing
// to follow.
type FollowSource func() (r3.Vector, bool)

// FrameSource follows the world position of a host frame.
func FrameSource(host Host, frame int) FollowSource {
	return func() (r3.Vector, bool) {
		return host.WorldPosition(frame), true
	}
}

// Follower feeds an EndEffector the position of a FollowSource once per tick. With easing enabled, a
// change in the followed position is approached over a fixed duration instead of in one jump.
type Follower struct {
	effector *EndEffector
	source   FollowSource

	duration float32
	easing   ease.TweenFunc
	tween    *gween.Tween
	from     r3.Vector
	to       r3.Vector
	current  r3.Vector
	started  bool
}

// NewFollower returns a follower for effector. A nil source leaves it idle.
func NewFollower(effector *EndEffector, source FollowSource) *Follower {
	return &Follower{effector: effector, source: source}
}

// WithEasing eases the target towards each new followed position over duration seconds.
func (f *Follower) WithEasing(duration float32, easing ease.TweenFunc) *Follower {
	f.duration = duration
	f.easing = easing
	return f
}

// SetSource replaces what is being followed. A nil source stops following.
func (f *Follower) SetSource(source FollowSource) {
	f.source = source
	f.tween = nil
	f.started = false
}

// Current returns the last position handed to the effector.
func (f *Follower) Current() r3.Vector {
	return f.current
}

// Tick advances by dt seconds and solves towards the followed position. It returns false when there was
// nothing to follow.
func (f *Follower) Tick(dt float32) (Result, bool) {
	if f.source == nil {
		return Result{}, false
	}
	pos, ok := f.source()
	if !ok {
		return Result{}, false
	}

	switch {
	case f.duration <= 0 || f.easing == nil || !f.started:
		f.current, f.to = pos, pos
		f.tween = nil
	default:
		if pos != f.to {
			f.from, f.to = f.current, pos
			f.tween = gween.New(0, 1, f.duration, f.easing)
		}
		if f.tween != nil {
			t, done := f.tween.Update(dt)
			f.current = f.from.Add(f.to.Sub(f.from).Mul(float64(t)))
			if done {
				f.current = f.to
				f.tween = nil
			}
		}
	}
	f.started = true
	return f.effector.SetTargetPosition(f.current), true
}
