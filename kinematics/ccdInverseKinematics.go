package kinematics

// solveCCD runs cyclic coordinate descent. Each iteration aims every bone, nearest the root first, so
// that the effector lies on the line from the bone to the target, then stops once within tolerance.
func (s *Solver) solveCCD(e *EndEffector) (int, bool) {
	host := e.bones.host
	for iteration := 1; iteration <= s.MaxIterations; iteration++ {
		for _, id := range e.rootFirst {
			bone := e.bones.Bone(id)
			toEffector := host.InverseTransformPoint(bone.Frame, host.WorldPosition(e.frame))
			toTarget := e.target.Sub(host.WorldPosition(bone.Frame))
			host.AimAxis(bone.Frame, toEffector, toTarget, bone.AimAxis)
			bone.LimitRotation()
		}
		if e.CheckEnd() {
			return iteration, true
		}
	}
	return s.MaxIterations, false
}
