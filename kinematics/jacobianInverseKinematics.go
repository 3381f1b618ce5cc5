package kinematics

// degenerateEpsilon is the squared sine below which the effector and target directions seen from a bone
// are treated as parallel.
const degenerateEpsilon = 1e-12

// solveJacobian runs a fixed number of Jacobian transpose sweeps. For each bone the rotation axis that
// moves the effector towards the target and the effector's sensitivity along it form one column of the
// Jacobian; every bone is then turned by its sensitivity times the step size.
func (s *Solver) solveJacobian(e *EndEffector) (int, bool) {
	host := e.bones.host
	for iteration := 0; iteration < s.MaxIterations; iteration++ {
		effector := host.WorldPosition(e.frame)
		offset := e.target.Sub(effector)
		for i, id := range e.chain {
			bone := e.bones.Bone(id)
			pivot := host.WorldPosition(bone.Frame)
			v1 := effector.Sub(pivot)
			v2 := e.target.Sub(pivot)
			axis := v1.Cross(v2)
			if axis.Norm2() <= degenerateEpsilon*v1.Norm2()*v2.Norm2() {
				axis = host.TransformDirection(bone.Frame, bone.AimAxis)
			}
			axis = axis.Normalize()
			s.axis[i] = axis
			s.scalar[i] = axis.Cross(v1).Dot(offset)
		}
		for i, id := range e.chain {
			bone := e.bones.Bone(id)
			host.RotateAround(bone.Frame, s.axis[i], s.scalar[i]*s.StepSize)
			bone.LimitRotation()
		}
	}
	return s.MaxIterations, e.CheckEnd()
}
