package robot

// SafeGoalPosition caps a goal position so that no motor moves more than
// maxRelativeTarget away from its present position in a single command. The
// delta is truncated componentwise, preserving direction. A
// maxRelativeTarget <= 0 disables clamping.
func SafeGoalPosition(goal, present map[MotorName]float64, maxRelativeTarget float64) map[MotorName]float64 {
	if maxRelativeTarget <= 0 {
		return goal
	}
	safe := make(map[MotorName]float64, len(goal))
	for name, g := range goal {
		p, ok := present[name]
		if !ok {
			safe[name] = g
			continue
		}
		delta := g - p
		switch {
		case delta > maxRelativeTarget:
			delta = maxRelativeTarget
		case delta < -maxRelativeTarget:
			delta = -maxRelativeTarget
		}
		safe[name] = p + delta
	}
	return safe
}
