package robot

import (
	"math"
	"testing"
)

func TestSafeGoalPosition(t *testing.T) {
	present := map[MotorName]float64{
		ShoulderPan:  0,
		ShoulderLift: 10,
		ElbowFlex:    -10,
	}

	tests := []struct {
		name   string
		goal   map[MotorName]float64
		maxRel float64
		want   map[MotorName]float64
	}{
		{
			name:   "within bounds untouched",
			goal:   map[MotorName]float64{ShoulderPan: 3, ShoulderLift: 8},
			maxRel: 5,
			want:   map[MotorName]float64{ShoulderPan: 3, ShoulderLift: 8},
		},
		{
			name:   "positive overshoot truncated",
			goal:   map[MotorName]float64{ShoulderPan: 20},
			maxRel: 5,
			want:   map[MotorName]float64{ShoulderPan: 5},
		},
		{
			name:   "negative overshoot truncated preserving sign",
			goal:   map[MotorName]float64{ElbowFlex: -50},
			maxRel: 5,
			want:   map[MotorName]float64{ElbowFlex: -15},
		},
		{
			name:   "zero maxRel disables clamping",
			goal:   map[MotorName]float64{ShoulderPan: 90},
			maxRel: 0,
			want:   map[MotorName]float64{ShoulderPan: 90},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeGoalPosition(tt.goal, present, tt.maxRel)
			for name, want := range tt.want {
				if math.Abs(got[name]-want) > 1e-9 {
					t.Errorf("%s = %v, want %v", name, got[name], want)
				}
			}
		})
	}
}

func TestSafeGoalPosition_UnknownMotorPassedThrough(t *testing.T) {
	goal := map[MotorName]float64{Gripper: 40}
	got := SafeGoalPosition(goal, map[MotorName]float64{}, 5)
	if got[Gripper] != 40 {
		t.Errorf("gripper = %v, want 40 (no present position to clamp against)", got[Gripper])
	}
}
