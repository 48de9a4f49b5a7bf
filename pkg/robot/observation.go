package robot

import (
	"sort"
	"strings"

	"github.com/gwillem/lerobot/pkg/tensor"
)

// Keys used in observations and actions.
const (
	StateKey    = "observation.state"
	ImagePrefix = "observation.images."
	ActionKey   = "action"
)

// Observation holds one tick's sensor readings: named tensors (joint state,
// camera frames) plus string labels (task, robot type) attached for
// recording.
type Observation struct {
	Data   map[string]*tensor.Tensor
	Labels map[string]string
}

// NewObservation returns an empty observation.
func NewObservation() Observation {
	return Observation{
		Data:   make(map[string]*tensor.Tensor),
		Labels: make(map[string]string),
	}
}

// ImageKeys returns the names of all image channels, sorted for stable
// iteration order.
func (o Observation) ImageKeys() []string {
	var keys []string
	for k := range o.Data {
		if strings.Contains(k, "image") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Clone copies the observation; tensor data is deep-copied so the clone can
// be mutated (e.g. normalized for a policy) without affecting the original.
func (o Observation) Clone() Observation {
	out := NewObservation()
	for k, v := range o.Data {
		out.Data[k] = v.Clone()
	}
	for k, v := range o.Labels {
		out.Labels[k] = v
	}
	return out
}

// Action holds named actuator targets. By convention the follower goal
// position vector lives under ActionKey, ordered like AllMotors.
type Action map[string]*tensor.Tensor

// PositionsToVector packs a position map into a vector ordered like
// AllMotors. Missing motors are zero.
func PositionsToVector(positions map[MotorName]float64) *tensor.Tensor {
	motors := AllMotors()
	v := tensor.New(len(motors))
	for i, name := range motors {
		v.Data[i] = float32(positions[name])
	}
	return v
}

// VectorToPositions unpacks a vector ordered like AllMotors into a position
// map. Extra elements are ignored.
func VectorToPositions(v *tensor.Tensor) map[MotorName]float64 {
	motors := AllMotors()
	positions := make(map[MotorName]float64, len(motors))
	for i, name := range motors {
		if i >= len(v.Data) {
			break
		}
		positions[name] = float64(v.Data[i])
	}
	return positions
}
