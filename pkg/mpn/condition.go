package mpn

import (
	"fmt"
	"math"

	"github.com/gwillem/lerobot/pkg/robot"
)

// Classifier scores an observation, e.g. a learned success detector.
type Classifier interface {
	Score(obs robot.Observation) (float64, error)
}

// ClassifierCondition triggers when a learned classifier's score reaches a
// threshold.
type ClassifierCondition struct {
	classifier Classifier
	threshold  float64
}

// NewClassifierCondition guards a transition with a classifier score >=
// threshold check.
func NewClassifierCondition(classifier Classifier, threshold float64) *ClassifierCondition {
	return &ClassifierCondition{classifier: classifier, threshold: threshold}
}

func (c *ClassifierCondition) IsTriggered(obs robot.Observation) (bool, error) {
	score, err := c.classifier.Score(obs)
	if err != nil {
		return false, fmt.Errorf("classifier condition: %w", err)
	}
	return score >= c.threshold, nil
}

// PointCondition triggers when the observed end-effector position is within
// a Euclidean distance threshold of a target point. A missing or
// short position reads as zeros, matching an uninitialized sensor.
type PointCondition struct {
	target    []float64
	threshold float64
}

// NewPointCondition guards a transition with a distance-to-point check.
func NewPointCondition(target []float64, threshold float64) *PointCondition {
	return &PointCondition{target: target, threshold: threshold}
}

func (c *PointCondition) IsTriggered(obs robot.Observation) (bool, error) {
	var sum float64
	pos := obs.Data[EEPositionKey]
	for i, t := range c.target {
		var p float64
		if pos != nil && i < len(pos.Data) {
			p = float64(pos.Data[i])
		}
		d := p - t
		sum += d * d
	}
	return math.Sqrt(sum) <= c.threshold, nil
}
