package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/gwillem/lerobot/pkg/robot"
)

// Policy is an opaque decision capability: given an observation, produce an
// action. How the action is computed is entirely the policy's business.
type Policy interface {
	// Reset clears internal state (e.g. an action queue) before a fresh
	// run, and after a human intervention.
	Reset()
	// SelectAction computes the next action for the observation. The
	// observation has already been normalized by the prediction pipeline.
	SelectAction(ctx context.Context, obs robot.Observation) (robot.Action, error)
}

// robotTyper is optionally implemented by policies that know which hardware
// they were trained for; the label is attached to recorded observations.
type robotTyper interface {
	RobotType() string
}

func policyRobotType(p Policy) string {
	if rt, ok := p.(robotTyper); ok {
		return rt.RobotType()
	}
	return ""
}

// predictAction runs the policy input pipeline on a copy of the
// observation: image channels are scaled to unit range and converted to
// channel-first layout, every tensor gets a leading batch dimension, and
// the batch dimension is stripped from the returned action.
func predictAction(ctx context.Context, obs robot.Observation, policy Policy) (robot.Action, error) {
	in := obs.Clone()
	for name, t := range in.Data {
		if strings.Contains(name, "image") {
			chw, err := t.Scale(1.0 / 255).HWCToCHW()
			if err != nil {
				return nil, fmt.Errorf("prepare %s: %w", name, err)
			}
			t = chw
		}
		in.Data[name] = t.Unsqueeze()
	}

	action, err := policy.SelectAction(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("select action: %w", err)
	}

	for name, t := range action {
		action[name] = t.Squeeze()
	}
	return action, nil
}
