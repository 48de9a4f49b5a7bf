package mpn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gwillem/lerobot/pkg/robot"
)

// Robot is the slice of the manipulator capability the network drives.
type Robot interface {
	CaptureObservation(ctx context.Context) (robot.Observation, error)
	SendAction(ctx context.Context, action robot.Action) (robot.Action, error)
}

// Transition is one resolved guarded edge.
type Transition struct {
	Source    string
	Target    string
	Condition Condition
}

// StopReason says why a traversal ended. Distinct reasons make "finished"
// distinguishable from "dead-ended" in diagnostics.
type StopReason int

const (
	// StopNone is the zero value; never returned by a successful run.
	StopNone StopReason = iota
	// StopTerminal: the network reached its terminal primitive.
	StopTerminal
	// StopNoTransitions: a non-terminal primitive has no outgoing
	// transitions, so the network cannot make progress.
	StopNoTransitions
	// StopRevisit: the network would re-enter an already-visited
	// primitive and repeat_nodes is disabled.
	StopRevisit
)

func (r StopReason) String() string {
	switch r {
	case StopTerminal:
		return "terminal"
	case StopNoTransitions:
		return "no outgoing transitions"
	case StopRevisit:
		return "revisit with repeat disabled"
	default:
		return "none"
	}
}

// Machine is a validated, runnable primitive network.
type Machine struct {
	primitives  map[string]Primitive
	transitions []Transition // configuration order, significant
	initial     string
	repeatNodes bool
	logger      *slog.Logger
}

// NewMachine assembles a network from already-constructed primitives and
// transitions. initial may be empty to select the first primitive.
// Transitions are evaluated in the given order: for any tick, the first
// triggered transition out of the current primitive wins and the rest are
// not evaluated.
func NewMachine(primitives []Primitive, transitions []Transition, initial string, repeatNodes bool, logger *slog.Logger) (*Machine, error) {
	if len(primitives) == 0 {
		return nil, fmt.Errorf("%w: network is empty", ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[string]Primitive, len(primitives))
	for _, p := range primitives {
		if _, dup := byName[p.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate primitive %q", ErrConfiguration, p.Name())
		}
		byName[p.Name()] = p
	}

	if initial == "" {
		initial = primitives[0].Name()
	}
	if _, ok := byName[initial]; !ok {
		return nil, fmt.Errorf("%w: initial primitive %q is not a node", ErrConfiguration, initial)
	}

	for _, t := range transitions {
		src, ok := byName[t.Source]
		if !ok {
			return nil, fmt.Errorf("%w: transition source %q is not a node", ErrConfiguration, t.Source)
		}
		if _, ok := byName[t.Target]; !ok {
			return nil, fmt.Errorf("%w: transition target %q is not a node", ErrConfiguration, t.Target)
		}
		// A terminal node with outgoing transitions is a contradiction;
		// reject it rather than silently never taking them.
		if src.Terminal() {
			return nil, fmt.Errorf("%w: terminal primitive %q has outgoing transitions", ErrConfiguration, t.Source)
		}
	}

	return &Machine{
		primitives:  byName,
		transitions: append([]Transition(nil), transitions...),
		initial:     initial,
		repeatNodes: repeatNodes,
		logger:      logger,
	}, nil
}

// Build resolves a Config into a runnable Machine, failing fast on unknown
// primitive or condition type names.
func Build(cfg *Config, loaders Loaders, logger *slog.Logger) (*Machine, error) {
	primitives := make([]Primitive, 0, len(cfg.Primitives))
	for _, pc := range cfg.Primitives {
		p, err := buildPrimitive(pc, loaders)
		if err != nil {
			return nil, err
		}
		primitives = append(primitives, p)
	}

	transitions := make([]Transition, 0, len(cfg.Transitions))
	for _, tc := range cfg.Transitions {
		cond, err := buildCondition(tc, loaders)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, Transition{
			Source:    tc.Source,
			Target:    tc.Target,
			Condition: cond,
		})
	}

	return NewMachine(primitives, transitions, cfg.Initial, cfg.RepeatNodes, logger)
}

// Run traverses the network until a stop condition: one
// sense-act-transition cycle per iteration, starting at the initial
// primitive.
func (m *Machine) Run(ctx context.Context, r Robot) (StopReason, error) {
	current := m.primitives[m.initial]
	current.Reset()
	visited := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return StopNone, err
		}

		if current.Terminal() {
			m.logger.Info("network reached terminal primitive", "primitive", current.Name())
			return StopTerminal, nil
		}
		visited[current.Name()] = true

		obs, err := r.CaptureObservation(ctx)
		if err != nil {
			return StopNone, fmt.Errorf("capture observation: %w", err)
		}
		action, err := current.SelectAction(ctx, obs)
		if err != nil {
			return StopNone, fmt.Errorf("primitive %q: %w", current.Name(), err)
		}
		if _, err := r.SendAction(ctx, action); err != nil {
			return StopNone, fmt.Errorf("primitive %q: send action: %w", current.Name(), err)
		}

		// Ordered scan: first triggered transition out of the current
		// primitive wins, later ones are not evaluated this tick.
		hasOutgoing := false
		var fired *Transition
		for i := range m.transitions {
			t := &m.transitions[i]
			if t.Source != current.Name() {
				continue
			}
			hasOutgoing = true
			triggered, err := t.Condition.IsTriggered(obs)
			if err != nil {
				return StopNone, fmt.Errorf("transition %s->%s: %w", t.Source, t.Target, err)
			}
			if triggered {
				fired = t
				break
			}
		}

		if !hasOutgoing {
			m.logger.Info("network dead end, stopping", "primitive", current.Name())
			return StopNoTransitions, nil
		}
		if fired == nil {
			continue
		}

		m.logger.Info("network transition", "from", fired.Source, "to", fired.Target)
		next := m.primitives[fired.Target]
		if visited[next.Name()] && !m.repeatNodes {
			m.logger.Info("refusing to re-enter visited primitive", "primitive", next.Name())
			return StopRevisit, nil
		}
		next.Reset()
		current = next
	}
}
