package mpn

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/lerobot/pkg/control"
)

// Fatal construction errors: never recoverable by retry.
var (
	ErrUnknownPrimitiveType = errors.New("unknown primitive type")
	ErrUnknownConditionType = errors.New("unknown condition type")
	ErrConfiguration        = errors.New("invalid primitive network configuration")
)

// Primitive and condition type names accepted in configuration. The set is
// closed: dispatch is a compile-time switch, not a runtime registry.
const (
	TypePolicy              = "policy"
	TypeLinearInterpolation = "linear_interpolation"
	TypeTerminal            = "terminal"

	CondClassifier   = "learnable"
	CondCloseToPoint = "close_to_point"
)

// PrimitiveConfig declares one node of the network.
type PrimitiveConfig struct {
	Name   string          `yaml:"name"`
	Type   string          `yaml:"type"`
	Params PrimitiveParams `yaml:"params"`
}

// PrimitiveParams covers the parameters of every primitive type; each type
// reads only its own fields.
type PrimitiveParams struct {
	PolicyPath string    `yaml:"policy_path"`
	StartPose  []float64 `yaml:"start_pose"`
	EndPose    []float64 `yaml:"end_pose"`
	DurationS  float64   `yaml:"duration_s"`
	StepS      float64   `yaml:"step_s"`
}

// TransitionConfig declares one guarded edge. Order matters: transitions
// from the same source are scanned in configuration order and the first
// triggered one wins.
type TransitionConfig struct {
	Source    string          `yaml:"source"`
	Target    string          `yaml:"target"`
	Condition string          `yaml:"condition"`
	Params    ConditionParams `yaml:"params"`
}

// ConditionParams covers the parameters of every condition type.
type ConditionParams struct {
	ClassifierPath string    `yaml:"classifier_path"`
	Threshold      float64   `yaml:"threshold"`
	TargetPoint    []float64 `yaml:"target_point"`
}

// Config is a complete network description, loadable from YAML.
type Config struct {
	Primitives  []PrimitiveConfig  `yaml:"primitives"`
	Transitions []TransitionConfig `yaml:"transitions"`
	// Initial names the start node; empty selects the first primitive.
	Initial string `yaml:"initial"`
	// RepeatNodes permits re-entering an already-visited primitive.
	// Leave false to guarantee termination on cyclic graphs.
	RepeatNodes bool `yaml:"repeat_nodes"`
}

// LoadConfig reads a network description from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse network config: %w", err)
	}
	return &cfg, nil
}

// Loaders resolves configured model paths into live capabilities. A loader
// may be nil when the corresponding type is not used.
type Loaders struct {
	Policy     func(path string) (control.Policy, error)
	Classifier func(path string) (Classifier, error)
}

func buildPrimitive(cfg PrimitiveConfig, loaders Loaders) (Primitive, error) {
	switch cfg.Type {
	case TypePolicy:
		if loaders.Policy == nil {
			return nil, fmt.Errorf("%w: primitive %q needs a policy loader", ErrConfiguration, cfg.Name)
		}
		policy, err := loaders.Policy(cfg.Params.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("load policy for %q: %w", cfg.Name, err)
		}
		return NewPolicyPrimitive(cfg.Name, policy), nil

	case TypeLinearInterpolation:
		return NewLinearInterpolationPrimitive(
			cfg.Name,
			cfg.Params.StartPose,
			cfg.Params.EndPose,
			secondsToDuration(cfg.Params.DurationS),
			secondsToDuration(cfg.Params.StepS),
		), nil

	case TypeTerminal:
		return NewTerminalPrimitive(cfg.Name), nil

	default:
		return nil, fmt.Errorf("%w: %q (primitive %q)", ErrUnknownPrimitiveType, cfg.Type, cfg.Name)
	}
}

func buildCondition(cfg TransitionConfig, loaders Loaders) (Condition, error) {
	switch cfg.Condition {
	case CondClassifier:
		if loaders.Classifier == nil {
			return nil, fmt.Errorf("%w: transition %s->%s needs a classifier loader",
				ErrConfiguration, cfg.Source, cfg.Target)
		}
		classifier, err := loaders.Classifier(cfg.Params.ClassifierPath)
		if err != nil {
			return nil, fmt.Errorf("load classifier for %s->%s: %w", cfg.Source, cfg.Target, err)
		}
		return NewClassifierCondition(classifier, cfg.Params.Threshold), nil

	case CondCloseToPoint:
		return NewPointCondition(cfg.Params.TargetPoint, cfg.Params.Threshold), nil

	default:
		return nil, fmt.Errorf("%w: %q (transition %s->%s)",
			ErrUnknownConditionType, cfg.Condition, cfg.Source, cfg.Target)
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
