package mpn

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleNetwork = `
initial: approach
repeat_nodes: false
primitives:
  - name: approach
    type: linear_interpolation
    params:
      start_pose: [0, 0, 0]
      end_pose: [0.5, 0.1, 0.2]
      duration_s: 2.0
      step_s: 0.1
  - name: done
    type: terminal
transitions:
  - source: approach
    target: done
    condition: close_to_point
    params:
      target_point: [0.5, 0.1, 0.2]
      threshold: 0.01
`

func TestLoadConfigAndBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.yaml")
	if err := os.WriteFile(path, []byte(sampleNetwork), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Initial != "approach" {
		t.Errorf("initial = %q, want approach", cfg.Initial)
	}
	if len(cfg.Primitives) != 2 || len(cfg.Transitions) != 1 {
		t.Fatalf("parsed %d primitives, %d transitions", len(cfg.Primitives), len(cfg.Transitions))
	}
	if cfg.Transitions[0].Params.Threshold != 0.01 {
		t.Errorf("threshold = %v, want 0.01", cfg.Transitions[0].Params.Threshold)
	}

	m, err := Build(cfg, Loaders{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.initial != "approach" {
		t.Errorf("machine initial = %q", m.initial)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
