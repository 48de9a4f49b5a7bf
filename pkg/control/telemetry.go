package control

import (
	"log/slog"

	"github.com/gwillem/lerobot/pkg/tensor"
)

// Telemetry receives per-tick visualization data. Implementations must not
// fail: the interface returns nothing, and the loop treats emission as
// fire-and-forget.
type Telemetry interface {
	// Scalar records a named scalar sample.
	Scalar(name string, value float64)
	// Image records a named image frame.
	Image(name string, img *tensor.Tensor)
}

// NoopTelemetry discards everything.
type NoopTelemetry struct{}

func (NoopTelemetry) Scalar(string, float64)       {}
func (NoopTelemetry) Image(string, *tensor.Tensor) {}

// SlogTelemetry emits telemetry as debug logs. Images are logged by shape
// only.
type SlogTelemetry struct {
	Logger *slog.Logger
}

func (t SlogTelemetry) Scalar(name string, value float64) {
	t.Logger.Debug("telemetry scalar", "name", name, "value", value)
}

func (t SlogTelemetry) Image(name string, img *tensor.Tensor) {
	t.Logger.Debug("telemetry image", "name", name, "shape", img.Shape)
}

// MultiTelemetry fans out to several sinks.
type MultiTelemetry []Telemetry

func (m MultiTelemetry) Scalar(name string, value float64) {
	for _, t := range m {
		t.Scalar(name, value)
	}
}

func (m MultiTelemetry) Image(name string, img *tensor.Tensor) {
	for _, t := range m {
		t.Image(name, img)
	}
}
