package control

import (
	"context"
	"log/slog"
	"time"
)

// waitRemaining sleeps out the rest of a tick period, or returns early when
// the context is canceled. A tick that already overran its period does not
// sleep at all; the next tick simply starts late.
func waitRemaining(ctx context.Context, period, elapsed time.Duration) {
	remaining := period - elapsed
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// logTickInfo reports the achieved tick rate. Ticks running more than 1 Hz
// below the target rate are warned about; everything else is debug noise.
func logTickInfo(logger *slog.Logger, dt time.Duration, fps, episodeIndex, frameIndex int) {
	if dt <= 0 {
		return
	}
	achieved := 1 / dt.Seconds()
	attrs := []any{
		"dt_ms", float64(dt.Microseconds()) / 1000,
		"hz", achieved,
		"episode", episodeIndex,
		"frame", frameIndex,
	}
	if fps > 0 && achieved < float64(fps)-1 {
		logger.Warn("control loop running below target rate", append(attrs, "target_hz", fps)...)
		return
	}
	logger.Debug("tick", attrs...)
}
