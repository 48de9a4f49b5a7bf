package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gwillem/lerobot/pkg/control"
	"github.com/gwillem/lerobot/pkg/events"
	"github.com/gwillem/lerobot/pkg/tensor"
)

type RecordCommand struct {
	Task        string   `long:"task" required:"true" description:"Task label stored with every frame"`
	Out         string   `long:"out" default:"dataset" description:"Output directory for episode files"`
	Fps         int      `long:"fps" default:"30" description:"Recording frame rate"`
	Episodes    int      `long:"episodes" default:"1" description:"Number of episodes to record"`
	EpisodeTime float64  `long:"episode-time" default:"60" description:"Episode length in seconds"`
	WarmupTime  float64  `long:"warmup-time" default:"10" description:"Warm-up window in seconds"`
	ResetTime   float64  `long:"reset-time" default:"10" description:"Reset window between episodes in seconds"`
	FootSwitch  []string `long:"foot-switch" description:"Pedal spec event:device[:toggle], repeatable"`
}

// jsonlRecorder appends frames as JSON lines, one file per episode. Tensors
// are stored as shape + flat data.
type jsonlRecorder struct {
	fps  int
	file *os.File
	enc  *json.Encoder
}

func newJSONLRecorder(path string, fps int) (*jsonlRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create episode file: %w", err)
	}
	return &jsonlRecorder{fps: fps, file: f, enc: json.NewEncoder(f)}, nil
}

func (r *jsonlRecorder) FPS() int { return r.fps }

func (r *jsonlRecorder) AddFrame(frame map[string]any) error {
	out := make(map[string]any, len(frame))
	for k, v := range frame {
		if t, ok := v.(*tensor.Tensor); ok {
			out[k] = map[string]any{"shape": t.Shape, "data": t.Data}
			continue
		}
		out[k] = v
	}
	return r.enc.Encode(out)
}

func (r *jsonlRecorder) Close() error { return r.file.Close() }

func (c *RecordCommand) Execute(args []string) error {
	manipulator, _ := loadManipulator()
	defer manipulator.Disconnect()

	logger := slog.Default()

	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	bus := events.NewDefault(logger)
	defer bus.Stop()
	if err := attachFootSwitches(bus, c.FootSwitch, logger); err != nil {
		return err
	}
	// Keyboard control: right arrow ends the current stage, left arrow
	// rerecords the episode, escape stops recording. nil in headless.
	if _, err := events.NewKeyboard(bus, logger); err != nil {
		return err
	}

	ctx := context.Background()

	logger.Info("warm-up", "seconds", c.WarmupTime)
	err := control.Warmup(ctx, manipulator, control.Options{
		ControlTime: seconds(c.WarmupTime),
		FPS:         c.Fps,
		Teleoperate: true,
		Events:      bus,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	for episode := 0; episode < c.Episodes; {
		path := filepath.Join(c.Out, fmt.Sprintf("episode_%03d.jsonl", episode))
		recorder, err := newJSONLRecorder(path, c.Fps)
		if err != nil {
			return err
		}

		logger.Info("recording episode", "episode", episode, "task", c.Task)
		err = control.RecordEpisode(ctx, manipulator, control.Options{
			ControlTime:  seconds(c.EpisodeTime),
			FPS:          c.Fps,
			Task:         c.Task,
			Recorder:     recorder,
			Events:       bus,
			Logger:       logger,
			EpisodeIndex: episode,
		})
		recorder.Close()
		if err != nil {
			return err
		}

		snap := bus.Snapshot()
		if snap[events.RerecordEpisode] {
			logger.Info("rerecording episode", "episode", episode)
			bus.Reset()
			if err := os.Remove(path); err != nil {
				logger.Warn("could not remove discarded episode", "path", path, "err", err)
			}
		} else {
			episode++
		}

		if snap[events.StopRecording] {
			logger.Info("stop recording requested")
			break
		}

		if episode < c.Episodes {
			bus.Reset()
			logger.Info("reset the environment", "seconds", c.ResetTime)
			err = control.ResetEnvironment(ctx, manipulator, control.Options{
				ControlTime: seconds(c.ResetTime),
				FPS:         c.Fps,
				Events:      bus,
				Logger:      logger,
			})
			if err != nil {
				return err
			}
		}
	}

	logger.Info("recording finished", "dir", c.Out)
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
