package subsystem

import (
	"context"
	"flag"
	"log/slog"
	"math"
	"time"

	"github.com/sketchbooth/sketchbooth/internal/asynctask"
	"github.com/sketchbooth/sketchbooth/internal/coord"
	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
)

// MotionSampler reads one accelerometer/gyro sample. Implementations wrap
// the actual IMU driver; the subsystem only interprets magnitudes.
type MotionSampler interface {
	Sample() (accel [3]float64, gyro [3]float64, err error)
}

// Accelerometer polls an IMU and reports "the booth is being shaken" to the
// event service. Callback dispatch goes through the subsystem's own async
// executor so a slow proxy call never stalls the sampling loop.
type Accelerometer struct {
	// Sampler is injectable for tests; nil selects the null sampler, which
	// never reports motion.
	Sampler MotionSampler
}

func (Accelerometer) Name() string { return "accelerometer" }

func (a Accelerometer) HookUp(ctx context.Context, svc eventsvc.Invoker, logger *slog.Logger,
	flags coord.Flags, args []string) error {

	fs := flag.NewFlagSet("accelerometer", flag.ContinueOnError)
	accelThreshold := fs.Float64("accel-threshold", 2.0, "acceleration magnitude (g) that counts as motion")
	gyroThreshold := fs.Float64("gyro-threshold", 100.0, "rotation magnitude (deg/s) that counts as motion")
	cooldown := fs.Duration("cooldown", 5*time.Second, "min interval between motion reports")
	poll := fs.Duration("poll", 50*time.Millisecond, "sampling interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sampler := a.Sampler
	if sampler == nil {
		sampler = nullSampler{}
	}

	executor := asynctask.New(asynctask.DefaultWorkers)
	defer executor.Shutdown(true)

	logger.Info("accelerometer_started",
		"accel_threshold", *accelThreshold,
		"gyro_threshold", *gyroThreshold,
		"cooldown", cooldown.String(),
	)

	var lastMotion time.Time
	ticker := time.NewTicker(*poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-flags.ExitChan():
			logger.Info("accelerometer_stopping")
			return nil
		case <-ticker.C:
		}

		accel, gyro, err := sampler.Sample()
		if err != nil {
			logger.Warn("sample_failed", "error", err)
			continue
		}

		if magnitude(accel) < *accelThreshold && magnitude(gyro) < *gyroThreshold {
			continue
		}
		if time.Since(lastMotion) < *cooldown {
			continue
		}
		lastMotion = time.Now()

		logger.Info("motion_detected",
			"accel", magnitude(accel),
			"gyro", magnitude(gyro),
		)
		if _, err := executor.Submit(func() (any, error) {
			return nil, svc.Dizzy()
		}); err != nil {
			logger.Warn("dizzy_dispatch_failed", "error", err)
		}
	}
}

func magnitude(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// nullSampler stands in when no IMU is attached.
type nullSampler struct{}

func (nullSampler) Sample() ([3]float64, [3]float64, error) {
	return [3]float64{}, [3]float64{}, nil
}
