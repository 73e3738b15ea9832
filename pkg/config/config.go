package config

import (
	"runtime"

	"github.com/1F47E/go-vidtoch/pkg/errs"
)

const (
	// Ramp is ordered from the densest glyph (dark pixels) to the lightest.
	DefaultRamp          = "@%#*+=-:. "
	DefaultSamplingRatio = 0.2

	// staged frames
	FrameStem        = "frame" // when the source name has no stem
	FrameExt         = ".jpg"
	FrameJPEGQuality = 100

	// internal assembler output
	FallbackExt    = ".avi"
	FallbackFourCC = "MJPG"

	// workers
	WorkersPerCPU = 2
	MaxWorkers    = 64

	// bits per second
	MinBitRate = 64_000
	MaxBitRate = 100_000_000

	// external tool
	DefaultExt    = ".mp4" // when the destination has no extension
	ToolName      = "ffmpeg"
	AudioExt      = ".mka"
	AudioPrefix   = "audio_"
	StagingPrefix = "vidtoch-"
)

// Render holds the per-run rendering parameters.
type Render struct {
	SamplingRatio float64
	Ramp          string
	KeepSize      bool
}

// Validate checks ranges only, it never touches the filesystem.
func (r Render) Validate() error {
	if !(r.SamplingRatio > 0 && r.SamplingRatio <= 1) {
		return errs.InvalidConfig("config.render", "sampling ratio must be in (0,1], got %v", r.SamplingRatio).
			WithField("sampling_ratio", r.SamplingRatio)
	}
	if n := DistinctRunes(r.Ramp); n < 2 {
		return errs.InvalidConfig("config.render", "character ramp needs at least 2 distinct characters, got %d", n).
			WithField("ramp", r.Ramp)
	}
	return nil
}

// Workers resolves a requested worker count. Zero means the default.
func Workers(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, errs.InvalidConfig("config.workers", "workers must not be negative, got %d", requested)
	case requested > MaxWorkers:
		return 0, errs.InvalidConfig("config.workers", "workers must be at most %d, got %d", MaxWorkers, requested)
	case requested > 0:
		return requested, nil
	}
	n := WorkersPerCPU * runtime.NumCPU()
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return n, nil
}

func DistinctRunes(s string) int {
	seen := make(map[rune]struct{}, len(s))
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
