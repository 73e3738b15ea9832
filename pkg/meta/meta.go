package meta

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	cfg "github.com/1F47E/go-vidtoch/pkg/config"
)

// Source describes an opened video. It is read once on open and never mutated.
type Source struct {
	Path       string
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int
	Size       int64 // bytes on disk
}

// BaseName is the file name without directory and extension, used to name
// staged frames. Names with nothing before the extension use cfg.FrameStem.
func (s Source) BaseName() string {
	base := filepath.Base(s.Path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return cfg.FrameStem
	}
	return base
}

func (s Source) IsOk() bool {
	return s.Width > 0 && s.Height > 0 && s.FrameRate > 0
}

// Duration derives playback length from frame count and rate.
// Zero when either is unknown.
func (s Source) Duration() time.Duration {
	if s.FrameRate <= 0 || s.FrameCount <= 0 {
		return 0
	}
	return time.Duration(float64(s.FrameCount) / s.FrameRate * float64(time.Second))
}

// BitRate estimates bits per second as size / duration, clamped to sane bounds.
// Zero means "let the encoder decide".
func (s Source) BitRate() int {
	d := s.Duration()
	if d <= 0 || s.Size <= 0 {
		return 0
	}
	return ClampBitRate(float64(s.Size*8) / d.Seconds())
}

func ClampBitRate(bps float64) int {
	if math.IsNaN(bps) || bps <= 0 {
		return 0
	}
	if bps < cfg.MinBitRate {
		return cfg.MinBitRate
	}
	if bps > cfg.MaxBitRate {
		return cfg.MaxBitRate
	}
	return int(bps)
}

func (s Source) Print() string {
	return fmt.Sprintf("Source: %s, %dx%d @ %.3f fps, %d frames, %s, %s",
		s.Path, s.Width, s.Height, s.FrameRate, s.FrameCount, s.Duration().Round(time.Millisecond), FormatBitRate(s.BitRate()))
}

func FormatBitRate(bps int) string {
	switch {
	case bps <= 0:
		return "bitrate unset"
	case bps >= 1_000_000:
		return fmt.Sprintf("%.2f Mb/s", float64(bps)/1_000_000)
	default:
		return fmt.Sprintf("%d kb/s", bps/1000)
	}
}
