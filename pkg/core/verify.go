package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/1F47E/go-vidtoch/pkg/errs"
)

// frame rates closer than this are the same rate
const rateTolerance = 0.01

// Verify opens a saved video and compares it with the source: frame count
// (as extracted by the last successful Save), size and frame rate.
func (p *Pipeline) Verify(path string) error {
	const op = "core.verify"
	dec, err := p.opts.OpenDecoder(path)
	if err != nil {
		return errs.WrapWithCode(err, errs.CodeSourceUnavailable, op, "cannot open output").WithField("path", path)
	}
	defer dec.Close()
	out := dec.Source()

	p.mu.Lock()
	want := p.lastFrames
	p.mu.Unlock()
	if want == 0 {
		want = p.src.FrameCount
	}

	var diffs []string
	if want > 0 && out.FrameCount != want {
		diffs = append(diffs, fmt.Sprintf("frames %d, want %d", out.FrameCount, want))
	}
	if out.Width != p.src.Width || out.Height != p.src.Height {
		diffs = append(diffs, fmt.Sprintf("size %dx%d, want %dx%d", out.Width, out.Height, p.src.Width, p.src.Height))
	}
	if math.Abs(out.FrameRate-p.src.FrameRate) > rateTolerance {
		diffs = append(diffs, fmt.Sprintf("frame rate %.3f, want %.3f", out.FrameRate, p.src.FrameRate))
	}
	if len(diffs) > 0 {
		return errs.Newf(errs.CodeInternal, op, "output does not match source: %s", strings.Join(diffs, ", ")).
			WithField("path", path)
	}
	p.log.Debugf("verified %s: %d frames, %dx%d @ %.3f fps", path, out.FrameCount, out.Width, out.Height, out.FrameRate)
	return nil
}
