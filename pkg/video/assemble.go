package video

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/1F47E/go-vidtoch/pkg/core/progress"
	"github.com/1F47E/go-vidtoch/pkg/errs"
)

// Target is the geometry and timing the assembled video must keep.
type Target struct {
	Width     int
	Height    int
	FrameRate float64
}

// Assembler builds the internal Motion-JPEG video from rendered frames.
type Assembler struct {
	progress progress.Reporter
	log      logrus.FieldLogger
}

func NewAssembler(p progress.Reporter, log logrus.FieldLogger) *Assembler {
	if p == nil {
		p = progress.Nop{}
	}
	return &Assembler{progress: p, log: log.WithField("scope", "assemble")}
}

// Assemble writes frames to dst strictly in slice order. Frames already at the
// target size are copied as is, others are decoded and rescaled. On error the
// partial dst is removed.
func (a *Assembler) Assemble(ctx context.Context, frames []string, dst string, t Target) (err error) {
	now := time.Now()
	w, err := CreateAVI(dst, t.Width, t.Height, t.FrameRate)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	a.progress.Reset(len(frames), "Generating video... ")
	for idx, path := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.add(w, path, t); err != nil {
			return errs.Wrap(err, "video.assemble", fmt.Sprintf("frame %d", idx)).WithField("frame", idx)
		}
		a.progress.Add(1)
	}
	a.progress.Finish()

	a.log.Debugf("assembled %d frames into %s in %s", w.Frames(), dst, time.Since(now))
	return nil
}

func (a *Assembler) add(w *AVIWriter, path string, t Target) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read frame: %w", err)
	}
	c, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("cannot read frame header %s: %w", path, err)
	}
	if c.Width == t.Width && c.Height == t.Height {
		return w.AddJPEG(data)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("cannot decode frame %s: %w", path, err)
	}
	return w.AddImage(img)
}
