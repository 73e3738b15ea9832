package video

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/1F47E/go-vidtoch/pkg/core/progress"
	"github.com/1F47E/go-vidtoch/pkg/errs"
	"github.com/1F47E/go-vidtoch/pkg/storage"
)

// Extractor stages every frame of a decoder as a JPEG file.
type Extractor struct {
	progress progress.Reporter
	log      logrus.FieldLogger
}

func NewExtractor(p progress.Reporter, log logrus.FieldLogger) *Extractor {
	if p == nil {
		p = progress.Nop{}
	}
	return &Extractor{progress: p, log: log.WithField("scope", "extract")}
}

// Extract writes frame i to dir/<base>_<i>.jpg and returns the paths in index
// order. The decoder is rewound before and after, so the same source can be
// extracted again by a later run.
func (e *Extractor) Extract(ctx context.Context, dec Decoder, dir, base string) ([]string, error) {
	if err := dec.Rewind(); err != nil {
		return nil, errs.SourceUnavailable("video.extract", err)
	}
	defer func() {
		if err := dec.Rewind(); err != nil {
			e.log.Warnf("rewind after extraction failed: %v", err)
		}
	}()

	now := time.Now()
	src := dec.Source()
	if src.FrameCount > 0 {
		e.progress.Reset(src.FrameCount, "Extracting frames... ")
	} else {
		e.progress.Spinner("Extracting frames... ")
	}

	var frames []string
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		img, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frames, errs.SourceUnavailable("video.extract", err).WithField("frame", idx)
		}
		path := filepath.Join(dir, storage.FrameName(base, idx))
		if err := storage.SaveFrame(path, img); err != nil {
			return frames, errs.WriteUnavailable("video.extract", err).WithField("frame", idx)
		}
		frames = append(frames, path)
		e.progress.Add(1)
	}
	e.progress.Finish()

	e.log.Debugf("extracted %d frames in %s", len(frames), time.Since(now))
	return frames, nil
}
