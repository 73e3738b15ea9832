package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1F47E/go-vidtoch/pkg/charart"
	cfg "github.com/1F47E/go-vidtoch/pkg/config"
	"github.com/1F47E/go-vidtoch/pkg/errs"
	"github.com/1F47E/go-vidtoch/pkg/ffcmd"
	"github.com/1F47E/go-vidtoch/pkg/job"
	"github.com/1F47E/go-vidtoch/pkg/meta"
	"github.com/1F47E/go-vidtoch/pkg/storage"
	"github.com/1F47E/go-vidtoch/pkg/video"
	"github.com/1F47E/go-vidtoch/pkg/workers"
)

// Result is the outcome of one Save.
type Result struct {
	Destination string
	Frames      int
	Mode        Capability
	Audio       bool
	BitRate     int // 0 when the encoder default was used
	Elapsed     time.Duration
	Err         error
}

func (r *Result) OK() bool {
	return r != nil && r.Err == nil
}

// Save renders the source into dst. Invalid parameters, a closed pipeline
// and a concurrent Save are rejected with an error before any I/O. Every
// other failure is logged and reported on Result.Err; dst then stays
// untouched.
func (p *Pipeline) Save(ctx context.Context, dst string, so SaveOptions) (*Result, error) {
	const op = "core.save"
	if err := (cfg.Render{SamplingRatio: so.SamplingRatio, Ramp: p.opts.Ramp, KeepSize: p.opts.KeepSize}).Validate(); err != nil {
		return nil, err
	}
	if so.BitRate < 0 {
		return nil, errs.InvalidConfig(op, "bitrate must not be negative, got %d", so.BitRate)
	}
	if dst == "" {
		return nil, errs.InvalidConfig(op, "destination path is empty")
	}

	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return nil, errs.InvalidConfig(op, "pipeline is closed")
	case p.saving:
		p.mu.Unlock()
		return nil, errs.InvalidConfig(op, "save in progress")
	}
	p.saving = true
	p.running.Add(1)
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.saving = false
		p.mu.Unlock()
		p.running.Done()
	}()

	now := time.Now()
	mode, tool := p.capability()
	res := &Result{Destination: dst, Mode: mode}
	res.Err = p.run(ctx, dst, so, tool, res)
	res.Elapsed = time.Since(now)

	log := p.log.WithField("mode", mode.String())
	if res.Err != nil {
		log.WithField("code", errs.GetCode(res.Err)).Errorf("save %s failed: %v", dst, res.Err)
		p.progress.Text(fmt.Sprintf("Failed: %v", res.Err))
		return res, nil
	}
	p.mu.Lock()
	p.lastFrames = res.Frames
	p.mu.Unlock()
	log.Infof("saved %s: %d frames, audio: %t, %s in %s",
		dst, res.Frames, res.Audio, meta.FormatBitRate(res.BitRate), res.Elapsed.Round(time.Millisecond))
	p.progress.Text(fmt.Sprintf("Saved %s (%d frames) in %s", dst, res.Frames, res.Elapsed.Round(time.Millisecond)))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, dst string, so SaveOptions, tool *ffcmd.Tool, res *Result) error {
	const op = "core.save"
	if err := storage.CheckDestination(dst, so.Overwrite); err != nil {
		return err
	}
	if err := p.ws.ClearAll(); err != nil {
		return errs.WriteUnavailable(op, err)
	}
	base := p.src.BaseName()

	// extract
	frames, err := video.NewExtractor(p.progress, p.log).Extract(ctx, p.dec, p.ws.Path(storage.DirRaw), base)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return errs.New(errs.CodeSourceUnavailable, op, "source has no decodable frames")
	}
	res.Frames = len(frames)
	p.progress.Text(fmt.Sprintf("Extracted %d frames", len(frames)))

	// demux next to rendering, a failure only costs the audio
	var audio string
	var demux errgroup.Group
	if tool != nil {
		demux.Go(func() error {
			a, err := tool.Demux(ctx, p.src.Path, p.ws.Path(storage.DirAudio))
			if err != nil {
				p.log.Warnf("no audio track: %v", err)
				return nil
			}
			audio = a
			return nil
		})
	}

	// render
	params := charart.Params{Ratio: so.SamplingRatio, Ramp: []rune(p.opts.Ramp), KeepSize: p.opts.KeepSize}
	jobs := job.New(frames, p.ws.Path(storage.DirChars), params)
	p.progress.Reset(len(jobs), "Rendering frames... ")
	results := workers.NewPool(p.workers, p.opts.Renderer, p.progress, p.log).Dispatch(ctx, jobs)
	p.progress.Finish()
	_ = demux.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed := job.Failed(results); len(failed) > 0 {
		first := results[failed[0]].Err
		return errs.WrapWithCode(first, errs.CodeRenderJobFailure, op,
			fmt.Sprintf("%d of %d frames failed to render", len(failed), len(jobs))).
			WithField("frames", failed)
	}
	rendered := make([]string, len(jobs))
	for i, j := range jobs {
		rendered[i] = j.Output
	}

	// assemble
	var final string
	if tool == nil {
		final, err = p.assembleInternal(ctx, dst, rendered)
	} else {
		final, err = p.assembleExternal(ctx, dst, so, tool, audio, res)
	}
	if err != nil {
		return err
	}

	p.progress.Spinner("Saving video... ")
	return storage.Commit(final, dst, so.Overwrite)
}

func (p *Pipeline) assembleInternal(ctx context.Context, dst string, rendered []string) (string, error) {
	if !strings.EqualFold(filepath.Ext(dst), cfg.FallbackExt) {
		p.log.Warnf("internal encoder writes Motion-JPEG AVI, %s will hold AVI data", dst)
	}
	out := filepath.Join(p.ws.Path(storage.DirVideo), p.src.BaseName()+cfg.FallbackExt)
	t := video.Target{Width: p.src.Width, Height: p.src.Height, FrameRate: p.src.FrameRate}
	if err := video.NewAssembler(p.progress, p.log).Assemble(ctx, rendered, out, t); err != nil {
		return "", err
	}
	return out, nil
}

func (p *Pipeline) assembleExternal(ctx context.Context, dst string, so SaveOptions, tool *ffcmd.Tool, audio string, res *Result) (string, error) {
	ext := filepath.Ext(dst)
	if ext == "" {
		ext = cfg.DefaultExt
	}
	res.BitRate = so.BitRate
	if res.BitRate == 0 {
		res.BitRate = p.src.BitRate()
	}

	encoded := filepath.Join(p.ws.Path(storage.DirVideo), "video"+ext)
	p.progress.Spinner("Generating video... ")
	err := tool.Combine(ctx, ffcmd.CombineOptions{
		Dir:       p.ws.Path(storage.DirChars),
		Base:      p.src.BaseName(),
		FrameRate: p.src.FrameRate,
		Width:     p.src.Width,
		Height:    p.src.Height,
		Codec:     p.opts.Codec,
		BitRate:   res.BitRate,
		Dst:       encoded,
		Overwrite: true,
	})
	if err != nil {
		return "", err
	}
	if audio == "" {
		return encoded, nil
	}

	muxed := filepath.Join(p.ws.Path(storage.DirVideo), "muxed"+ext)
	p.progress.Spinner("Adding audio... ")
	if err := tool.Mux(ctx, encoded, audio, muxed, true); err != nil {
		return "", err
	}
	res.Audio = true
	return muxed, nil
}
