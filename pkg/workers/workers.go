package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/1F47E/go-vidtoch/pkg/charart"
	"github.com/1F47E/go-vidtoch/pkg/core/progress"
	"github.com/1F47E/go-vidtoch/pkg/job"
	"github.com/1F47E/go-vidtoch/pkg/storage"
)

// Pool renders frames with at most Limit jobs in flight.
type Pool struct {
	limit    int
	renderer charart.Renderer
	progress progress.Reporter
	log      logrus.FieldLogger
}

func NewPool(limit int, r charart.Renderer, p progress.Reporter, log logrus.FieldLogger) *Pool {
	if limit < 1 {
		limit = 1
	}
	if p == nil {
		p = progress.Nop{}
	}
	return &Pool{
		limit:    limit,
		renderer: r,
		progress: p,
		log:      log.WithField("scope", "workers"),
	}
}

// Dispatch runs every job and returns one result per job, indexed like jobs.
// A failing job never stops the others; Dispatch returns only after all of
// them resolved. Jobs not started before ctx is done fail with ctx.Err().
func (p *Pool) Dispatch(ctx context.Context, jobs []job.Render) []job.Result {
	results := make([]job.Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.limit)
	p.log.Debugf("Dispatching %d jobs on %d workers", len(jobs), p.limit)

	for i, j := range jobs {
		results[i].Idx = j.Idx
		if ctx.Err() != nil {
			results[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			results[i].Err = p.run(ctx, j)
			p.progress.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Pool) run(ctx context.Context, j job.Render) (err error) {
	log := p.log.WithField("frame", j.Idx)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
		if err != nil {
			log.Warnf("frame %d failed: %v", j.Idx, err)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	img, err := storage.FrameRead(j.Input)
	if err != nil {
		return err
	}
	out, err := p.renderer.Render(img, j.Params)
	if err != nil {
		return fmt.Errorf("render %s: %w", j.Input, err)
	}
	if err := storage.SaveFrame(j.Output, out); err != nil {
		return err
	}
	log.Debugf("%s rendered in %s", j.Print(), time.Since(now))
	return nil
}
