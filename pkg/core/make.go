package core

import (
	"context"

	cfg "github.com/1F47E/go-vidtoch/pkg/config"
)

// MakeVideo converts src into dst in one call: open, save, close.
// A zero ratio uses the default sampling ratio.
func MakeVideo(ctx context.Context, src, dst string, ratio float64, opts Options) (*Result, error) {
	if ratio == 0 {
		ratio = cfg.DefaultSamplingRatio
	}
	p, err := Open(src, opts)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	res, err := p.Save(ctx, dst, SaveOptions{SamplingRatio: ratio, Overwrite: true})
	if err != nil {
		return nil, err
	}
	return res, res.Err
}
