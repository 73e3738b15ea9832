package core

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/1F47E/go-vidtoch/pkg/charart"
	cfg "github.com/1F47E/go-vidtoch/pkg/config"
	"github.com/1F47E/go-vidtoch/pkg/core/progress"
	"github.com/1F47E/go-vidtoch/pkg/errs"
	"github.com/1F47E/go-vidtoch/pkg/ffcmd"
	"github.com/1F47E/go-vidtoch/pkg/logger"
	"github.com/1F47E/go-vidtoch/pkg/meta"
	"github.com/1F47E/go-vidtoch/pkg/storage"
	"github.com/1F47E/go-vidtoch/pkg/video"
)

// Capability is the encoding path of one Save, chosen once when it starts.
type Capability int

const (
	FallbackInternalOnly Capability = iota // Motion-JPEG AVI, no audio
	WithExternalEncoder                    // ffmpeg encode and mux
)

func (c Capability) String() string {
	if c == WithExternalEncoder {
		return "external"
	}
	return "internal"
}

// Options configure one pipeline instance.
type Options struct {
	Workers  int    // render jobs in flight, 0 for the default
	Ramp     string // dense to light, empty for the default
	KeepSize bool   // scale rendered frames back to the source size

	ToolPath string // explicit ffmpeg binary
	ToolDir  string // searched first, then the working dir, the executable dir and PATH
	NoTool   bool   // never use ffmpeg
	Codec    string // video codec for the external encoder

	TempDir string // parent of the staging root

	Renderer charart.Renderer
	Reporter progress.Reporter
	Log      logrus.FieldLogger

	// OpenDecoder opens the source. The default, video.Open, reads
	// Motion-JPEG AVI only; pass libav.Open (or video.FirstOf both) for
	// mp4, mkv and the rest of what libav decodes.
	OpenDecoder video.OpenFunc
}

// DefaultOptions keeps frames at the source size and renders with the
// default ramp.
func DefaultOptions() Options {
	return Options{Ramp: cfg.DefaultRamp, KeepSize: true}
}

// SaveOptions are the per-run parameters of Save.
type SaveOptions struct {
	SamplingRatio float64
	BitRate       int // bits per second, 0 derives it from the source
	Overwrite     bool
}

// Pipeline converts one opened source. It owns the decoder and a private
// staging workspace until Close.
type Pipeline struct {
	opts     Options
	workers  int
	dec      video.Decoder
	src      meta.Source
	ws       *storage.Workspace
	log      logrus.FieldLogger
	progress progress.Reporter

	mu         sync.Mutex
	saving     bool
	closed     bool
	running    sync.WaitGroup
	closeOnce  sync.Once
	lastFrames int
}

// Open validates opts, opens the source and creates the staging workspace.
func Open(path string, opts Options) (*Pipeline, error) {
	const op = "core.open"
	if opts.Ramp == "" {
		opts.Ramp = cfg.DefaultRamp
	}
	if n := cfg.DistinctRunes(opts.Ramp); n < 2 {
		return nil, errs.InvalidConfig(op, "character ramp needs at least 2 distinct characters, got %d", n)
	}
	workers, err := cfg.Workers(opts.Workers)
	if err != nil {
		return nil, err
	}
	if opts.Log == nil {
		opts.Log = logger.Log
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.Nop{}
	}
	if opts.Renderer == nil {
		opts.Renderer = charart.New()
	}
	builtin := opts.OpenDecoder == nil
	if builtin {
		opts.OpenDecoder = video.Open
	}

	dec, err := opts.OpenDecoder(path)
	if err != nil {
		msg := "cannot open source"
		if builtin {
			msg += " with the Motion-JPEG AVI decoder, set Options.OpenDecoder to libav.Open for other containers"
		}
		return nil, errs.WrapWithCode(err, errs.CodeSourceUnavailable, op, msg).WithField("path", path)
	}
	src := dec.Source()
	if !src.IsOk() {
		dec.Close()
		return nil, errs.Newf(errs.CodeSourceUnavailable, op, "source has no usable video stream: %dx%d @ %v fps", src.Width, src.Height, src.FrameRate).
			WithField("path", path)
	}

	ws, err := storage.NewWorkspace(opts.TempDir, opts.Log)
	if err != nil {
		dec.Close()
		return nil, errs.WriteUnavailable(op, err)
	}

	p := &Pipeline{
		opts:     opts,
		workers:  workers,
		dec:      dec,
		src:      src,
		ws:       ws,
		log:      opts.Log.WithFields(logrus.Fields{"scope": "core", "instance": ws.ID[:8]}),
		progress: opts.Reporter,
	}
	p.log.Debug(src.Print())
	return p, nil
}

func (p *Pipeline) Source() meta.Source {
	return p.src
}

// Close releases the decoder and removes the staging workspace. It waits for
// a running Save and may be called any number of times. Cleanup failures are
// logged, never returned.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.running.Wait()

		if err := p.dec.Close(); err != nil {
			p.log.Warnf("cannot close source: %v", err)
		}
		if err := p.ws.Purge(); err != nil {
			p.log.Warnf("cannot remove staging dir %s: %v", p.ws.Root(), err)
		}
		p.log.Debug("pipeline closed")
	})
	return nil
}

// capability decides the encoding path for one Save.
func (p *Pipeline) capability() (Capability, *ffcmd.Tool) {
	if p.opts.NoTool {
		p.log.Info("ffmpeg disabled, using the internal encoder without audio")
		return FallbackInternalOnly, nil
	}
	path, err := p.locate()
	if err != nil {
		p.log.Warnf("%v; using the internal encoder, output will have no audio", err)
		return FallbackInternalOnly, nil
	}
	p.log.Debugf("using ffmpeg at %s", path)
	return WithExternalEncoder, ffcmd.New(path, p.opts.Log)
}

func (p *Pipeline) locate() (string, error) {
	if p.opts.ToolPath != "" {
		st, err := os.Stat(p.opts.ToolPath)
		if err != nil || st.IsDir() {
			return "", errs.Newf(errs.CodeExternalToolMissing, "core.locate", "ffmpeg not found at %s", p.opts.ToolPath)
		}
		return p.opts.ToolPath, nil
	}
	var dirs []string
	if p.opts.ToolDir != "" {
		dirs = append(dirs, p.opts.ToolDir)
	}
	return ffcmd.Locate(ffcmd.SearchDirs(dirs...)...)
}
