package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	cfg "github.com/1F47E/go-vidtoch/pkg/config"
	"github.com/1F47E/go-vidtoch/pkg/core"
	"github.com/1F47E/go-vidtoch/pkg/core/progress"
	"github.com/1F47E/go-vidtoch/pkg/ffcmd"
	"github.com/1F47E/go-vidtoch/pkg/logger"
	"github.com/1F47E/go-vidtoch/pkg/meta"
	"github.com/1F47E/go-vidtoch/pkg/tui"
	"github.com/1F47E/go-vidtoch/pkg/video"
	"github.com/1F47E/go-vidtoch/pkg/video/libav"
)

var app = cli.NewApp()
var log = logger.Log

// AVI first, it needs no cgo round trip for our own outputs
var openDecoder = video.FirstOf(video.OpenAVI, libav.Open)

var toolFlags = []cli.Flag{
	cli.StringFlag{Name: "ffmpeg", Usage: "path to the ffmpeg binary", EnvVar: "VIDTOCH_FFMPEG"},
}

var convertFlags = append([]cli.Flag{
	cli.Float64Flag{Name: "ratio, r", Value: cfg.DefaultSamplingRatio, Usage: "sampling ratio in (0,1]", EnvVar: "VIDTOCH_RATIO"},
	cli.StringFlag{Name: "ramp", Value: cfg.DefaultRamp, Usage: "characters from dense to light", EnvVar: "VIDTOCH_RAMP"},
	cli.IntFlag{Name: "bitrate, b", Usage: "video bitrate in bits/s, 0 derives it from the source", EnvVar: "VIDTOCH_BITRATE"},
	cli.IntFlag{Name: "workers, w", Usage: "render workers, 0 for 2 per CPU", EnvVar: "VIDTOCH_WORKERS"},
	cli.BoolFlag{Name: "overwrite, y", Usage: "replace an existing destination", EnvVar: "VIDTOCH_OVERWRITE"},
	cli.BoolTFlag{Name: "keep-size", Usage: "scale rendered frames back to the source size", EnvVar: "VIDTOCH_KEEP_SIZE"},
	cli.StringFlag{Name: "codec", Usage: "video codec for ffmpeg, empty picks by extension", EnvVar: "VIDTOCH_CODEC"},
	cli.BoolFlag{Name: "no-ffmpeg", Usage: "always use the internal Motion-JPEG encoder", EnvVar: "VIDTOCH_NO_FFMPEG"},
	cli.StringFlag{Name: "tmp", Usage: "parent directory for staging files", EnvVar: "VIDTOCH_TMP"},
	cli.BoolFlag{Name: "tui", Usage: "show the interactive progress view", EnvVar: "VIDTOCH_TUI"},
}, toolFlags...)

func init() {
	app.Name = "vidtoch"
	app.Usage = "A video to character video converter"
	app.UsageText = "vidtoch [command] [arguments]"
	app.HideVersion = true
	app.Commands = []cli.Command{
		{
			Name:      "convert",
			Aliases:   []string{"c"},
			Usage:     "Convert a video into a character video",
			ArgsUsage: "SRC DST",
			Flags:     convertFlags,
			Action:    convert,
		},
		{
			Name:      "test",
			Aliases:   []string{"t"},
			Usage:     "Convert into a temp file and verify frames, size and rate",
			ArgsUsage: "SRC",
			Flags:     convertFlags,
			Action:    verify,
		},
		{
			Name:      "probe",
			Aliases:   []string{"p"},
			Usage:     "Print what the decoder sees in a video",
			ArgsUsage: "SRC",
			Action:    probe,
		},
		{
			Name:      "demux",
			Usage:     "Copy the audio track of a video into DIR",
			ArgsUsage: "SRC DIR",
			Flags:     toolFlags,
			Action:    demux,
		},
		{
			Name:      "mux",
			Usage:     "Join the video of VIDEO with the audio of AUDIO",
			ArgsUsage: "VIDEO AUDIO DST",
			Flags:     append([]cli.Flag{cli.BoolFlag{Name: "overwrite, y", Usage: "replace an existing destination"}}, toolFlags...),
			Action:    mux,
		},
		{
			Name:      "combine",
			Usage:     "Encode DIR/BASE_<n>.jpg frames into a video",
			ArgsUsage: "DIR BASE DST",
			Flags: append([]cli.Flag{
				cli.Float64Flag{Name: "fps", Value: 30, Usage: "frame rate"},
				cli.IntFlag{Name: "width", Usage: "output width, 0 keeps the frame size"},
				cli.IntFlag{Name: "height", Usage: "output height"},
				cli.StringFlag{Name: "codec", Usage: "video codec"},
				cli.IntFlag{Name: "bitrate, b", Usage: "bits/s, 0 for the encoder default"},
				cli.BoolFlag{Name: "overwrite, y", Usage: "replace an existing destination"},
			}, toolFlags...),
			Action: combine,
		},
	}
}

func args(c *cli.Context, names ...string) ([]string, error) {
	if c.NArg() != len(names) {
		return nil, fmt.Errorf("expected arguments: %s", strings.Join(names, " "))
	}
	return c.Args()[:len(names)], nil
}

func options(c *cli.Context, reporter progress.Reporter) core.Options {
	return core.Options{
		Workers:     c.Int("workers"),
		Ramp:        c.String("ramp"),
		KeepSize:    c.BoolT("keep-size"),
		ToolPath:    c.String("ffmpeg"),
		NoTool:      c.Bool("no-ffmpeg"),
		Codec:       c.String("codec"),
		TempDir:     c.String("tmp"),
		Reporter:    reporter,
		Log:         log,
		OpenDecoder: openDecoder,
	}
}

// reporter picks the progress view; stop must be called once the work is done.
func reporter(c *cli.Context, cancel context.CancelFunc) (progress.Reporter, func(msg string)) {
	if !c.Bool("tui") {
		return progress.NewBar(os.Stderr), func(string) {}
	}
	t := tui.New(cancel)
	t.Start()
	return t, func(msg string) {
		if err := t.Stop(msg); err != nil {
			log.Warnf("tui: %v", err)
		}
	}
}

func run(c *cli.Context, src, dst string) (*core.Pipeline, *core.Result, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	rep, stop := reporter(c, cancel)

	p, err := core.Open(src, options(c, rep))
	if err != nil {
		stop(err.Error())
		return nil, nil, err
	}
	res, err := p.Save(ctx, dst, core.SaveOptions{
		SamplingRatio: c.Float64("ratio"),
		BitRate:       c.Int("bitrate"),
		Overwrite:     c.Bool("overwrite"),
	})
	switch {
	case err != nil:
		stop(err.Error())
	case !res.OK():
		stop(res.Err.Error())
	default:
		stop(fmt.Sprintf("Saved %s", dst))
	}
	return p, res, err
}

func convert(c *cli.Context) error {
	a, err := args(c, "SRC", "DST")
	if err != nil {
		return err
	}
	p, res, err := run(c, a[0], a[1])
	if p != nil {
		defer p.Close()
	}
	if err != nil {
		return err
	}
	return res.Err
}

// verify mirrors convert into a temp file, then checks the output
func verify(c *cli.Context) error {
	a, err := args(c, "SRC")
	if err != nil {
		return err
	}
	ext := cfg.FallbackExt
	if !c.Bool("no-ffmpeg") {
		ext = filepath.Ext(a[0])
	}
	tmp, err := os.MkdirTemp(c.String("tmp"), cfg.StagingPrefix+"test-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	dst := filepath.Join(tmp, "out"+ext)

	p, res, err := run(c, a[0], dst)
	if p != nil {
		defer p.Close()
	}
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	if err := p.Verify(dst); err != nil {
		return fmt.Errorf("Error comparing video: %w", err)
	}
	log.Infof("Output matches: %d frames, mode %s, audio %t", res.Frames, res.Mode, res.Audio)
	return nil
}

func probe(c *cli.Context) error {
	a, err := args(c, "SRC")
	if err != nil {
		return err
	}
	dec, err := openDecoder(a[0])
	if err != nil {
		return err
	}
	defer dec.Close()
	src := dec.Source()
	fmt.Println(src.Print())
	fmt.Printf("Heuristic bitrate: %s\n", meta.FormatBitRate(src.BitRate()))
	return nil
}

func tool(c *cli.Context) (*ffcmd.Tool, error) {
	if p := c.String("ffmpeg"); p != "" {
		return ffcmd.New(p, log), nil
	}
	p, err := ffcmd.Locate(ffcmd.SearchDirs()...)
	if err != nil {
		return nil, err
	}
	return ffcmd.New(p, log), nil
}

func demux(c *cli.Context) error {
	a, err := args(c, "SRC", "DIR")
	if err != nil {
		return err
	}
	t, err := tool(c)
	if err != nil {
		return err
	}
	out, err := t.Demux(context.Background(), a[0], a[1])
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func mux(c *cli.Context) error {
	a, err := args(c, "VIDEO", "AUDIO", "DST")
	if err != nil {
		return err
	}
	t, err := tool(c)
	if err != nil {
		return err
	}
	return t.Mux(context.Background(), a[0], a[1], a[2], c.Bool("overwrite"))
}

func combine(c *cli.Context) error {
	a, err := args(c, "DIR", "BASE", "DST")
	if err != nil {
		return err
	}
	t, err := tool(c)
	if err != nil {
		return err
	}
	return t.Combine(context.Background(), ffcmd.CombineOptions{
		Dir:       a[0],
		Base:      a[1],
		FrameRate: c.Float64("fps"),
		Width:     c.Int("width"),
		Height:    c.Int("height"),
		Codec:     c.String("codec"),
		BitRate:   c.Int("bitrate"),
		Dst:       a[2],
		Overwrite: c.Bool("overwrite"),
	})
}

func main() {
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
