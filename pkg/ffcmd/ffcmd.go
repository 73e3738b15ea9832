// Package ffcmd drives the ffmpeg binary for demuxing, muxing and encoding.
package ffcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	cfg "github.com/1F47E/go-vidtoch/pkg/config"
	"github.com/1F47E/go-vidtoch/pkg/errs"
	"github.com/1F47E/go-vidtoch/pkg/storage"
)

var globalArgs = []string{"-hide_banner", "-loglevel", "error", "-nostdin"}

// stderr kept for error messages
const stderrTail = 2048

// Tool is a located ffmpeg executable.
type Tool struct {
	path string
	log  logrus.FieldLogger
}

func New(path string, log logrus.FieldLogger) *Tool {
	return &Tool{path: path, log: log.WithField("scope", "ffmpeg")}
}

func (t *Tool) Path() string {
	return t.path
}

// SearchDirs lists where Locate looks before PATH: extra, the working
// directory, then the directory of the running executable.
func SearchDirs(extra ...string) []string {
	dirs := append([]string{}, extra...)
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	return dirs
}

// Locate looks for ffmpeg in dirs in order, then on PATH.
func Locate(dirs ...string) (string, error) {
	name := cfg.ToolName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if isExecutable(p) {
			return p, nil
		}
	}
	// PATH entries resolving to the working directory come back as exec.ErrDot,
	// the working directory is only searched when listed in dirs
	if p, err := exec.LookPath(cfg.ToolName); err == nil {
		return p, nil
	}
	return "", errs.Newf(errs.CodeExternalToolMissing, "ffcmd.locate", "%s not found in %s or PATH", name, strings.Join(dirs, ", "))
}

func isExecutable(p string) bool {
	st, err := os.Stat(p)
	if err != nil || !st.Mode().IsRegular() {
		return false
	}
	return runtime.GOOS == "windows" || st.Mode().Perm()&0o111 != 0
}

// Demux copies the audio of src into a new Matroska audio file in dir and
// returns its path. Matroska takes any audio codec, so no re-encode happens.
func (t *Tool) Demux(ctx context.Context, src, dir string) (string, error) {
	const op = "ffcmd.demux"
	if err := isFile(src); err != nil {
		return "", errs.SourceUnavailable(op, err).WithField("path", src)
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return "", errs.WriteUnavailable(op, fmt.Errorf("%s is not a directory", dir))
	}

	out := filepath.Join(dir, cfg.AudioPrefix+strconv.FormatInt(time.Now().UnixNano(), 10)+cfg.AudioExt)
	if err := t.run(ctx, op, demuxStream(src, out), true); err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

// Mux joins the video stream of video with the audio stream of audio into
// dst, copying both.
func (t *Tool) Mux(ctx context.Context, video, audio, dst string, overwrite bool) error {
	const op = "ffcmd.mux"
	if err := isFile(video); err != nil {
		return errs.SourceUnavailable(op, err).WithField("path", video)
	}
	if err := isFile(audio); err != nil {
		return errs.SourceUnavailable(op, err).WithField("path", audio)
	}
	if err := storage.CheckDestination(dst, overwrite); err != nil {
		return err
	}

	return t.run(ctx, op, muxStream(video, audio, dst), overwrite)
}

func demuxStream(src, out string) *ffmpeg.Stream {
	return ffmpeg.Input(src).
		Output(out, ffmpeg.KwArgs{"vn": "", "c:a": "copy"})
}

func muxStream(video, audio, dst string) *ffmpeg.Stream {
	v := ffmpeg.Input(video).Video()
	a := ffmpeg.Input(audio).Audio()
	return ffmpeg.Output([]*ffmpeg.Stream{v, a}, dst, ffmpeg.KwArgs{"c:v": "copy", "c:a": "copy"})
}

// CombineOptions describes an encode of numbered frames into a video.
type CombineOptions struct {
	Dir       string // frames directory
	Base      string // frames are <Base>_<i>.jpg, starting at 0
	FrameRate float64
	Width     int // 0 keeps the frame size
	Height    int
	Codec     string // empty lets ffmpeg pick by extension
	BitRate   int    // bits per second, 0 for the encoder default
	Dst       string
	Overwrite bool
}

func (o CombineOptions) validate() error {
	const op = "ffcmd.combine"
	switch {
	case o.Base == "":
		return errs.InvalidConfig(op, "frame base name is empty")
	case !(o.FrameRate > 0):
		return errs.InvalidConfig(op, "frame rate must be positive, got %v", o.FrameRate)
	case o.Width < 0 || o.Height < 0 || (o.Width == 0) != (o.Height == 0):
		return errs.InvalidConfig(op, "invalid output size %dx%d", o.Width, o.Height)
	case o.BitRate < 0:
		return errs.InvalidConfig(op, "bitrate must not be negative, got %d", o.BitRate)
	}
	if st, err := os.Stat(o.Dir); err != nil || !st.IsDir() {
		return errs.SourceUnavailable(op, fmt.Errorf("%s is not a directory", o.Dir))
	}
	return storage.CheckDestination(o.Dst, o.Overwrite)
}

// Combine encodes the frame sequence in o.Dir into o.Dst.
func (t *Tool) Combine(ctx context.Context, o CombineOptions) error {
	if err := o.validate(); err != nil {
		return err
	}
	return t.run(ctx, "ffcmd.combine", o.stream(), o.Overwrite)
}

func (o CombineOptions) stream() *ffmpeg.Stream {
	pattern := filepath.Join(o.Dir, storage.FramePattern(o.Base))
	in := ffmpeg.KwArgs{
		"framerate":    strconv.FormatFloat(o.FrameRate, 'f', -1, 64),
		"start_number": "0",
	}
	out := ffmpeg.KwArgs{}
	if o.Codec != "" {
		out["c:v"] = o.Codec
	}
	if !strings.EqualFold(o.Codec, "mjpeg") {
		out["pix_fmt"] = "yuv420p"
	}
	if o.BitRate > 0 {
		out["b:v"] = strconv.Itoa(o.BitRate)
	}
	if o.Width > 0 {
		out["s"] = fmt.Sprintf("%dx%d", o.Width, o.Height)
	}
	return ffmpeg.Input(pattern, in).Output(o.Dst, out)
}

// Args renders the argv of s the way run would execute it.
func Args(s *ffmpeg.Stream, overwrite bool) []string {
	g := append([]string{}, globalArgs...)
	if overwrite {
		g = append(g, "-y")
	} else {
		g = append(g, "-n")
	}
	return s.GlobalArgs(g...).GetArgs()
}

func (t *Tool) run(ctx context.Context, op string, s *ffmpeg.Stream, overwrite bool) error {
	args := Args(s, overwrite)
	t.log.Debugf("Running ffmpeg command: %s %s", t.path, strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Stderr = &stderr
	now := time.Now()
	err := cmd.Run()
	if err == nil {
		t.log.Debugf("%s done in %s", op, time.Since(now))
		return nil
	}

	msg := tail(stderr.String())
	var ee *exec.ExitError
	switch {
	case ctx.Err() != nil:
		return errs.WrapWithCode(ctx.Err(), errs.CodeExternalToolFailure, op, "ffmpeg interrupted")
	case errors.As(err, &ee):
		code := ee.ExitCode()
		return errs.Newf(errs.CodeExternalToolFailure, op, "ffmpeg exited with code %d: %s", code, msg).
			WithField("exit_code", code)
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission):
		return errs.WrapWithCode(err, errs.CodeExternalToolMissing, op, "cannot start ffmpeg")
	default:
		return errs.WrapWithCode(err, errs.CodeExternalToolFailure, op, "ffmpeg failed")
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	if s == "" {
		return "no output"
	}
	return s
}

func isFile(p string) error {
	st, err := os.Stat(p)
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", p)
	}
	return nil
}
