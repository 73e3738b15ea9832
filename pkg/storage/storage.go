// All staging files related functions
package storage

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	cfg "github.com/1F47E/go-vidtoch/pkg/config"
	"github.com/1F47E/go-vidtoch/pkg/errs"
)

// Dir names one of the four staging directories.
type Dir string

const (
	DirRaw   Dir = "raw"   // frames decoded from the source
	DirChars Dir = "chars" // rendered character frames
	DirAudio Dir = "audio" // demuxed audio
	DirVideo Dir = "video" // assembled video before commit
)

var dirs = []Dir{DirRaw, DirChars, DirAudio, DirVideo}

// Workspace owns the private staging directories of one pipeline instance.
type Workspace struct {
	ID   string
	root string
	log  logrus.FieldLogger
}

// NewWorkspace creates a fresh, uniquely named staging root under parent
// (os.TempDir when empty) with the four staging directories inside.
func NewWorkspace(parent string, log logrus.FieldLogger) (*Workspace, error) {
	id := uuid.NewString()
	root, err := os.MkdirTemp(parent, cfg.StagingPrefix+id[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("cannot create staging root: %w", err)
	}
	w := &Workspace{ID: id, root: root, log: log.WithField("scope", "storage")}
	for _, d := range dirs {
		if err := os.Mkdir(w.Path(d), 0o700); err != nil {
			_ = os.RemoveAll(root)
			return nil, fmt.Errorf("cannot create staging dir %s: %w", d, err)
		}
	}
	w.log.Debugf("staging root %s", root)
	return w, nil
}

func (w *Workspace) Root() string {
	return w.root
}

func (w *Workspace) Path(d Dir) string {
	return filepath.Join(w.root, string(d))
}

// Clear empties one staging directory so a new run starts without stale files.
func (w *Workspace) Clear(d Dir) error {
	p := w.Path(d)
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("cannot clear %s: %w", d, err)
	}
	if err := os.Mkdir(p, 0o700); err != nil {
		return fmt.Errorf("cannot recreate %s: %w", d, err)
	}
	return nil
}

func (w *Workspace) ClearAll() error {
	var all error
	for _, d := range dirs {
		all = errors.Join(all, w.Clear(d))
	}
	return all
}

// Purge removes the whole staging root.
func (w *Workspace) Purge() error {
	if w.root == "" {
		return nil
	}
	err := os.RemoveAll(w.root)
	if err == nil {
		w.log.Debugf("staging root %s removed", w.root)
		w.root = ""
	}
	return err
}

// FrameName is the deterministic staged name of frame idx: <base>_<idx><ext>.
func FrameName(base string, idx int) string {
	return fmt.Sprintf("%s_%d%s", base, idx, cfg.FrameExt)
}

// FramePattern is the printf-style pattern matching FrameName, with % escaped in base.
func FramePattern(base string) string {
	return strings.ReplaceAll(base, "%", "%%") + "_%d" + cfg.FrameExt
}

func SaveFrame(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create frame file: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: cfg.FrameJPEGQuality}); err != nil {
		f.Close()
		return fmt.Errorf("cannot encode frame %s: %w", path, err)
	}
	return f.Close()
}

func FrameRead(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("cannot decode frame %s: %w", path, err)
	}
	return img, nil
}

// CreateTemp creates a hidden temp file next to dst, so a later rename stays
// on one filesystem.
func CreateTemp(dst string) (*os.File, error) {
	dir := filepath.Dir(dst)
	f, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".partial-*")
	if err != nil {
		return nil, errs.WriteUnavailable("storage.temp", err).WithField("path", dst)
	}
	return f, nil
}

// CheckDestination rejects an existing dst unless overwrite is set and makes
// sure the parent directory exists.
func CheckDestination(dst string, overwrite bool) error {
	if dst == "" {
		return errs.InvalidConfig("storage.destination", "destination path is empty")
	}
	st, err := os.Stat(dst)
	switch {
	case err == nil && st.IsDir():
		return errs.WriteUnavailable("storage.destination", fmt.Errorf("%s is a directory", dst))
	case err == nil && !overwrite:
		return errs.WriteUnavailable("storage.destination", fmt.Errorf("%s already exists", dst)).
			WithField("path", dst)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return errs.WriteUnavailable("storage.destination", err)
	}
	parent, err := os.Stat(filepath.Dir(dst))
	if err != nil || !parent.IsDir() {
		return errs.WriteUnavailable("storage.destination", fmt.Errorf("parent of %s is not a directory", dst))
	}
	return nil
}

// Commit moves a fully written artifact into dst. The source is copied into
// a temp file beside dst first when a plain rename is not possible, so dst
// never holds a partial file.
func Commit(src, dst string, overwrite bool) error {
	if err := CheckDestination(dst, overwrite); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open artifact: %w", err)
	}
	defer in.Close()

	tmp, err := CreateTemp(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errs.WriteUnavailable("storage.commit", err)
	}
	return Finalize(tmp, dst)
}

// Finalize syncs and closes tmp, then renames it to dst.
func Finalize(tmp *os.File, dst string) error {
	err := tmp.Sync()
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return errs.WriteUnavailable("storage.commit", err).WithField("path", dst)
	}
	return nil
}
