package storage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/go-vidtoch/pkg/errs"
	"github.com/1F47E/go-vidtoch/pkg/logger"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := NewWorkspace(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	return w
}

func TestNewWorkspaceCreatesDisjointDirs(t *testing.T) {
	w := newTestWorkspace(t)
	seen := map[string]bool{}
	for _, d := range dirs {
		p := w.Path(d)
		st, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, st.IsDir())
		assert.False(t, seen[p])
		seen[p] = true
	}
}

func TestWorkspacesDoNotCollide(t *testing.T) {
	parent := t.TempDir()
	a, err := NewWorkspace(parent, logger.Discard())
	require.NoError(t, err)
	b, err := NewWorkspace(parent, logger.Discard())
	require.NoError(t, err)

	assert.NotEqual(t, a.Root(), b.Root())
	assert.NotEqual(t, a.ID, b.ID)
}

func TestClearRemovesStaleFiles(t *testing.T) {
	w := newTestWorkspace(t)
	stale := filepath.Join(w.Path(DirRaw), "old_0.jpg")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))

	require.NoError(t, w.Clear(DirRaw))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(w.Path(DirRaw))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPurgeIsRepeatable(t *testing.T) {
	w := newTestWorkspace(t)
	root := w.Root()
	require.NoError(t, w.Purge())
	require.NoError(t, w.Purge())

	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestFrameNaming(t *testing.T) {
	assert.Equal(t, "clip_0.jpg", FrameName("clip", 0))
	assert.Equal(t, "clip_12.jpg", FrameName("clip", 12))
	assert.Equal(t, "clip_%d.jpg", FramePattern("clip"))
	assert.Equal(t, "100%%_%d.jpg", FramePattern("100%"))
}

func TestSaveAndReadFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)

	p := filepath.Join(t.TempDir(), "f_0.jpg")
	require.NoError(t, SaveFrame(p, img))

	got, err := FrameRead(p)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), got.Bounds())
}

func TestCommitOverwritePolicy(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.avi")
	require.NoError(t, os.WriteFile(dst, []byte("original"), 0o600))

	src := filepath.Join(dir, "new.avi")
	require.NoError(t, os.WriteFile(src, []byte("replacement"), 0o600))

	err := Commit(src, dst, false)
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeWriteUnavailable))
	data, _ := os.ReadFile(dst)
	assert.Equal(t, "original", string(data))

	require.NoError(t, Commit(src, dst, true))
	data, _ = os.ReadFile(dst)
	assert.Equal(t, "replacement", string(data))
}

func TestCheckDestination(t *testing.T) {
	dir := t.TempDir()

	assert.True(t, errs.IsCode(CheckDestination("", true), errs.CodeInvalidConfig))
	assert.True(t, errs.IsCode(CheckDestination(dir, true), errs.CodeWriteUnavailable))
	assert.True(t, errs.IsCode(CheckDestination(filepath.Join(dir, "missing", "out.avi"), true), errs.CodeWriteUnavailable))
	assert.NoError(t, CheckDestination(filepath.Join(dir, "out.avi"), false))
}
