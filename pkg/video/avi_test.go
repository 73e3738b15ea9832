package video

import (
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/go-vidtoch/pkg/errs"
)

func grayFrame(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func writeAVI(t *testing.T, path string, n, w, h int, fps float64) {
	t.Helper()
	aw, err := CreateAVI(path, w, h, fps)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, aw.AddImage(grayFrame(w, h, uint8(i*40))))
	}
	require.NoError(t, aw.Close())
}

func TestAVIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.avi")
	writeAVI(t, path, 3, 10, 10, 30)

	info, err := ReadAVIInfo(path)
	require.NoError(t, err)
	assert.Equal(t, AVIInfo{Width: 10, Height: 10, FrameRate: 30, Frames: 3, FourCC: "MJPG"}, info)

	dec, err := OpenAVI(path)
	require.NoError(t, err)
	defer dec.Close()

	src := dec.Source()
	assert.Equal(t, 3, src.FrameCount)
	assert.True(t, src.IsOk())

	for i := 0; i < 3; i++ {
		img, err := dec.Next()
		require.NoError(t, err)
		g := color.GrayModel.Convert(img.At(5, 5)).(color.Gray)
		assert.InDelta(t, i*40, int(g.Y), 3)
	}
	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, dec.Rewind())
	_, err = dec.Next()
	assert.NoError(t, err)
}

func TestAVIFractionalRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ntsc.avi")
	writeAVI(t, path, 2, 16, 8, 29.97)

	info, err := ReadAVIInfo(path)
	require.NoError(t, err)
	assert.InDelta(t, 29.97, info.FrameRate, 1e-9)
	assert.Equal(t, 16, info.Width)
	assert.Equal(t, 8, info.Height)
}

func TestAVIRescalesMismatchedFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scaled.avi")
	aw, err := CreateAVI(path, 12, 6, 25)
	require.NoError(t, err)
	require.NoError(t, aw.AddImage(grayFrame(24, 12, 200)))
	require.NoError(t, aw.Close())

	dec, err := OpenAVI(path)
	require.NoError(t, err)
	defer dec.Close()
	img, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 6), img.Bounds())
}

func TestAVIEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.avi")
	writeAVI(t, path, 0, 4, 4, 10)

	info, err := ReadAVIInfo(path)
	require.NoError(t, err)
	assert.Zero(t, info.Frames)
}

func TestCreateAVIRejectsBadParams(t *testing.T) {
	dir := t.TempDir()
	for name, tc := range map[string]struct {
		w, h int
		fps  float64
	}{
		"zero width":   {0, 10, 30},
		"zero rate":    {10, 10, 0},
		"negative fps": {10, 10, -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := CreateAVI(filepath.Join(dir, name+".avi"), tc.w, tc.h, tc.fps)
			assert.True(t, errs.IsCode(err, errs.CodeInvalidConfig), "got %v", err)
		})
	}
}

func TestCreateAVIUnwritable(t *testing.T) {
	_, err := CreateAVI(filepath.Join(t.TempDir(), "missing", "out.avi"), 4, 4, 10)
	assert.True(t, errs.IsCode(err, errs.CodeWriteUnavailable), "got %v", err)
}

func TestOpenAVIRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff file"), 0o600))

	_, err := OpenAVI(path)
	assert.True(t, errs.IsCode(err, errs.CodeSourceUnavailable))

	_, err = Open(filepath.Join(t.TempDir(), "nope.avi"))
	assert.True(t, errs.IsCode(err, errs.CodeSourceUnavailable))
}

func TestFirstOf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.avi")
	writeAVI(t, path, 1, 4, 4, 10)

	failing := func(string) (Decoder, error) { return nil, assert.AnError }
	dec, err := FirstOf(failing, OpenAVI)(path)
	require.NoError(t, err)
	dec.Close()

	_, err = FirstOf(failing)(path)
	assert.True(t, errs.IsCode(err, errs.CodeSourceUnavailable))
	assert.ErrorIs(t, err, assert.AnError)
}
