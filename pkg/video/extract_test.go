package video

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/go-vidtoch/pkg/errs"
	"github.com/1F47E/go-vidtoch/pkg/logger"
	"github.com/1F47E/go-vidtoch/pkg/meta"
	"github.com/1F47E/go-vidtoch/pkg/storage"
)

type brokenDecoder struct {
	after int
	n     int
}

func (b *brokenDecoder) Source() meta.Source {
	return meta.Source{Path: "broken.mp4", Width: 4, Height: 4, FrameRate: 10}
}

func (b *brokenDecoder) Next() (image.Image, error) {
	if b.n == b.after {
		return nil, errors.New("corrupt packet")
	}
	b.n++
	return grayFrame(4, 4, 0), nil
}

func (b *brokenDecoder) Rewind() error { b.n = 0; return nil }
func (b *brokenDecoder) Close() error  { return nil }

func TestExtractWritesOrderedFrames(t *testing.T) {
	src := filepath.Join(t.TempDir(), "clip.avi")
	writeAVI(t, src, 3, 10, 10, 30)
	dec, err := OpenAVI(src)
	require.NoError(t, err)
	defer dec.Close()

	dir := t.TempDir()
	frames, err := NewExtractor(nil, logger.Discard()).Extract(context.Background(), dec, dir, "clip")
	require.NoError(t, err)

	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, filepath.Join(dir, storage.FrameName("clip", i)), f)
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}

	// rewound, ready for a second run
	_, err = dec.Next()
	assert.NoError(t, err)
}

func TestExtractTwiceGivesSameFrames(t *testing.T) {
	src := filepath.Join(t.TempDir(), "clip.avi")
	writeAVI(t, src, 2, 8, 8, 24)
	dec, err := OpenAVI(src)
	require.NoError(t, err)
	defer dec.Close()

	ex := NewExtractor(nil, logger.Discard())
	first, err := ex.Extract(context.Background(), dec, t.TempDir(), "clip")
	require.NoError(t, err)
	second, err := ex.Extract(context.Background(), dec, t.TempDir(), "clip")
	require.NoError(t, err)
	assert.Len(t, second, len(first))
}

func TestExtractDecodeFailure(t *testing.T) {
	frames, err := NewExtractor(nil, logger.Discard()).
		Extract(context.Background(), &brokenDecoder{after: 2}, t.TempDir(), "broken")
	assert.Len(t, frames, 2)
	assert.True(t, errs.IsCode(err, errs.CodeSourceUnavailable))
	assert.Equal(t, 2, errs.Fields(err)["frame"])
}

func TestExtractCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExtractor(nil, logger.Discard()).Extract(ctx, &brokenDecoder{after: 5}, t.TempDir(), "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssembleKeepsOrderAndCount(t *testing.T) {
	dir := t.TempDir()
	var frames []string
	for i, size := range []int{10, 20, 10} {
		p := filepath.Join(dir, storage.FrameName("clip", i))
		require.NoError(t, storage.SaveFrame(p, grayFrame(size, size, uint8(i*100))))
		frames = append(frames, p)
	}

	dst := filepath.Join(t.TempDir(), "out.avi")
	err := NewAssembler(nil, logger.Discard()).Assemble(context.Background(), frames, dst, Target{Width: 10, Height: 10, FrameRate: 30})
	require.NoError(t, err)

	info, err := ReadAVIInfo(dst)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Frames)
	assert.Equal(t, 10, info.Width)
	assert.Equal(t, 30.0, info.FrameRate)

	dec, err := OpenAVI(dst)
	require.NoError(t, err)
	defer dec.Close()
	for i := 0; i < 3; i++ {
		img, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())
	}
	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestAssembleRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, storage.FrameName("clip", 0))
	require.NoError(t, storage.SaveFrame(good, grayFrame(4, 4, 0)))

	dst := filepath.Join(t.TempDir(), "out.avi")
	err := NewAssembler(nil, logger.Discard()).
		Assemble(context.Background(), []string{good, filepath.Join(dir, "missing.jpg")}, dst, Target{Width: 4, Height: 4, FrameRate: 10})
	require.Error(t, err)
	assert.Equal(t, 1, errs.Fields(err)["frame"])

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}
