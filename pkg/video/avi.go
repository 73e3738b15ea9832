package video

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"os"

	"golang.org/x/image/draw"

	cfg "github.com/1F47E/go-vidtoch/pkg/config"
	"github.com/1F47E/go-vidtoch/pkg/errs"
)

// RIFF layout of the header written by AVIWriter. Offsets are fixed because
// the writer emits exactly one video stream.
const (
	aviHeaderSize = 224 // up to and including the "movi" list type
	aviMoviStart  = 220 // offset of the "movi" fourcc, base of idx1 offsets
	aviHdrlSize   = 192
	aviStrlSize   = 116

	aviFlagHasIndex = 0x10
	aviFlagKeyframe = 0x10
	aviMaxSize      = math.MaxUint32
)

type aviChunk struct {
	offset uint32 // relative to aviMoviStart
	size   uint32
}

// AVIWriter writes a Motion-JPEG AVI, one JPEG per chunk. Nothing but the
// standard library is needed to play it back in common players.
type AVIWriter struct {
	f           *os.File
	width       int
	height      int
	rate, scale uint32
	usPerFrame  uint32
	quality     int

	pos      int64 // write offset
	chunks   []aviChunk
	maxChunk uint32
	closed   bool
}

// CreateAVI creates path and writes a placeholder header. Close completes it.
func CreateAVI(path string, width, height int, fps float64) (*AVIWriter, error) {
	if width <= 0 || height <= 0 {
		return nil, errs.InvalidConfig("video.avi", "invalid frame size %dx%d", width, height)
	}
	rate, scale, err := rational(fps)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.WriteUnavailable("video.avi", err).WithField("path", path)
	}
	w := &AVIWriter{
		f:          f,
		width:      width,
		height:     height,
		rate:       rate,
		scale:      scale,
		usPerFrame: uint32(math.Round(1e6 * float64(scale) / float64(rate))),
		quality:    cfg.FrameJPEGQuality,
	}
	if _, err := f.Write(w.header(0, 0)); err != nil {
		f.Close()
		return nil, errs.WriteUnavailable("video.avi", err).WithField("path", path)
	}
	w.pos = aviHeaderSize
	return w, nil
}

func (w *AVIWriter) Frames() int {
	return len(w.chunks)
}

// AddJPEG appends one already encoded JPEG frame.
func (w *AVIWriter) AddJPEG(data []byte) error {
	if w.closed {
		return fmt.Errorf("avi writer is closed")
	}
	size := uint32(len(data))
	padded := int64(size) + int64(size&1)
	if w.pos+8+padded > aviMaxSize-int64(16*(len(w.chunks)+1))-8 {
		return errs.WriteUnavailable("video.avi", fmt.Errorf("file would exceed 4GiB"))
	}

	var hdr [8]byte
	copy(hdr[:4], "00dc")
	binary.LittleEndian.PutUint32(hdr[4:], size)
	if _, err := w.f.Write(hdr[:]); err != nil {
		return errs.WriteUnavailable("video.avi", err)
	}
	if _, err := w.f.Write(data); err != nil {
		return errs.WriteUnavailable("video.avi", err)
	}
	if size&1 == 1 {
		if _, err := w.f.Write([]byte{0}); err != nil {
			return errs.WriteUnavailable("video.avi", err)
		}
	}

	w.chunks = append(w.chunks, aviChunk{offset: uint32(w.pos - aviMoviStart), size: size})
	w.maxChunk = max(w.maxChunk, size)
	w.pos += 8 + padded
	return nil
}

// AddImage encodes img and appends it, scaling to the stream size first when
// the bounds differ.
func (w *AVIWriter) AddImage(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		dst := image.NewRGBA(image.Rect(0, 0, w.width, w.height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: w.quality}); err != nil {
		return fmt.Errorf("cannot encode frame: %w", err)
	}
	return w.AddJPEG(buf.Bytes())
}

// Close writes the index, patches the header and closes the file.
func (w *AVIWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	idx := make([]byte, 8+16*len(w.chunks))
	copy(idx[:4], "idx1")
	binary.LittleEndian.PutUint32(idx[4:], uint32(16*len(w.chunks)))
	for i, c := range w.chunks {
		e := idx[8+16*i:]
		copy(e[:4], "00dc")
		binary.LittleEndian.PutUint32(e[4:], aviFlagKeyframe)
		binary.LittleEndian.PutUint32(e[8:], c.offset)
		binary.LittleEndian.PutUint32(e[12:], c.size)
	}
	moviSize := uint32(w.pos - aviMoviStart)
	total := w.pos + int64(len(idx))

	err := func() error {
		if _, err := w.f.Write(idx); err != nil {
			return err
		}
		if _, err := w.f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := w.f.Write(w.header(moviSize, uint32(total-8)))
		return err
	}()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errs.WriteUnavailable("video.avi", err).WithField("path", w.f.Name())
	}
	return nil
}

func (w *AVIWriter) header(moviSize, riffSize uint32) []byte {
	h := make([]byte, 0, aviHeaderSize)
	le := binary.LittleEndian
	u32 := func(v uint32) { h = le.AppendUint32(h, v) }
	u16 := func(v uint16) { h = le.AppendUint16(h, v) }
	cc := func(s string) { h = append(h, s[:4]...) }

	frames := uint32(len(w.chunks))
	maxBytes := uint32(0)
	if w.scale > 0 {
		maxBytes = uint32(min(uint64(w.maxChunk)*uint64(w.rate)/uint64(w.scale), math.MaxUint32))
	}

	cc("RIFF")
	u32(riffSize)
	cc("AVI ")

	cc("LIST")
	u32(aviHdrlSize)
	cc("hdrl")

	cc("avih")
	u32(56)
	u32(w.usPerFrame)
	u32(maxBytes)
	u32(0) // padding granularity
	u32(aviFlagHasIndex)
	u32(frames)
	u32(0) // initial frames
	u32(1) // streams
	u32(w.maxChunk)
	u32(uint32(w.width))
	u32(uint32(w.height))
	u32(0)
	u32(0)
	u32(0)
	u32(0)

	cc("LIST")
	u32(aviStrlSize)
	cc("strl")

	cc("strh")
	u32(56)
	cc("vids")
	cc(cfg.FallbackFourCC)
	u32(0) // flags
	u16(0) // priority
	u16(0) // language
	u32(0) // initial frames
	u32(w.scale)
	u32(w.rate)
	u32(0) // start
	u32(frames)
	u32(w.maxChunk)
	u32(math.MaxUint32) // quality: driver default
	u32(0)              // sample size
	u16(0)
	u16(0)
	u16(uint16(w.width))
	u16(uint16(w.height))

	cc("strf")
	u32(40)
	u32(40)
	u32(uint32(w.width))
	u32(uint32(w.height))
	u16(1)  // planes
	u16(24) // bit count
	cc(cfg.FallbackFourCC)
	u32(uint32(w.width * w.height * 3))
	u32(0)
	u32(0)
	u32(0)
	u32(0)

	cc("LIST")
	u32(moviSize)
	cc("movi")
	return h
}

// rational turns a frame rate into rate/scale with millihertz precision.
func rational(fps float64) (rate, scale uint32, err error) {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 || fps > 1000 {
		return 0, 0, errs.InvalidConfig("video.avi", "invalid frame rate %v", fps)
	}
	r := uint32(math.Round(fps * 1000))
	if r == 0 {
		return 0, 0, errs.InvalidConfig("video.avi", "invalid frame rate %v", fps)
	}
	s := uint32(1000)
	g := gcd(r, s)
	return r / g, s / g, nil
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
