package video

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"

	"github.com/1F47E/go-vidtoch/pkg/errs"
	"github.com/1F47E/go-vidtoch/pkg/meta"
)

// AVIInfo is what ReadAVIInfo learns from a Motion-JPEG AVI.
type AVIInfo struct {
	Width     int
	Height    int
	FrameRate float64
	Frames    int // video chunks actually present
	FourCC    string
}

type aviFrame struct {
	offset int64
	size   int64
}

type aviScan struct {
	info   AVIInfo
	frames []aviFrame
}

func ReadAVIInfo(path string) (AVIInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AVIInfo{}, errs.SourceUnavailable("video.avi", err).WithField("path", path)
	}
	defer f.Close()
	s, err := scanAVI(f)
	if err != nil {
		return AVIInfo{}, errs.SourceUnavailable("video.avi", err).WithField("path", path)
	}
	return s.info, nil
}

// scanAVI walks the RIFF tree once, reading the stream headers and recording
// where each video chunk lives. Lists are walked flat since their payload is
// itself a chunk sequence.
func scanAVI(r io.ReadSeeker) (*aviScan, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("cannot read riff header: %w", err)
	}
	if string(hdr[:4]) != "RIFF" || string(hdr[8:]) != "AVI " {
		return nil, errors.New("not an avi file")
	}

	s := &aviScan{}
	var rate, scale uint32
	pos := int64(12)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, err
		}
		id := string(ch[:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:]))
		pos += 8

		switch {
		case id == "LIST" || id == "RIFF":
			var typ [4]byte
			if _, err := io.ReadFull(r, typ[:]); err != nil {
				return nil, fmt.Errorf("truncated list: %w", err)
			}
			pos += 4
			continue
		case id == "avih" && size >= 40 && size <= 4096:
			b := make([]byte, size)
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, fmt.Errorf("truncated avih: %w", err)
			}
			s.info.Width = int(binary.LittleEndian.Uint32(b[32:]))
			s.info.Height = int(binary.LittleEndian.Uint32(b[36:]))
		case id == "strh" && size >= 48 && size <= 4096 && s.info.FourCC == "":
			b := make([]byte, size)
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, fmt.Errorf("truncated strh: %w", err)
			}
			if string(b[:4]) == "vids" {
				s.info.FourCC = string(b[4:8])
				scale = binary.LittleEndian.Uint32(b[20:])
				rate = binary.LittleEndian.Uint32(b[24:])
			}
		case id[2:] == "dc" || id[2:] == "db":
			s.frames = append(s.frames, aviFrame{offset: pos, size: size})
			if _, err := r.Seek(size, io.SeekCurrent); err != nil {
				return nil, err
			}
		default:
			if _, err := r.Seek(size, io.SeekCurrent); err != nil {
				return nil, err
			}
		}
		pos += size
		if size&1 == 1 {
			if _, err := r.Seek(1, io.SeekCurrent); err != nil {
				return nil, err
			}
			pos++
		}
	}

	if s.info.FourCC == "" {
		return nil, errors.New("no video stream")
	}
	if scale > 0 {
		s.info.FrameRate = float64(rate) / float64(scale)
	}
	s.info.Frames = len(s.frames)
	return s, nil
}

// aviDecoder plays back Motion-JPEG AVI files.
type aviDecoder struct {
	f      *os.File
	src    meta.Source
	frames []aviFrame
	pos    int
}

// OpenAVI opens a Motion-JPEG AVI as a Decoder.
func OpenAVI(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.SourceUnavailable("video.avi", err).WithField("path", path)
	}
	st, err := f.Stat()
	if err == nil && st.IsDir() {
		err = fmt.Errorf("%s is a directory", path)
	}
	if err != nil {
		f.Close()
		return nil, errs.SourceUnavailable("video.avi", err).WithField("path", path)
	}
	s, err := scanAVI(f)
	if err == nil && s.info.FourCC != "MJPG" {
		err = fmt.Errorf("unsupported codec %q", s.info.FourCC)
	}
	if err != nil {
		f.Close()
		return nil, errs.SourceUnavailable("video.avi", err).WithField("path", path)
	}
	return &aviDecoder{
		f:      f,
		frames: s.frames,
		src: meta.Source{
			Path:       path,
			Width:      s.info.Width,
			Height:     s.info.Height,
			FrameRate:  s.info.FrameRate,
			FrameCount: s.info.Frames,
			Size:       st.Size(),
		},
	}, nil
}

func (d *aviDecoder) Source() meta.Source {
	return d.src
}

func (d *aviDecoder) Next() (image.Image, error) {
	if d.f == nil {
		return nil, os.ErrClosed
	}
	if d.pos >= len(d.frames) {
		return nil, io.EOF
	}
	fr := d.frames[d.pos]
	b := make([]byte, fr.size)
	if _, err := d.f.ReadAt(b, fr.offset); err != nil {
		return nil, fmt.Errorf("cannot read frame %d: %w", d.pos, err)
	}
	img, err := jpeg.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("cannot decode frame %d: %w", d.pos, err)
	}
	d.pos++
	return img, nil
}

func (d *aviDecoder) Rewind() error {
	d.pos = 0
	return nil
}

func (d *aviDecoder) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
