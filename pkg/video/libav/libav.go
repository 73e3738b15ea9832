// Package libav decodes any container the linked libav build understands,
// through reisen. It needs cgo and the libav development libraries.
package libav

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/zergon321/reisen"

	"github.com/1F47E/go-vidtoch/pkg/errs"
	"github.com/1F47E/go-vidtoch/pkg/meta"
	"github.com/1F47E/go-vidtoch/pkg/video"
)

type decoder struct {
	src    meta.Source
	media  *reisen.Media
	stream *reisen.VideoStream
	closed bool
}

var _ video.Decoder = (*decoder)(nil)

// Open opens the first video stream of path for decoding.
func Open(path string) (video.Decoder, error) {
	st, err := os.Stat(path)
	if err == nil && st.IsDir() {
		err = fmt.Errorf("%s is a directory", path)
	}
	if err != nil {
		return nil, errs.SourceUnavailable("libav.open", err).WithField("path", path)
	}

	media, err := reisen.NewMedia(path)
	if err != nil {
		return nil, errs.SourceUnavailable("libav.open", err).WithField("path", path)
	}
	streams := media.VideoStreams()
	if len(streams) == 0 {
		media.Close()
		return nil, errs.SourceUnavailable("libav.open", errors.New("no video stream")).WithField("path", path)
	}
	if err := media.OpenDecode(); err != nil {
		media.Close()
		return nil, errs.SourceUnavailable("libav.open", err).WithField("path", path)
	}
	vs := streams[0]
	if err := vs.Open(); err != nil {
		media.CloseDecode()
		media.Close()
		return nil, errs.SourceUnavailable("libav.open", err).WithField("path", path)
	}

	num, den := vs.FrameRate()
	fps := 0.0
	if den > 0 {
		fps = float64(num) / float64(den)
	}
	count := int(vs.FrameCount())
	if count <= 0 && fps > 0 {
		if d, err := vs.Duration(); err == nil {
			count = int(d.Seconds()*fps + 0.5)
		}
	}

	return &decoder{
		media:  media,
		stream: vs,
		src: meta.Source{
			Path:       path,
			Width:      vs.Width(),
			Height:     vs.Height(),
			FrameRate:  fps,
			FrameCount: count,
			Size:       st.Size(),
		},
	}, nil
}

func (d *decoder) Source() meta.Source {
	return d.src
}

func (d *decoder) Next() (image.Image, error) {
	if d.closed {
		return nil, os.ErrClosed
	}
	for {
		packet, got, err := d.media.ReadPacket()
		if err != nil {
			return nil, err
		}
		if !got {
			return nil, io.EOF
		}
		if packet.Type() != reisen.StreamVideo {
			continue
		}
		s, ok := d.media.Streams()[packet.StreamIndex()].(*reisen.VideoStream)
		if !ok || s != d.stream {
			continue
		}
		frame, got, err := s.ReadVideoFrame()
		if err != nil {
			return nil, err
		}
		if !got || frame == nil {
			continue
		}
		return frame.Image(), nil
	}
}

func (d *decoder) Rewind() error {
	if d.closed {
		return os.ErrClosed
	}
	return d.stream.Rewind(0)
}

func (d *decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.stream.Close()
	d.media.CloseDecode()
	d.media.Close()
	return err
}
