package video

import (
	"errors"
	"image"

	"github.com/1F47E/go-vidtoch/pkg/errs"
	"github.com/1F47E/go-vidtoch/pkg/meta"
)

// Decoder reads the frames of one opened video in order.
type Decoder interface {
	Source() meta.Source
	// Next returns the next frame, io.EOF after the last one.
	Next() (image.Image, error)
	// Rewind moves the read cursor back to frame 0.
	Rewind() error
	Close() error
}

// OpenFunc opens a decoder for path.
type OpenFunc func(path string) (Decoder, error)

// Open is the pure Go opener. It understands MJPEG AVI only, which covers
// everything the internal assembler writes.
func Open(path string) (Decoder, error) {
	return OpenAVI(path)
}

// FirstOf tries openers in order and returns the first decoder that opens.
func FirstOf(openers ...OpenFunc) OpenFunc {
	return func(path string) (Decoder, error) {
		var all error
		for _, open := range openers {
			d, err := open(path)
			if err == nil {
				return d, nil
			}
			all = errors.Join(all, err)
		}
		if all == nil {
			all = errors.New("no decoder configured")
		}
		return nil, errs.SourceUnavailable("video.open", all).WithField("path", path)
	}
}
