package progress

import (
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives pipeline progress. Add may be called from many goroutines.
type Reporter interface {
	Spinner(desc string)
	Reset(max int, desc string)
	Add(n int)
	Text(msg string)
	Finish()
}

// Bar reports to a terminal through progressbar.
type Bar struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

func NewBar(out io.Writer) *Bar {
	if out == nil {
		out = os.Stderr
	}
	b := &Bar{out: out}
	b.bar = b.create(-1, "")
	return b
}

func (b *Bar) Spinner(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Clear()
	b.bar = b.create(-1, desc)
	_ = b.bar.RenderBlank()
}

func (b *Bar) Reset(max int, desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Clear()
	b.bar = b.create(max, desc)
}

func (b *Bar) Add(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Add(n)
}

func (b *Bar) Text(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Clear()
	_, _ = io.WriteString(b.out, msg+"\n")
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Finish()
	_, _ = io.WriteString(b.out, "\n")
}

func (b *Bar) create(max int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(b.out),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]/[reset]",
			SaucerHead:    "[green]/[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// Nop discards progress.
type Nop struct{}

func (Nop) Spinner(string)    {}
func (Nop) Reset(int, string) {}
func (Nop) Add(int)           {}
func (Nop) Text(string)       {}
func (Nop) Finish()           {}
