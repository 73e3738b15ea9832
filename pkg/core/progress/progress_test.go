package progress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBarConcurrentAdd(t *testing.T) {
	var buf bytes.Buffer
	b := NewBar(&buf)
	b.Reset(100, "Rendering")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 10; k++ {
				b.Add(1)
			}
		}()
	}
	wg.Wait()
	b.Finish()

	assert.Contains(t, buf.String(), "Rendering")
}

func TestBarText(t *testing.T) {
	var buf bytes.Buffer
	b := NewBar(&buf)
	b.Spinner("Extracting")
	b.Text("done")
	assert.Contains(t, buf.String(), "done\n")
}

func TestNopIsReporter(t *testing.T) {
	var r Reporter = Nop{}
	r.Reset(1, "x")
	r.Add(1)
	r.Finish()
}
