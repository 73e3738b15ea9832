package job

import (
	"fmt"
	"path/filepath"

	"github.com/1F47E/go-vidtoch/pkg/charart"
)

// job for the render worker
type Render struct {
	Idx    int
	Input  string
	Output string
	Params charart.Params
}

// res from the render worker
type Result struct {
	Idx int
	Err error
}

// New builds one job per staged frame, output under the same filename in outDir.
func New(frames []string, outDir string, p charart.Params) []Render {
	jobs := make([]Render, len(frames))
	for i, in := range frames {
		jobs[i] = Render{
			Idx:    i,
			Input:  in,
			Output: filepath.Join(outDir, filepath.Base(in)),
			Params: p,
		}
	}
	return jobs
}

func (j Render) Print() string {
	return fmt.Sprintf("Job: Idx: %d, Input: %s, Ratio: %v, Ramp len: %d", j.Idx, filepath.Base(j.Input), j.Params.Ratio, len(j.Params.Ramp))
}

// Failed returns the indices of failed results in ascending order.
func Failed(results []Result) []int {
	var idx []int
	for _, r := range results {
		if r.Err != nil {
			idx = append(idx, r.Idx)
		}
	}
	return idx
}
