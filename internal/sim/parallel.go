package sim

import (
	"context"
	"runtime"
	"sync"

	"github.com/san-kum/motorkit/internal/plant"
)

// Job is one independent rig run. Build must return a fresh rig; rigs are
// not shared between goroutines.
type Job struct {
	Build  func() (*Rig, error)
	Start  plant.State
	Config Config
}

type Outcome struct {
	Result *Result
	Err    error
}

// RunParallel executes jobs on up to workers goroutines and returns the
// outcomes in job order. workers <= 0 uses GOMAXPROCS.
func RunParallel(ctx context.Context, jobs []Job, workers int) []Outcome {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	out := make([]Outcome, len(jobs))
	idx := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				rig, err := jobs[i].Build()
				if err != nil {
					out[i].Err = err
					continue
				}
				out[i].Result, out[i].Err = rig.Run(ctx, jobs[i].Start, jobs[i].Config)
			}
		}()
	}

	for i := range jobs {
		idx <- i
	}
	close(idx)
	wg.Wait()

	return out
}
