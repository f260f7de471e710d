package fft

import (
	"runtime"
	"sync"
)

// parallelLines runs fn over line indices [0, lines) on up to workers
// goroutines. Lines are assigned by fixed stride, and each invocation gets a
// goroutine-private scratch buffer of scratchLen complex values, so results
// are independent of scheduling.
func parallelLines(lines, workers, scratchLen int, fn func(line int, scratch []complex128)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > lines {
		workers = lines
	}
	if workers <= 1 {
		scratch := make([]complex128, scratchLen)
		for line := 0; line < lines; line++ {
			fn(line, scratch)
		}
		return
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			scratch := make([]complex128, scratchLen)
			for line := w; line < lines; line += workers {
				fn(line, scratch)
			}
		}(w)
	}
	wg.Wait()
}
