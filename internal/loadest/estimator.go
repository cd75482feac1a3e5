// Package loadest is the Load Estimator (spec.md §4.4): it maintains a fast
// and a slow rolling window over busy samples and reports their ratios.
package loadest

import "github.com/dwtoledo/bc250-governor/internal/loadwindow"

// Estimator owns the fast (ramp-up) and slow (ramp-down) windows.
type Estimator struct {
	fast *loadwindow.Window
	slow *loadwindow.Window
}

// New builds an Estimator. fastCap is the ramp-up-samples window capacity
// (e.g. 64), slowCap the ramp-down-samples capacity (e.g. 256).
func New(fastCap, slowCap int) *Estimator {
	return &Estimator{
		fast: loadwindow.New(fastCap),
		slow: loadwindow.New(slowCap),
	}
}

// Push appends one busy sample to both windows and returns (fastRatio,
// slowRatio). Ratios are only authoritative once their window is Primed;
// callers that need authority should check FastPrimed/SlowPrimed.
func (e *Estimator) Push(busy bool) (fastRatio, slowRatio float64) {
	fastRatio = e.fast.Push(busy)
	slowRatio = e.slow.Push(busy)
	return
}

func (e *Estimator) FastPrimed() bool { return e.fast.Primed() }
func (e *Estimator) SlowPrimed() bool { return e.slow.Primed() }
