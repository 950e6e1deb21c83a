// Package bootstrap estimates percentile-bootstrap confidence intervals
// for a central-tendency statistic of cortical depth profiles across
// subjects. Subjects are resampled with replacement; the statistic is
// computed per condition and depth level on every resampled set, and the
// confidence bounds are the empirical percentiles across iterations.
package bootstrap

import (
	"fmt"
	"runtime"
	"sort"

	montanaflynn "github.com/montanaflynn/stats"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"corticaldepth/internal/models"
)

// Statistic selects the central-tendency measure computed across subjects.
type Statistic int

const (
	// Mean is the across-subject arithmetic mean.
	Mean Statistic = iota

	// Median is the across-subject median.
	Median
)

// Estimator draws percentile-bootstrap confidence intervals over subjects.
type Estimator struct {
	// Iterations is the number of bootstrap resamples.
	Iterations int

	// Lower and Upper are the percentile bounds in percent, e.g. 2.5 and
	// 97.5 for a 95% interval.
	Lower, Upper float64

	// Stat is the statistic computed across the resampled subject axis.
	Stat Statistic

	// Workers bounds the iteration fan-out. Zero selects runtime.NumCPU.
	// Each worker draws from an independently seeded random stream, so
	// results are reproducible for a fixed seed and worker count.
	Workers int

	// Seed seeds the per-worker random streams.
	Seed uint64
}

// Interval is the bootstrap result: the empirical point estimate on the
// full subject set plus the lower and upper percentile bounds, each of the
// form [condition][depth].
type Interval struct {
	Point [][]float64
	Lower [][]float64
	Upper [][]float64

	// Iterations echoes the number of resamples the bounds are based on.
	Iterations int
}

// Estimate runs the bootstrap on profiles of the form
// [subject][condition][depth].
func (e Estimator) Estimate(profiles models.DepthProfiles) (*Interval, error) {
	numSub, numCon, numDepth, err := profiles.Dims()
	if err != nil {
		return nil, err
	}
	if e.Iterations <= 0 {
		return nil, &models.ParamError{Name: "Iterations", Reason: "must be positive"}
	}
	if e.Lower < 0 || e.Upper > 100 || e.Lower >= e.Upper {
		return nil, &models.ParamError{Name: "Lower/Upper", Reason: "percentile bounds must satisfy 0 <= lower < upper <= 100"}
	}

	// One statistic profile per iteration, [iteration][condition][depth].
	// Each iteration writes only its own slot, so the loop is safe to
	// split across workers.
	samples := make([][][]float64, e.Iterations)

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > e.Iterations {
		workers = e.Iterations
	}

	var group errgroup.Group
	for w := 0; w < workers; w++ {
		begin := w * e.Iterations / workers
		end := (w + 1) * e.Iterations / workers
		rng := rand.New(rand.NewSource(e.Seed + uint64(w)))
		group.Go(func() error {
			drawn := make([]int, numSub)
			column := make([]float64, numSub)
			for it := begin; it < end; it++ {
				for i := range drawn {
					drawn[i] = rng.Intn(numSub)
				}
				sample := make([][]float64, numCon)
				for c := 0; c < numCon; c++ {
					sample[c] = make([]float64, numDepth)
					for d := 0; d < numDepth; d++ {
						for i, s := range drawn {
							column[i] = profiles[s][c][d]
						}
						v, err := central(e.Stat, column)
						if err != nil {
							return err
						}
						sample[c][d] = v
					}
				}
				samples[it] = sample
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("bootstrap iteration: %w", err)
	}

	result := &Interval{
		Point:      make([][]float64, numCon),
		Lower:      make([][]float64, numCon),
		Upper:      make([][]float64, numCon),
		Iterations: e.Iterations,
	}
	column := make([]float64, numSub)
	iterCol := make([]float64, e.Iterations)
	for c := 0; c < numCon; c++ {
		result.Point[c] = make([]float64, numDepth)
		result.Lower[c] = make([]float64, numDepth)
		result.Upper[c] = make([]float64, numDepth)
		for d := 0; d < numDepth; d++ {
			for s := 0; s < numSub; s++ {
				column[s] = profiles[s][c][d]
			}
			v, err := central(e.Stat, column)
			if err != nil {
				return nil, err
			}
			result.Point[c][d] = v

			for it := 0; it < e.Iterations; it++ {
				iterCol[it] = samples[it][c][d]
			}
			sort.Float64s(iterCol)
			result.Lower[c][d] = stat.Quantile(e.Lower/100.0, stat.LinInterp, iterCol, nil)
			result.Upper[c][d] = stat.Quantile(e.Upper/100.0, stat.LinInterp, iterCol, nil)
		}
	}
	return result, nil
}

// central computes the selected statistic over vals.
func central(s Statistic, vals []float64) (float64, error) {
	switch s {
	case Median:
		return montanaflynn.Median(vals)
	default:
		return stat.Mean(vals, nil), nil
	}
}
