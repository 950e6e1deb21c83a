// Package permutation tests whether two depth-profile contrasts have
// distinguishable peak positions, using within-subject label
// exchangeability as the null hypothesis. Contrast labels are swapped
// independently per subject; for each relabeling the across-subject mean
// profile of both contrasts is peak-located and the signed peak-position
// difference recorded. The resulting distribution is the null the
// empirical difference is compared against.
package permutation

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"corticaldepth/internal/models"
	"corticaldepth/pkg/peak"
)

// DefaultExactLimit is the largest number of label assignments
// (2^subjects) that is still enumerated exhaustively. Above the limit a
// Monte Carlo sample of assignments is drawn instead.
const DefaultExactLimit = 4096

// Tester runs the peak-position permutation test.
type Tester struct {
	// Iterations is the Monte Carlo sample size used when exact
	// enumeration is not feasible.
	Iterations int

	// ExactLimit caps exact enumeration; zero selects DefaultExactLimit.
	ExactLimit int

	// Locator locates profile peaks on the relabeled mean contrasts.
	Locator peak.Locator

	// Workers bounds the fan-out over label assignments. Zero selects
	// runtime.NumCPU. Each worker draws from an independently seeded
	// random stream.
	Workers int

	// Seed seeds the Monte Carlo assignment draws.
	Seed uint64
}

// Outcome reports the test result for one contrast pair.
type Outcome struct {
	// PeakA and PeakB are the empirical peak estimates of the two
	// contrasts. A contrast without a locatable peak is reported, not
	// treated as an error; PValue is NaN in that case.
	PeakA, PeakB models.PeakEstimate

	// Diff is the empirical signed peak-position difference (A minus B).
	Diff float64

	// PValue is the two-sided permutation p-value with +1 smoothing:
	// (1 + #{|null| >= |Diff|}) / (1 + #null). The null distribution
	// counts only samples in which both relabeled contrasts had a
	// locatable peak; samples without one are excluded from the
	// denominator and show up in PeakRatio instead.
	PValue float64

	// PeakRatio is the percentage of permutation samples in which both
	// relabeled contrasts had a locatable peak. Only those samples enter
	// the null distribution.
	PeakRatio float64

	// Exact records whether all 2^subjects assignments were enumerated.
	Exact bool

	// Samples is the total number of label assignments evaluated.
	Samples int
}

// Contrast computes per-subject difference profiles between two
// conditions, profiles[s][a] minus profiles[s][b], of the form
// [subject][depth].
func Contrast(profiles models.DepthProfiles, a, b int) ([][]float64, error) {
	_, numCon, numDepth, err := profiles.Dims()
	if err != nil {
		return nil, err
	}
	if a < 0 || a >= numCon || b < 0 || b >= numCon {
		return nil, &models.ParamError{Name: "condition", Reason: fmt.Sprintf("index pair (%d, %d) outside %d conditions", a, b, numCon)}
	}
	out := make([][]float64, len(profiles))
	for s, sub := range profiles {
		row := make([]float64, numDepth)
		for d := 0; d < numDepth; d++ {
			row[d] = sub[a][d] - sub[b][d]
		}
		out[s] = row
	}
	return out, nil
}

// Test runs the permutation test on two contrasts of the form
// [subject][depth], defined at the given depth positions.
func (t Tester) Test(positions []float64, contrastA, contrastB [][]float64) (*Outcome, error) {
	numDepth, err := models.CheckMatrix("depth", contrastA, len(positions))
	if err != nil {
		return nil, err
	}
	if _, err := models.CheckMatrix("depth", contrastB, numDepth); err != nil {
		return nil, err
	}
	numSub := len(contrastA)
	if len(contrastB) != numSub {
		return nil, &models.ShapeError{Axis: "subject", Want: numSub, Got: len(contrastB)}
	}

	limit := t.ExactLimit
	if limit <= 0 {
		limit = DefaultExactLimit
	}
	exact := numSub < 63 && (uint64(1)<<uint(numSub)) <= uint64(limit)
	samples := t.Iterations
	if exact {
		samples = 1 << uint(numSub)
	} else if t.Iterations <= 0 {
		return nil, &models.ParamError{Name: "Iterations", Reason: "must be positive for Monte Carlo sampling"}
	}

	// Empirical statistic on the identity labeling.
	peakA, err := t.Locator.Locate(positions, meanProfile(contrastA, 0, contrastB))
	if err != nil {
		return nil, err
	}
	peakB, err := t.Locator.Locate(positions, meanProfile(contrastB, 0, contrastA))
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		PeakA:   peakA,
		PeakB:   peakB,
		Diff:    peakA.Position - peakB.Position,
		Exact:   exact,
		Samples: samples,
	}

	workers := t.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > samples {
		workers = samples
	}

	// Each worker evaluates a disjoint range of assignments and collects
	// its part of the null distribution locally; results are concatenated
	// under the lock once per worker.
	var mu sync.Mutex
	var null []float64
	var group errgroup.Group
	for w := 0; w < workers; w++ {
		begin := w * samples / workers
		end := (w + 1) * samples / workers
		rng := rand.New(rand.NewSource(t.Seed + uint64(w)))
		group.Go(func() error {
			local := make([]float64, 0, end-begin)
			for i := begin; i < end; i++ {
				var mask uint64
				if exact {
					mask = uint64(i)
				} else {
					mask = rng.Uint64()
				}
				a, err := t.Locator.Locate(positions, meanProfile(contrastA, mask, contrastB))
				if err != nil {
					return err
				}
				b, err := t.Locator.Locate(positions, meanProfile(contrastB, mask, contrastA))
				if err != nil {
					return err
				}
				if a.Found && b.Found {
					local = append(local, a.Position-b.Position)
				}
			}
			mu.Lock()
			null = append(null, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("permutation sample: %w", err)
	}

	out.PeakRatio = 100.0 * float64(len(null)) / float64(samples)
	if !peakA.Found || !peakB.Found {
		out.PValue = math.NaN()
		return out, nil
	}
	count := 0
	for _, v := range null {
		if math.Abs(v) >= math.Abs(out.Diff) {
			count++
		}
	}
	out.PValue = float64(1+count) / float64(1+len(null))
	return out, nil
}

// meanProfile computes the across-subject mean of the relabeled primary
// contrast: subjects whose mask bit is set contribute their profile from
// the swapped contrast instead. Mask 0 is the identity labeling.
func meanProfile(primary [][]float64, mask uint64, swapped [][]float64) []float64 {
	numDepth := len(primary[0])
	mean := make([]float64, numDepth)
	for s := range primary {
		row := primary[s]
		if mask&(1<<uint(s)) != 0 {
			row = swapped[s]
		}
		for d, v := range row {
			mean[d] += v
		}
	}
	for d := range mean {
		mean[d] /= float64(len(primary))
	}
	return mean
}
