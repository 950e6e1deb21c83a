// Package vertex selects mesh vertices for depth sampling by simple
// inclusion criteria: restriction to a region of interest and thresholds
// on the depth-sampled data. Selection is a data-parallel map over
// disjoint vertex partitions with a final concatenation merge; partitions
// never overlap, so no locking is needed.
package vertex

import (
	"runtime"
	"sync"

	"corticaldepth/internal/models"
)

// Criterion decides whether a single vertex depth profile is kept.
type Criterion func(profile []float64) bool

// MeanAbove keeps vertices whose mean across depth levels exceeds the
// threshold.
func MeanAbove(threshold float64) Criterion {
	return func(profile []float64) bool {
		sum := 0.0
		for _, v := range profile {
			sum += v
		}
		return sum/float64(len(profile)) > threshold
	}
}

// AllAbove keeps vertices whose value exceeds the threshold at every depth
// level.
func AllAbove(threshold float64) Criterion {
	return func(profile []float64) bool {
		for _, v := range profile {
			if v <= threshold {
				return false
			}
		}
		return true
	}
}

// Selector applies inclusion criteria to vertex × depth data.
type Selector struct {
	// ROI lists the vertex indices of the region of interest. A nil ROI
	// keeps all vertices.
	ROI []int

	// Criteria are applied conjunctively to every vertex profile.
	Criteria []Criterion

	// Workers bounds the partition fan-out. Zero selects runtime.NumCPU.
	Workers int
}

// Select returns the inclusion mask for the data, one entry per vertex.
func (s Selector) Select(data [][]float64) ([]bool, error) {
	if _, err := models.CheckMatrix("depth", data, -1); err != nil {
		return nil, err
	}
	mask := make([]bool, len(data))
	if s.ROI == nil {
		for i := range mask {
			mask[i] = true
		}
	} else {
		for _, idx := range s.ROI {
			if idx >= 0 && idx < len(mask) {
				mask[idx] = true
			}
		}
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(data) {
		workers = len(data)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		begin := w * len(data) / workers
		end := (w + 1) * len(data) / workers
		wg.Add(1)
		go func(begin, end int) {
			defer wg.Done()
			for i := begin; i < end; i++ {
				if !mask[i] {
					continue
				}
				for _, keep := range s.Criteria {
					if !keep(data[i]) {
						mask[i] = false
						break
					}
				}
			}
		}(begin, end)
	}
	wg.Wait()
	return mask, nil
}

// Apply concatenates the rows of data whose mask entry is set, preserving
// vertex order.
func Apply(data [][]float64, mask []bool) ([][]float64, error) {
	if len(mask) != len(data) {
		return nil, &models.ShapeError{Axis: "vertex", Want: len(data), Got: len(mask)}
	}
	out := make([][]float64, 0, len(data))
	for i, row := range data {
		if mask[i] {
			out = append(out, row)
		}
	}
	return out, nil
}
