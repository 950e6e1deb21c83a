// Package peak locates the sub-sample position of the interior maximum of
// a 1-D depth profile. The profile is upsampled onto a fine grid with the
// same cubic interpolation used for depth resampling, optionally smoothed
// with a Gaussian kernel, and the arg-max is taken on the fine grid.
// Identical input and parameters always yield identical output.
package peak

import (
	"math"

	"corticaldepth/internal/models"
	"corticaldepth/pkg/resample"
)

// DefaultUpsampleFactor is the number of fine-grid intervals per original
// sampling interval.
const DefaultUpsampleFactor = 100

// Locator finds profile peaks on an upsampled grid.
type Locator struct {
	// UpsampleFactor is the number of fine-grid intervals per original
	// interval. Zero selects DefaultUpsampleFactor.
	UpsampleFactor int

	// SmoothSD is the standard deviation of the Gaussian smoothing kernel
	// in depth-position units. Zero disables smoothing; negative values
	// are an error.
	SmoothSD float64
}

// Locate returns the position of the maximum of the profile defined by
// (positions, values), in original position units. When the maximum falls
// on either end of the fine grid the profile has no interior peak and
// Found is false. Ties break to the first (deepest) index attaining the
// maximum.
func (l Locator) Locate(positions, values []float64) (models.PeakEstimate, error) {
	if len(positions) != len(values) {
		return models.PeakEstimate{}, &models.ShapeError{Axis: "depth", Want: len(positions), Got: len(values)}
	}
	if len(values) < 3 {
		return models.PeakEstimate{}, &models.ParamError{Name: "values", Reason: "need at least 3 depth levels"}
	}
	factor := l.UpsampleFactor
	if factor == 0 {
		factor = DefaultUpsampleFactor
	}
	if factor < 1 {
		return models.PeakEstimate{}, &models.ParamError{Name: "UpsampleFactor", Reason: "must be positive"}
	}
	if l.SmoothSD < 0 {
		return models.PeakEstimate{}, &models.ParamError{Name: "SmoothSD", Reason: "must not be negative"}
	}

	fine := resample.Grid(positions[0], positions[len(positions)-1], factor*(len(positions)-1)+1)
	upsampled, err := resample.Interpolate(positions, values, fine)
	if err != nil {
		return models.PeakEstimate{}, err
	}

	if l.SmoothSD > 0 {
		step := (fine[len(fine)-1] - fine[0]) / float64(len(fine)-1)
		upsampled = gaussianSmooth(upsampled, l.SmoothSD/step)
	}

	// First-index tie-break; NaN values never win a comparison and are
	// therefore never selected.
	best := math.Inf(-1)
	bestIdx := -1
	for i, v := range upsampled {
		if v > best {
			best = v
			bestIdx = i
		}
	}
	if bestIdx <= 0 || bestIdx >= len(upsampled)-1 {
		pos := math.NaN()
		if bestIdx >= 0 {
			pos = fine[bestIdx]
		}
		return models.PeakEstimate{Position: pos, Found: false}, nil
	}
	return models.PeakEstimate{Position: fine[bestIdx], Found: true}, nil
}

// gaussianSmooth convolves the signal with a normalized Gaussian kernel of
// the given standard deviation in samples, using reflected boundaries. The
// kernel is truncated at four standard deviations.
func gaussianSmooth(signal []float64, sigma float64) []float64 {
	radius := int(math.Ceil(4.0 * sigma))
	if radius < 1 {
		return signal
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / (2.0 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	n := len(signal)
	out := make([]float64, n)
	for i := range out {
		acc := 0.0
		for k, w := range kernel {
			j := i + k - radius
			// Reflect indices at the boundaries.
			if j < 0 {
				j = -j - 1
			}
			if j >= n {
				j = 2*n - j - 1
			}
			acc += w * signal[j]
		}
		out[i] = acc
	}
	return out
}
