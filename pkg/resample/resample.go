// Package resample moves depth profiles between the empirical equivolume
// sampling grid and the five-layer anatomical grid of the draining model.
// Both directions use the same cubic-spline interpolation so that a
// forward-then-backward round trip on a smooth profile approximates
// identity.
package resample

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"corticaldepth/internal/models"
	"corticaldepth/pkg/anatomy"
)

// Grid returns n evenly spaced positions spanning [min, max], endpoints
// included. A non-positive n yields an empty grid.
func Grid(min, max float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{min}
	}
	grid := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := range grid {
		grid[i] = min + float64(i)*step
	}
	// Avoid a rounding overshoot at the upper hull boundary.
	grid[n-1] = max
	return grid
}

// Interpolate fits a not-a-knot cubic spline to the profile values defined
// at srcPos and evaluates it at every position in dst. Source positions
// must be strictly increasing.
//
// Target positions outside the convex hull of srcPos are not clamped or
// extrapolated: the corresponding output values are NaN and a
// models.DomainError is returned alongside the complete result, so the
// condition fails loudly but stays inspectable.
func Interpolate(srcPos, srcVal, dst []float64) ([]float64, error) {
	if len(srcPos) != len(srcVal) {
		return nil, &models.ShapeError{Axis: "position", Want: len(srcPos), Got: len(srcVal)}
	}
	if len(srcPos) < 2 {
		return nil, &models.ParamError{Name: "srcPos", Reason: "need at least 2 source positions"}
	}
	if !sort.Float64sAreSorted(srcPos) {
		return nil, &models.ParamError{Name: "srcPos", Reason: "source positions must be increasing"}
	}

	var spline interp.NotAKnotCubic
	if err := spline.Fit(srcPos, srcVal); err != nil {
		return nil, fmt.Errorf("fitting cubic spline: %w", err)
	}

	min, max := srcPos[0], srcPos[len(srcPos)-1]
	out := make([]float64, len(dst))
	var domainErr error
	for i, x := range dst {
		if x < min || x > max {
			out[i] = math.NaN()
			if domainErr == nil {
				domainErr = &models.DomainError{Position: x, Min: min, Max: max}
			}
			continue
		}
		out[i] = spline.Predict(x)
	}
	return out, domainErr
}

// Resampler converts between an equivolume grid with a fixed number of
// depth levels and the five layer-center positions of a cortical region.
// The equivolume grid spans exactly the range of the layer centers, so
// neither direction ever leaves the interpolation domain.
type Resampler struct {
	// Region selects the layer-center positions (striate or extrastriate).
	Region anatomy.Region

	// Levels is the number of equivolume depth levels of the empirical
	// profiles.
	Levels int
}

// LayerPositions returns the five layer-center positions for the
// resampler's region, deep to superficial.
func (r Resampler) LayerPositions() []float64 {
	centers := r.Region.CenterPositions()
	return centers[:]
}

// EquivolumePositions returns the evenly spaced empirical sampling
// positions, spanning the full range of the layer centers.
func (r Resampler) EquivolumePositions() []float64 {
	pos := r.LayerPositions()
	return Grid(pos[0], pos[len(pos)-1], r.Levels)
}

// ToLayers downsamples an equivolume depth profile onto the five
// layer-center positions of the anatomical model.
func (r Resampler) ToLayers(profile []float64) ([]float64, error) {
	if len(profile) != r.Levels {
		return nil, &models.ShapeError{Axis: "depth", Want: r.Levels, Got: len(profile)}
	}
	return Interpolate(r.EquivolumePositions(), profile, r.LayerPositions())
}

// ToEquivolume brings a five-layer profile back onto the equivolume grid,
// enabling direct comparison with the uncorrected empirical profile.
func (r Resampler) ToEquivolume(layers []float64) ([]float64, error) {
	if len(layers) != anatomy.NumLayers {
		return nil, &models.ShapeError{Axis: "layer", Want: anatomy.NumLayers, Got: len(layers)}
	}
	return Interpolate(r.LayerPositions(), layers, r.EquivolumePositions())
}
