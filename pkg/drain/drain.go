// Package drain implements the model-based correction of the draining
// effect in laminar GE fMRI depth profiles. At each depth level the
// contribution draining in from deeper levels is removed by sequential
// back-substitution, based on the cortical vascular model of Markuerkiaga
// et al. (2016).
//
// Six model variants share the base subtraction scheme and are exposed as
// distinct types behind the Corrector interface, so call sites do not
// dispatch on a model number.
package drain

import (
	"corticaldepth/internal/models"
	"corticaldepth/pkg/anatomy"
)

// Corrector removes draining contamination from depth profiles defined at
// the five anatomical layer positions.
//
// The input is one profile per condition, [condition][layer], ordered deep
// to superficial. The output carries a leading sample axis whose meaning
// depends on the variant: a single sample for the deterministic models,
// one sample per noise iteration for the stochastic models, and one sample
// per underestimation factor for the deep-signal sweep.
type Corrector interface {
	Correct(layers [][]float64) (*Result, error)
}

// Result holds corrected depth profiles at the five layer positions.
type Result struct {
	// Profiles is the corrected data, [sample][condition][layer]. The
	// deterministic variants produce exactly one sample.
	Profiles [][][]float64

	// SystematicLow and SystematicHigh are only set by the
	// random-plus-systematic variant: profiles corrected under a fixed
	// upper and lower draining bias, [condition][layer]. The low profile
	// assumes stronger draining than the base model, the high profile
	// weaker draining.
	SystematicLow, SystematicHigh [][]float64

	// Factors records, for the deep-signal sweep, the underestimation
	// factor that produced each sample.
	Factors []float64
}

// backSubstitute removes the draining effect from a single-condition
// profile, deepest layer first. Layer VI passes through unchanged; each
// shallower layer subtracts, for every already-corrected deeper layer,
// that layer's corrected value weighted by the fixed draining ratio and
// the gain factor of the target layer. A nil gain means unit gain
// everywhere.
func backSubstitute(ratios *[anatomy.NumLayers][anatomy.NumLayers]float64, observed, gain []float64) []float64 {
	corrected := make([]float64, anatomy.NumLayers)
	corrected[0] = observed[0]
	for target := 1; target < anatomy.NumLayers; target++ {
		g := 1.0
		if gain != nil {
			g = gain[target]
		}
		v := observed[target]
		for source := 0; source < target; source++ {
			v -= ratios[target][source] * corrected[source] * g
		}
		corrected[target] = v
	}
	return corrected
}

// checkLayers validates the condition × layer input matrix.
func checkLayers(layers [][]float64) error {
	_, err := models.CheckMatrix("layer", layers, anatomy.NumLayers)
	return err
}

// correctAll applies backSubstitute to every condition with a shared gain
// vector.
func correctAll(layers [][]float64, gain []float64) [][]float64 {
	out := make([][]float64, len(layers))
	for i, con := range layers {
		out[i] = backSubstitute(&anatomy.DrainingRatios, con, gain)
	}
	return out
}
