package drain

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"corticaldepth/internal/models"
	"corticaldepth/pkg/anatomy"
)

// Deconvolution is model 1: pure removal of the draining effect with the
// base coefficient table.
type Deconvolution struct{}

// Correct implements Corrector.
func (Deconvolution) Correct(layers [][]float64) (*Result, error) {
	if err := checkLayers(layers); err != nil {
		return nil, err
	}
	return &Result{Profiles: [][][]float64{correctAll(layers, nil)}}, nil
}

// VascularScaled is model 2: deconvolution followed by multiplication of
// each corrected layer with the fixed vascular-density scaling factor of
// anatomy.VascularScaling.
type VascularScaled struct{}

// Correct implements Corrector.
func (VascularScaled) Correct(layers [][]float64) (*Result, error) {
	if err := checkLayers(layers); err != nil {
		return nil, err
	}
	corrected := correctAll(layers, nil)
	for _, con := range corrected {
		for i := range con {
			con[i] *= anatomy.VascularScaling[i]
		}
	}
	return &Result{Profiles: [][][]float64{corrected}}, nil
}

// RegionScaled is model 3: deconvolution followed by region-dependent
// scaling based on the vascular density data of Weber et al. (2008),
// differing between striate and extrastriate cortex.
type RegionScaled struct {
	Region anatomy.Region
}

// Correct implements Corrector.
func (m RegionScaled) Correct(layers [][]float64) (*Result, error) {
	if err := checkLayers(layers); err != nil {
		return nil, err
	}
	scale := anatomy.RegionScaling(m.Region)
	corrected := correctAll(layers, nil)
	for _, con := range corrected {
		for i := range con {
			con[i] *= scale[i]
		}
	}
	return &Result{Profiles: [][][]float64{corrected}}, nil
}

// RandomError is model 4: the base deconvolution with every subtraction
// term multiplied by a Gaussian random factor (mean 1, configurable SD),
// independently per iteration, condition and target layer. The output
// gains an iteration axis and describes the sensitivity of the correction
// to violations of the model assumptions.
//
// The noise realizations are drawn once, on the first call, and reused for
// every subsequent call, so that all subjects are corrected under the same
// perturbations and remain comparable across the iteration axis.
type RandomError struct {
	// Iterations is the number of random-noise samples.
	Iterations int

	// SD is the standard deviation of the Gaussian factors around 1.
	SD float64

	// Src seeds the noise draws. A nil source is an error: randomness is
	// always explicit here.
	Src rand.Source

	noise [][][]float64 // [iteration][condition][layer]
}

// Correct implements Corrector.
func (m *RandomError) Correct(layers [][]float64) (*Result, error) {
	if err := checkLayers(layers); err != nil {
		return nil, err
	}
	if err := m.ensureNoise(len(layers)); err != nil {
		return nil, err
	}
	out := make([][][]float64, m.Iterations)
	for it := 0; it < m.Iterations; it++ {
		sample := make([][]float64, len(layers))
		for c, con := range layers {
			sample[c] = backSubstitute(&anatomy.DrainingRatios, con, m.noise[it][c])
		}
		out[it] = sample
	}
	return &Result{Profiles: out}, nil
}

// ensureNoise draws the shared noise array on first use and verifies the
// condition count on every later call.
func (m *RandomError) ensureNoise(numCon int) error {
	if m.Iterations <= 0 {
		return &models.ParamError{Name: "Iterations", Reason: "must be positive"}
	}
	if m.SD < 0 {
		return &models.ParamError{Name: "SD", Reason: "must not be negative"}
	}
	if m.noise != nil {
		if len(m.noise[0]) != numCon {
			return &models.ShapeError{Axis: "condition", Want: len(m.noise[0]), Got: numCon}
		}
		return nil
	}
	if m.Src == nil {
		return &models.ParamError{Name: "Src", Reason: "random source must be set"}
	}
	normal := distuv.Normal{Mu: 1.0, Sigma: m.SD, Src: m.Src}
	m.noise = make([][][]float64, m.Iterations)
	for it := range m.noise {
		m.noise[it] = make([][]float64, numCon)
		for c := range m.noise[it] {
			row := make([]float64, anatomy.NumLayers)
			for d := range row {
				row[d] = normal.Rand()
			}
			m.noise[it][c] = row
		}
	}
	return nil
}

// RandomSystematic is model 5: the random-error variant plus a separate
// deterministic systematic-bias analysis. Two additional corrected
// profiles are produced with the subtraction terms scaled by the fixed
// factors 1+Bias and 1-Bias, uniform across layers and iterations,
// reflecting a hypothetical general bias of the draining model.
type RandomSystematic struct {
	RandomError

	// Bias is the relative extent of the systematic error.
	Bias float64
}

// Correct implements Corrector.
func (m *RandomSystematic) Correct(layers [][]float64) (*Result, error) {
	if m.Bias < 0 {
		return nil, &models.ParamError{Name: "Bias", Reason: "must not be negative"}
	}
	res, err := m.RandomError.Correct(layers)
	if err != nil {
		return nil, err
	}
	low := make([]float64, anatomy.NumLayers)
	high := make([]float64, anatomy.NumLayers)
	for i := range low {
		low[i] = 1.0 + m.Bias
		high[i] = 1.0 - m.Bias
	}
	res.SystematicLow = make([][]float64, len(layers))
	res.SystematicHigh = make([][]float64, len(layers))
	for c, con := range layers {
		res.SystematicLow[c] = backSubstitute(&anatomy.DrainingRatios, con, low)
		res.SystematicHigh[c] = backSubstitute(&anatomy.DrainingRatios, con, high)
	}
	return res, nil
}

// DeepSignalSweep is model 6: the base deconvolution repeated once per
// underestimation factor. Before each correction the observed value of the
// deepest layer is multiplied by 1+factor, simulating local signal that
// was underestimated near the white-matter boundary due to partial-volume
// effects or segmentation errors.
type DeepSignalSweep struct {
	// Factors is the list of deep-layer underestimation fractions. A
	// factor of 0 reproduces the plain deconvolution.
	Factors []float64
}

// Correct implements Corrector.
func (m DeepSignalSweep) Correct(layers [][]float64) (*Result, error) {
	if len(m.Factors) == 0 {
		return nil, &models.ParamError{Name: "Factors", Reason: "need at least one factor"}
	}
	if err := checkLayers(layers); err != nil {
		return nil, err
	}
	out := make([][][]float64, len(m.Factors))
	for f, factor := range m.Factors {
		sample := make([][]float64, len(layers))
		for c, con := range layers {
			boosted := make([]float64, anatomy.NumLayers)
			copy(boosted, con)
			boosted[0] *= 1.0 + factor
			sample[c] = backSubstitute(&anatomy.DrainingRatios, boosted, nil)
		}
		out[f] = sample
	}
	return &Result{
		Profiles: out,
		Factors:  append([]float64(nil), m.Factors...),
	}, nil
}
