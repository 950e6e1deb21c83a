// Package pipeline wires the depth-sampling analysis together: empirical
// equivolume profiles are downsampled onto the five-layer anatomical grid,
// corrected for the draining effect, brought back into equivolume space,
// and summarized by bootstrap confidence intervals, peak positions and
// peak-position permutation tests.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"

	"corticaldepth/internal/models"
	"corticaldepth/pkg/anatomy"
	"corticaldepth/pkg/bootstrap"
	"corticaldepth/pkg/drain"
	"corticaldepth/pkg/peak"
	"corticaldepth/pkg/permutation"
	"corticaldepth/pkg/profileio"
)

// Comparison names one permutation test: two condition contrasts whose
// peak positions are compared. Each element is a pair of condition
// indices; the contrast is the per-subject difference first minus second.
type Comparison struct {
	A, B [2]int
}

// Label renders the comparison using the given condition names.
func (c Comparison) Label(conditions []string) string {
	name := func(p [2]int) string {
		return conditions[p[0]] + "-" + conditions[p[1]]
	}
	return name(c.A) + "_vs_" + name(c.B)
}

// Params holds the analysis parameters.
type Params struct {
	// Variant selects the draining-correction model (1-6).
	Variant int

	// Region is the cortical region the layer geometry refers to.
	Region anatomy.Region

	// Iterations is the bootstrap iteration count for the deterministic
	// variants, the noise sample count for models 4 and 5, and the Monte
	// Carlo sample size of the permutation tests.
	Iterations int

	// Lower and Upper are the confidence-interval percentile bounds.
	Lower, Upper float64

	// Stat is the across-subject statistic of the bootstrap.
	Stat bootstrap.Statistic

	// NoiseSD and SystematicBias parameterize models 4 and 5.
	NoiseSD, SystematicBias float64

	// DeepFactors parameterizes model 6.
	DeepFactors []float64

	// UpsampleFactor and SmoothSD parameterize peak localization.
	UpsampleFactor int
	SmoothSD       float64

	// Comparisons lists the permutation tests to run. Only evaluated for
	// the deterministic variants.
	Comparisons []Comparison

	// Workers bounds the bootstrap and permutation fan-out.
	Workers int

	// Seed makes every stochastic step reproducible.
	Seed uint64

	// SaveIntermediaryResults and IntermediaryDir control CSV dumps of
	// the per-stage arrays.
	SaveIntermediaryResults bool
	IntermediaryDir         string
}

// Results carries everything the analysis produces for external reporting.
type Results struct {
	// Positions is the equivolume depth grid all profiles refer to.
	Positions []float64

	// Corrected is set for models 1-3: corrected profiles per subject,
	// [subject][condition][depth].
	Corrected models.DepthProfiles

	// CorrectedSamples is set for models 4-6: the subject-mean corrected
	// profile per noise iteration or underestimation factor,
	// [sample][condition][depth].
	CorrectedSamples [][][]float64

	// Factors echoes the model-6 underestimation factors, one per sample.
	Factors []float64

	// SystematicLow and SystematicHigh are the model-5 bias profiles,
	// [condition][depth].
	SystematicLow, SystematicHigh [][]float64

	// Interval is the percentile confidence interval: a subject bootstrap
	// for models 1-3, percentiles across noise iterations for models 4-5.
	Interval *bootstrap.Interval

	// PeaksUncorrected and PeaksCorrected are per-condition peak
	// estimates of the across-subject mean profile, before and after
	// correction (models 1-3 only).
	PeaksUncorrected, PeaksCorrected []models.PeakEstimate

	// Permutations holds one record per requested comparison.
	Permutations []PermutationRecord
}

// PermutationRecord pairs a comparison with its test outcome.
type PermutationRecord struct {
	Comparison Comparison
	Outcome    *permutation.Outcome
}

// Analysis runs the depth-sampling pipeline.
type Analysis struct {
	params  *Params
	results *Results
}

// NewAnalysis creates an analysis with the provided parameters.
func NewAnalysis(params *Params) *Analysis {
	return &Analysis{params: params}
}

// Results returns the analysis output. Only valid after Run.
func (a *Analysis) Results() *Results {
	return a.results
}

// Run executes the full pipeline on empirical profiles of the form
// [subject][condition][depth], oriented from white matter to CSF.
func (a *Analysis) Run(profiles models.DepthProfiles) error {
	p := a.params
	numSub, numCon, numDepth, err := profiles.Dims()
	if err != nil {
		return fmt.Errorf("validating input profiles: %w", err)
	}
	if p.Iterations <= 0 {
		return &models.ParamError{Name: "Iterations", Reason: "must be positive"}
	}

	if p.SaveIntermediaryResults {
		if err := os.MkdirAll(p.IntermediaryDir, 0755); err != nil {
			return fmt.Errorf("failed to create intermediary directory: %w", err)
		}
	}

	resampler := resamplerFor(p.Region, numDepth)
	corrector, err := a.corrector()
	if err != nil {
		return err
	}

	// Step 1: subject-by-subject downsampling onto the layer grid.
	fmt.Println("Step 1: Downsampling profiles onto the anatomical layer grid...")
	layerProfiles := make([][][]float64, numSub)
	for s := 0; s < numSub; s++ {
		layerProfiles[s] = make([][]float64, numCon)
		for c := 0; c < numCon; c++ {
			layers, err := resampler.ToLayers(profiles[s][c])
			if err != nil {
				return fmt.Errorf("downsampling subject %d condition %d: %w", s, c, err)
			}
			layerProfiles[s][c] = layers
		}
		if p.SaveIntermediaryResults {
			path := filepath.Join(p.IntermediaryDir, "01_layer_profiles", fmt.Sprintf("subject_%02d.csv", s))
			if err := profileio.SaveMatrixCSV(path, layerProfiles[s]); err != nil {
				fmt.Printf("Warning: failed to save layer profiles of subject %d: %v\n", s, err)
			}
		}
	}

	// Step 2: subject-by-subject removal of the draining effect, followed
	// by interpolation back into equivolume space.
	fmt.Printf("Step 2: Draining-effect correction (model %d, %s cortex)...\n", p.Variant, p.Region)
	results := &Results{Positions: resampler.EquivolumePositions()}
	deterministic := p.Variant <= 3

	// corrected[subject][sample][condition][depth]; the sample axis has
	// length 1 for the deterministic variants.
	corrected := make([][][][]float64, numSub)
	for s := 0; s < numSub; s++ {
		res, err := corrector.Correct(layerProfiles[s])
		if err != nil {
			return fmt.Errorf("correcting subject %d: %w", s, err)
		}
		corrected[s] = make([][][]float64, len(res.Profiles))
		for i, sample := range res.Profiles {
			corrected[s][i] = make([][]float64, numCon)
			for c := 0; c < numCon; c++ {
				equi, err := resampler.ToEquivolume(sample[c])
				if err != nil {
					return fmt.Errorf("resampling subject %d: %w", s, err)
				}
				corrected[s][i][c] = equi
			}
		}
		if res.Factors != nil {
			results.Factors = res.Factors
		}
		if res.SystematicLow != nil {
			low, high, err := resampleSystematic(resampler, res.SystematicLow, res.SystematicHigh)
			if err != nil {
				return fmt.Errorf("resampling systematic bias of subject %d: %w", s, err)
			}
			accumulate(&results.SystematicLow, low, numSub)
			accumulate(&results.SystematicHigh, high, numSub)
		}
	}

	if deterministic {
		results.Corrected = make(models.DepthProfiles, numSub)
		for s := range corrected {
			results.Corrected[s] = corrected[s][0]
		}
	} else {
		// The same noise realizations and factors were applied to every
		// subject, so the across-subject mean per sample is the quantity
		// of interest.
		results.CorrectedSamples = subjectMeanSamples(corrected, numCon, numDepth)
	}
	if p.SaveIntermediaryResults {
		if err := a.saveCorrected(results); err != nil {
			fmt.Printf("Warning: failed to save corrected profiles: %v\n", err)
		}
	}

	// Step 3: confidence intervals.
	fmt.Println("Step 3: Percentile confidence intervals...")
	if deterministic {
		estimator := bootstrap.Estimator{
			Iterations: p.Iterations,
			Lower:      p.Lower,
			Upper:      p.Upper,
			Stat:       p.Stat,
			Workers:    p.Workers,
			Seed:       p.Seed,
		}
		interval, err := estimator.Estimate(results.Corrected)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		results.Interval = interval
	} else {
		interval, err := sampleInterval(results.CorrectedSamples, p.Lower, p.Upper)
		if err != nil {
			return err
		}
		results.Interval = interval
	}

	// Steps 4 and 5 quantify peak positions; the stochastic variants
	// characterize model-assumption error instead and stop here.
	if !deterministic {
		a.results = results
		return nil
	}

	// Step 4: peak positions of the across-subject mean profiles.
	fmt.Println("Step 4: Peak localization...")
	locator := peak.Locator{UpsampleFactor: p.UpsampleFactor, SmoothSD: p.SmoothSD}
	results.PeaksUncorrected = make([]models.PeakEstimate, numCon)
	results.PeaksCorrected = make([]models.PeakEstimate, numCon)
	for c := 0; c < numCon; c++ {
		before, err := locator.Locate(results.Positions, meanAcrossSubjects(profiles, c))
		if err != nil {
			return fmt.Errorf("locating uncorrected peak of condition %d: %w", c, err)
		}
		after, err := locator.Locate(results.Positions, meanAcrossSubjects(results.Corrected, c))
		if err != nil {
			return fmt.Errorf("locating corrected peak of condition %d: %w", c, err)
		}
		results.PeaksUncorrected[c] = before
		results.PeaksCorrected[c] = after
	}

	// Step 5: permutation tests on contrast peak positions.
	if len(p.Comparisons) > 0 {
		fmt.Printf("Step 5: Permutation tests (%d comparisons)...\n", len(p.Comparisons))
	}
	tester := permutation.Tester{
		Iterations: p.Iterations,
		Locator:    locator,
		Workers:    p.Workers,
		Seed:       p.Seed,
	}
	for _, cmp := range p.Comparisons {
		contrastA, err := permutation.Contrast(results.Corrected, cmp.A[0], cmp.A[1])
		if err != nil {
			return fmt.Errorf("building contrast A: %w", err)
		}
		contrastB, err := permutation.Contrast(results.Corrected, cmp.B[0], cmp.B[1])
		if err != nil {
			return fmt.Errorf("building contrast B: %w", err)
		}
		outcome, err := tester.Test(results.Positions, contrastA, contrastB)
		if err != nil {
			return fmt.Errorf("permutation test: %w", err)
		}
		results.Permutations = append(results.Permutations, PermutationRecord{Comparison: cmp, Outcome: outcome})
	}

	a.results = results
	return nil
}

// corrector builds the configured model variant with an explicitly seeded
// random source.
func (a *Analysis) corrector() (drain.Corrector, error) {
	p := a.params
	switch p.Variant {
	case 1:
		return drain.Deconvolution{}, nil
	case 2:
		return drain.VascularScaled{}, nil
	case 3:
		return drain.RegionScaled{Region: p.Region}, nil
	case 4:
		return &drain.RandomError{
			Iterations: p.Iterations,
			SD:         p.NoiseSD,
			Src:        rand.NewSource(p.Seed),
		}, nil
	case 5:
		return &drain.RandomSystematic{
			RandomError: drain.RandomError{
				Iterations: p.Iterations,
				SD:         p.NoiseSD,
				Src:        rand.NewSource(p.Seed),
			},
			Bias: p.SystematicBias,
		}, nil
	case 6:
		return drain.DeepSignalSweep{Factors: p.DeepFactors}, nil
	default:
		return nil, &models.ParamError{Name: "Variant", Reason: fmt.Sprintf("unknown model variant %d", p.Variant)}
	}
}

// saveCorrected dumps the corrected profiles as CSV stage output.
func (a *Analysis) saveCorrected(results *Results) error {
	dir := filepath.Join(a.params.IntermediaryDir, "02_corrected_profiles")
	if results.Corrected != nil {
		for s, sub := range results.Corrected {
			path := filepath.Join(dir, fmt.Sprintf("subject_%02d.csv", s))
			if err := profileio.SaveMatrixCSV(path, sub); err != nil {
				return err
			}
		}
		return nil
	}
	for i, sample := range results.CorrectedSamples {
		path := filepath.Join(dir, fmt.Sprintf("sample_%05d.csv", i))
		if err := profileio.SaveMatrixCSV(path, sample); err != nil {
			return err
		}
	}
	return nil
}
