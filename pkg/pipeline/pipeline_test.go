package pipeline

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"corticaldepth/internal/models"
	"corticaldepth/pkg/anatomy"
)

// huberBold is the layer-fMRI BOLD depth profile published by Huber et al.
// (2017, Neuron, Figure 3B), oriented from white matter to CSF and scaled
// to percent signal change.
var huberBold = []float64{
	1.90, 2.03, 3.07, 3.85, 4.14, 4.40, 4.71, 4.73, 4.54, 4.59,
	4.83, 5.16, 6.13, 7.57, 9.15, 10.26, 11.05, 10.51, 8.65, 6.27,
}

// testProfiles builds a [subject][condition][depth] set of scaled variants
// of the Huber et al. profile. Per-subject gain differences leave the peak
// position unchanged.
func testProfiles(numSub int, conditionScales []float64) models.DepthProfiles {
	profiles := make(models.DepthProfiles, numSub)
	for s := range profiles {
		gain := 1.0 + 0.05*float64(s)
		profiles[s] = make([][]float64, len(conditionScales))
		for c, scale := range conditionScales {
			row := make([]float64, len(huberBold))
			for d, v := range huberBold {
				row[d] = gain * scale * v
			}
			profiles[s][c] = row
		}
	}
	return profiles
}

// TestRunDeconvolution runs the full deterministic pipeline on the Huber
// et al. fixture and checks every output stage.
func TestRunDeconvolution(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stages")
	params := &Params{
		Variant:                 1,
		Region:                  anatomy.Striate,
		Iterations:              200,
		Lower:                   2.5,
		Upper:                   97.5,
		Workers:                 2,
		Seed:                    1,
		Comparisons:             []Comparison{{A: [2]int{0, 1}, B: [2]int{0, 2}}},
		SaveIntermediaryResults: true,
		IntermediaryDir:         dir,
	}
	profiles := testProfiles(5, []float64{1.0, 0.8, 0.6})

	analysis := NewAnalysis(params)
	if err := analysis.Run(profiles); err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	results := analysis.Results()

	if len(results.Positions) != len(huberBold) {
		t.Fatalf("Expected %d depth positions, got %d", len(huberBold), len(results.Positions))
	}
	numSub, numCon, numDepth, err := results.Corrected.Dims()
	if err != nil {
		t.Fatalf("Corrected profiles inconsistent: %v", err)
	}
	if numSub != 5 || numCon != 3 || numDepth != len(huberBold) {
		t.Fatalf("Expected 5x3x%d corrected profiles, got %dx%dx%d", len(huberBold), numSub, numCon, numDepth)
	}

	iv := results.Interval
	if iv == nil || iv.Iterations != 200 {
		t.Fatal("Expected a 200-iteration bootstrap interval")
	}
	for c := 0; c < numCon; c++ {
		for d := 0; d < numDepth; d++ {
			if !(iv.Lower[c][d] <= iv.Point[c][d] && iv.Point[c][d] <= iv.Upper[c][d]) {
				t.Errorf("Interval not bracketing point at [%d][%d]", c, d)
			}
		}
	}

	// The BOLD profile peaks superficially before correction.
	if len(results.PeaksUncorrected) != numCon || len(results.PeaksCorrected) != numCon {
		t.Fatal("Expected peak estimates per condition")
	}
	before := results.PeaksUncorrected[0]
	if !before.Found || before.Position < 0.5 {
		t.Errorf("Uncorrected BOLD peak should sit superficially, got %+v", before)
	}

	// All conditions are scaled copies, so peaks agree across conditions.
	for c := 1; c < numCon; c++ {
		if results.PeaksUncorrected[c] != before {
			t.Errorf("Condition %d: scaled copies must share the peak, got %+v vs %+v", c, results.PeaksUncorrected[c], before)
		}
	}

	if len(results.Permutations) != 1 {
		t.Fatalf("Expected one permutation record, got %d", len(results.Permutations))
	}
	outcome := results.Permutations[0].Outcome
	if !outcome.Exact || outcome.Samples != 32 {
		t.Errorf("Five subjects should enumerate 32 assignments, got exact=%v samples=%d", outcome.Exact, outcome.Samples)
	}
	// Both contrasts are scaled copies of the same shape, so their peaks
	// coincide and the difference is never exceeded.
	if math.Abs(outcome.Diff) > 1e-9 {
		t.Errorf("Proportional contrasts must have zero peak difference, got %f", outcome.Diff)
	}
	if math.IsNaN(outcome.PValue) || outcome.PValue <= 0 || outcome.PValue > 1 {
		t.Errorf("P-value out of range: %f", outcome.PValue)
	}

	// The stage dumps must exist.
	for _, rel := range []string{
		filepath.Join("01_layer_profiles", "subject_00.csv"),
		filepath.Join("02_corrected_profiles", "subject_04.csv"),
	} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("Missing stage dump %s: %v", rel, err)
		}
	}
}

// TestRunLabels verifies the comparison labeling used in reports.
func TestRunLabels(t *testing.T) {
	cmp := Comparison{A: [2]int{0, 1}, B: [2]int{0, 2}}
	label := cmp.Label([]string{"rest", "low", "high"})
	if label != "rest-low_vs_rest-high" {
		t.Errorf("Unexpected comparison label %q", label)
	}
}

// TestRunRandomError verifies the model-4 output layout: the sample axis
// replaces the subject axis and the interval spans noise iterations.
func TestRunRandomError(t *testing.T) {
	params := &Params{
		Variant:    4,
		Region:     anatomy.Striate,
		Iterations: 50,
		Lower:      2.5,
		Upper:      97.5,
		NoiseSD:    0.15,
		Workers:    2,
		Seed:       3,
	}
	analysis := NewAnalysis(params)
	if err := analysis.Run(testProfiles(4, []float64{1.0, 0.8})); err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	results := analysis.Results()

	if results.Corrected != nil {
		t.Error("Stochastic variants must not report per-subject profiles")
	}
	if len(results.CorrectedSamples) != 50 {
		t.Fatalf("Expected 50 noise samples, got %d", len(results.CorrectedSamples))
	}
	if results.Interval == nil || results.Interval.Iterations != 50 {
		t.Fatal("Expected a 50-sample interval across noise iterations")
	}
	if results.PeaksCorrected != nil || len(results.Permutations) != 0 {
		t.Error("Stochastic variants stop after the interval stage")
	}
}

// TestRunRandomSystematic verifies that model 5 additionally reports the
// systematic bias bounds.
func TestRunRandomSystematic(t *testing.T) {
	params := &Params{
		Variant:        5,
		Region:         anatomy.Striate,
		Iterations:     20,
		Lower:          2.5,
		Upper:          97.5,
		NoiseSD:        0.15,
		SystematicBias: 0.3,
		Workers:        2,
		Seed:           3,
	}
	analysis := NewAnalysis(params)
	if err := analysis.Run(testProfiles(3, []float64{1.0})); err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	results := analysis.Results()

	if results.SystematicLow == nil || results.SystematicHigh == nil {
		t.Fatal("Model 5 must report systematic bias profiles")
	}
	if len(results.SystematicLow) != 1 || len(results.SystematicLow[0]) != len(huberBold) {
		t.Fatalf("Unexpected bias profile shape %dx%d", len(results.SystematicLow), len(results.SystematicLow[0]))
	}
}

// TestRunDeepSignalSweep verifies that model 6 yields one sample per
// underestimation factor.
func TestRunDeepSignalSweep(t *testing.T) {
	factors := []float64{0.0, 0.25, 0.5, 0.75}
	params := &Params{
		Variant:     6,
		Region:      anatomy.Extrastriate,
		Iterations:  1,
		Lower:       2.5,
		Upper:       97.5,
		DeepFactors: factors,
		Workers:     1,
	}
	analysis := NewAnalysis(params)
	if err := analysis.Run(testProfiles(3, []float64{1.0})); err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	results := analysis.Results()

	if len(results.CorrectedSamples) != len(factors) {
		t.Fatalf("Expected %d factor samples, got %d", len(factors), len(results.CorrectedSamples))
	}
	if len(results.Factors) != len(factors) {
		t.Fatalf("Expected the factors echoed, got %v", results.Factors)
	}
	for i, f := range factors {
		if results.Factors[i] != f {
			t.Errorf("Factor %d: expected %f, got %f", i, f, results.Factors[i])
		}
	}
}

// TestRunInvalidParams verifies the top-level parameter checks.
func TestRunInvalidParams(t *testing.T) {
	profiles := testProfiles(3, []float64{1.0})
	var paramErr *models.ParamError

	analysis := NewAnalysis(&Params{Variant: 7, Region: anatomy.Striate, Iterations: 10, Lower: 2.5, Upper: 97.5})
	if err := analysis.Run(profiles); !errors.As(err, &paramErr) {
		t.Errorf("Expected ParamError for unknown variant, got %v", err)
	}

	analysis = NewAnalysis(&Params{Variant: 1, Region: anatomy.Striate, Iterations: 0, Lower: 2.5, Upper: 97.5})
	if err := analysis.Run(profiles); !errors.As(err, &paramErr) {
		t.Errorf("Expected ParamError for zero iterations, got %v", err)
	}

	var shapeErr *models.ShapeError
	ragged := models.DepthProfiles{{{1, 2, 3}}, {{1, 2}}}
	analysis = NewAnalysis(&Params{Variant: 1, Region: anatomy.Striate, Iterations: 10, Lower: 2.5, Upper: 97.5})
	if err := analysis.Run(ragged); !errors.As(err, &shapeErr) {
		t.Errorf("Expected ShapeError for ragged profiles, got %v", err)
	}
}
