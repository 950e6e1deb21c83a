package drain

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"corticaldepth/internal/models"
	"corticaldepth/pkg/anatomy"
)

// TestBackSubstituteZeroTable verifies the identity property: with all
// mixing coefficients zero, the output equals the input exactly.
func TestBackSubstituteZeroTable(t *testing.T) {
	var zero [anatomy.NumLayers][anatomy.NumLayers]float64
	observed := []float64{1.3, -0.2, 4.7, 0.0, 2.5}
	corrected := backSubstitute(&zero, observed, nil)
	for i := range observed {
		if corrected[i] != observed[i] {
			t.Errorf("Layer %d: expected identity %f, got %f", i, observed[i], corrected[i])
		}
	}
}

// TestDeconvolutionKnownProfile verifies model 1 against a hand-computed
// back-substitution of a flat unit profile.
func TestDeconvolutionKnownProfile(t *testing.T) {
	res, err := Deconvolution{}.Correct([][]float64{{1, 1, 1, 1, 1}})
	if err != nil {
		t.Fatalf("Correction failed: %v", err)
	}
	expected := []float64{
		1.0,
		0.68421052632,
		0.54736842105,
		0.27655502392,
		0.16267942584,
	}
	got := res.Profiles[0][0]
	for i := range expected {
		if math.Abs(got[i]-expected[i]) > 1e-9 {
			t.Errorf("Layer %s: expected %.11f, got %.11f", anatomy.LayerNames[i], expected[i], got[i])
		}
	}
}

// TestDeepestLayerUnchanged verifies that layer VI passes through every
// deterministic variant unscaled by the draining subtraction.
func TestDeepestLayerUnchanged(t *testing.T) {
	input := [][]float64{{2.5, 1.0, 3.0, 1.5, 0.5}}
	res, err := Deconvolution{}.Correct(input)
	if err != nil {
		t.Fatalf("Correction failed: %v", err)
	}
	if res.Profiles[0][0][0] != 2.5 {
		t.Errorf("Layer VI must equal its observed value, got %f", res.Profiles[0][0][0])
	}
}

// TestVascularScaled verifies that model 2 is model 1 followed by the
// fixed scaling table.
func TestVascularScaled(t *testing.T) {
	input := [][]float64{{1.0, 0.8, 1.2, 0.9, 0.7}}
	base, err := Deconvolution{}.Correct(input)
	if err != nil {
		t.Fatalf("Model 1 failed: %v", err)
	}
	scaled, err := VascularScaled{}.Correct(input)
	if err != nil {
		t.Fatalf("Model 2 failed: %v", err)
	}
	for i := 0; i < anatomy.NumLayers; i++ {
		expected := base.Profiles[0][0][i] * anatomy.VascularScaling[i]
		if math.Abs(scaled.Profiles[0][0][i]-expected) > 1e-12 {
			t.Errorf("Layer %d: expected %f, got %f", i, expected, scaled.Profiles[0][0][i])
		}
	}
}

// TestRegionScaledDiffers verifies that model 3 output depends on the
// region.
func TestRegionScaledDiffers(t *testing.T) {
	input := [][]float64{{1.0, 0.8, 1.2, 0.9, 0.7}}
	striate, err := RegionScaled{Region: anatomy.Striate}.Correct(input)
	if err != nil {
		t.Fatalf("Striate correction failed: %v", err)
	}
	extra, err := RegionScaled{Region: anatomy.Extrastriate}.Correct(input)
	if err != nil {
		t.Fatalf("Extrastriate correction failed: %v", err)
	}
	same := true
	for i := 0; i < anatomy.NumLayers; i++ {
		if striate.Profiles[0][0][i] != extra.Profiles[0][0][i] {
			same = false
		}
	}
	if same {
		t.Error("Region scaling must differ between striate and extrastriate")
	}
}

// TestRandomErrorShapeAndReuse verifies the iteration axis, that the same
// noise is reused across calls (subjects), and seed reproducibility.
func TestRandomErrorShapeAndReuse(t *testing.T) {
	input := [][]float64{{1.0, 0.8, 1.2, 0.9, 0.7}, {0.5, 0.4, 0.6, 0.45, 0.35}}

	m := &RandomError{Iterations: 16, SD: 0.15, Src: rand.NewSource(42)}
	first, err := m.Correct(input)
	if err != nil {
		t.Fatalf("Correction failed: %v", err)
	}
	if len(first.Profiles) != 16 {
		t.Fatalf("Expected 16 iterations, got %d", len(first.Profiles))
	}
	if len(first.Profiles[0]) != 2 || len(first.Profiles[0][0]) != anatomy.NumLayers {
		t.Fatalf("Unexpected sample shape %dx%d", len(first.Profiles[0]), len(first.Profiles[0][0]))
	}

	// A second subject with identical data must see the same noise.
	second, err := m.Correct(input)
	if err != nil {
		t.Fatalf("Second correction failed: %v", err)
	}
	for it := range first.Profiles {
		for c := range first.Profiles[it] {
			for d := range first.Profiles[it][c] {
				if first.Profiles[it][c][d] != second.Profiles[it][c][d] {
					t.Fatal("Noise must be shared across calls")
				}
			}
		}
	}

	// Two correctors with the same seed must agree exactly.
	other := &RandomError{Iterations: 16, SD: 0.15, Src: rand.NewSource(42)}
	otherRes, err := other.Correct(input)
	if err != nil {
		t.Fatalf("Seeded correction failed: %v", err)
	}
	if first.Profiles[3][1][4] != otherRes.Profiles[3][1][4] {
		t.Error("Same seed must reproduce identical corrections")
	}
}

// TestRandomErrorZeroSD verifies that vanishing noise reduces model 4 to
// model 1 on every iteration.
func TestRandomErrorZeroSD(t *testing.T) {
	input := [][]float64{{1.0, 0.8, 1.2, 0.9, 0.7}}
	base, err := Deconvolution{}.Correct(input)
	if err != nil {
		t.Fatalf("Model 1 failed: %v", err)
	}
	m := &RandomError{Iterations: 4, SD: 0.0, Src: rand.NewSource(1)}
	res, err := m.Correct(input)
	if err != nil {
		t.Fatalf("Model 4 failed: %v", err)
	}
	for it := range res.Profiles {
		for d := 0; d < anatomy.NumLayers; d++ {
			if math.Abs(res.Profiles[it][0][d]-base.Profiles[0][0][d]) > 1e-12 {
				t.Errorf("Iteration %d layer %d: expected %f, got %f", it, d, base.Profiles[0][0][d], res.Profiles[it][0][d])
			}
		}
	}
}

// TestRandomSystematicBounds verifies that the systematic profiles bracket
// the base correction on a positive profile: assuming stronger draining
// yields lower corrected values, weaker draining higher ones.
func TestRandomSystematicBounds(t *testing.T) {
	input := [][]float64{{2.0, 1.8, 2.4, 1.9, 1.6}}
	base, err := Deconvolution{}.Correct(input)
	if err != nil {
		t.Fatalf("Model 1 failed: %v", err)
	}
	m := &RandomSystematic{
		RandomError: RandomError{Iterations: 8, SD: 0.15, Src: rand.NewSource(7)},
		Bias:        0.3,
	}
	res, err := m.Correct(input)
	if err != nil {
		t.Fatalf("Model 5 failed: %v", err)
	}
	if res.SystematicLow == nil || res.SystematicHigh == nil {
		t.Fatal("Model 5 must produce systematic bias profiles")
	}
	for d := 1; d < anatomy.NumLayers; d++ {
		if !(res.SystematicLow[0][d] < base.Profiles[0][0][d]) {
			t.Errorf("Layer %d: low bias profile %f should undercut base %f", d, res.SystematicLow[0][d], base.Profiles[0][0][d])
		}
		if !(res.SystematicHigh[0][d] > base.Profiles[0][0][d]) {
			t.Errorf("Layer %d: high bias profile %f should exceed base %f", d, res.SystematicHigh[0][d], base.Profiles[0][0][d])
		}
	}
	// The deepest layer is never touched by the bias.
	if res.SystematicLow[0][0] != input[0][0] || res.SystematicHigh[0][0] != input[0][0] {
		t.Error("Layer VI must be unaffected by systematic bias")
	}
}

// TestDeepSignalSweep verifies that factor 0 reproduces model 1 exactly
// and nonzero factors raise the deepest corrected value.
func TestDeepSignalSweep(t *testing.T) {
	input := [][]float64{{1.0, 0.8, 1.2, 0.9, 0.7}}
	base, err := Deconvolution{}.Correct(input)
	if err != nil {
		t.Fatalf("Model 1 failed: %v", err)
	}
	res, err := DeepSignalSweep{Factors: []float64{0.0, 0.25, 0.5}}.Correct(input)
	if err != nil {
		t.Fatalf("Model 6 failed: %v", err)
	}
	if len(res.Profiles) != 3 || len(res.Factors) != 3 {
		t.Fatalf("Expected 3 factor samples, got %d", len(res.Profiles))
	}
	for d := 0; d < anatomy.NumLayers; d++ {
		if res.Profiles[0][0][d] != base.Profiles[0][0][d] {
			t.Errorf("Factor 0 layer %d: expected %f, got %f", d, base.Profiles[0][0][d], res.Profiles[0][0][d])
		}
	}
	if !(res.Profiles[1][0][0] > res.Profiles[0][0][0]) || !(res.Profiles[2][0][0] > res.Profiles[1][0][0]) {
		t.Error("Deepest corrected value must increase with the underestimation factor")
	}
}

// TestInvalidInputs verifies the parameter and shape validation of the
// variants.
func TestInvalidInputs(t *testing.T) {
	badShape := [][]float64{{1, 2, 3}}
	var shapeErr *models.ShapeError
	if _, err := (Deconvolution{}).Correct(badShape); !errors.As(err, &shapeErr) {
		t.Errorf("Expected ShapeError for 3-layer input, got %v", err)
	}

	good := [][]float64{{1, 1, 1, 1, 1}}
	var paramErr *models.ParamError
	m := &RandomError{Iterations: 0, SD: 0.1, Src: rand.NewSource(1)}
	if _, err := m.Correct(good); !errors.As(err, &paramErr) {
		t.Errorf("Expected ParamError for zero iterations, got %v", err)
	}
	m = &RandomError{Iterations: 4, SD: -0.1, Src: rand.NewSource(1)}
	if _, err := m.Correct(good); !errors.As(err, &paramErr) {
		t.Errorf("Expected ParamError for negative SD, got %v", err)
	}
	m = &RandomError{Iterations: 4, SD: 0.1}
	if _, err := m.Correct(good); !errors.As(err, &paramErr) {
		t.Errorf("Expected ParamError for missing random source, got %v", err)
	}
	if _, err := (DeepSignalSweep{}).Correct(good); !errors.As(err, &paramErr) {
		t.Errorf("Expected ParamError for empty factor list, got %v", err)
	}
}

// BenchmarkDeconvolution benchmarks the base correction.
func BenchmarkDeconvolution(b *testing.B) {
	input := [][]float64{
		{1.0, 0.8, 1.2, 0.9, 0.7},
		{0.5, 0.4, 0.6, 0.45, 0.35},
		{2.0, 1.8, 2.4, 1.9, 1.6},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := (Deconvolution{}).Correct(input); err != nil {
			b.Fatalf("Correction failed: %v", err)
		}
	}
}
