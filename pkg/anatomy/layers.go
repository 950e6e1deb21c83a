// Package anatomy defines the fixed anatomical and vascular constant tables
// used by the draining-effect correction. All tables are named and versioned
// so that results stay reproducible across reimplementations and can be
// checked against the cited literature independent of code structure.
//
// References:
//
//	Markuerkiaga, I., Barth, M., & Norris, D. G. (2016). A cortical vascular
//	model for examining the specificity of the laminar BOLD signal.
//	Neuroimage, 132, 491-498.
//
//	Weber, B., Keller, A. L., Reichold, J., & Logothetis, N. K. (2008). The
//	microvascular system of the striate and extrastriate visual cortex of
//	the macaque. Cerebral Cortex, 18(10), 2318-2330.
package anatomy

// TableVersion identifies the revision of the constant tables below.
const TableVersion = "markuerkiaga2016.1-weber2008.1"

// NumLayers is the number of depth levels of the anatomical layer model:
// VI, V, IV, II/III, I, ordered from deep (white matter) to superficial
// (CSF).
const NumLayers = 5

// LayerNames gives the anatomical name of each model depth level, deep to
// superficial.
var LayerNames = [NumLayers]string{"VI", "V", "IV", "II/III", "I"}

// ThicknessFractions is the relative thickness of each cortical layer in
// human V1, fixed following de Sousa et al. (2010) and Burkhalter &
// Bernardo (1989), rounded to the closest multiple of 10% (Markuerkiaga et
// al. 2016, p. 492).
var ThicknessFractions = [NumLayers]float64{0.20, 0.10, 0.40, 0.20, 0.10}

// Region selects the cortical region the layer geometry and vascular
// scaling refer to. The layer-center positions and the model-3 scaling
// table differ between striate (V1) and extrastriate cortex.
type Region int

const (
	// Striate is primary visual cortex (V1).
	Striate Region = iota

	// Extrastriate covers higher visual areas (V2 and beyond), with layer
	// positions following Weber et al. (2008), Figure 5C.
	Extrastriate
)

// String returns the lower-case region label used in file names and status
// output.
func (r Region) String() string {
	if r == Extrastriate {
		return "extrastriate"
	}
	return "striate"
}

// centerPositionsStriate places each layer at the summed thickness of all
// deeper layers plus half its own thickness, derived from
// ThicknessFractions.
var centerPositionsStriate = [NumLayers]float64{0.10, 0.25, 0.50, 0.80, 0.95}

// centerPositionsExtrastriate is the absolute layer depth in micrometers
// (Weber et al. 2008, Figure 5C) divided by the overall cortical thickness
// of 1.7 mm.
var centerPositionsExtrastriate = [NumLayers]float64{
	160.0 / 1700.0,
	590.0 / 1700.0,
	1110.0 / 1700.0,
	1400.0 / 1700.0,
	1620.0 / 1700.0,
}

// CenterPositions returns the relative cortical depth of the five
// layer-center positions for the region, in [0, 1] from white matter to
// CSF. The returned array is a copy and safe to modify.
func (r Region) CenterPositions() [NumLayers]float64 {
	if r == Extrastriate {
		return centerPositionsExtrastriate
	}
	return centerPositionsStriate
}
