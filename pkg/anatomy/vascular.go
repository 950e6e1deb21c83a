package anatomy

// DrainingRatios is the fixed mixing-coefficient table of the cortical
// vascular model by Markuerkiaga et al. (2016). Entry [target][source] is
// the fraction of the corrected signal at the deeper layer `source` that
// drains into, and must be subtracted from, the shallower layer `target`.
// Only entries below the diagonal are populated: no layer is contaminated
// by shallower layers, and layer VI (index 0) receives no contamination at
// all.
var DrainingRatios = [NumLayers][NumLayers]float64{
	// Layer VI: deepest layer, no contamination.
	{0, 0, 0, 0, 0},
	// Layer V <- VI.
	{0.6 / 1.9, 0, 0, 0, 0},
	// Layer IV <- VI, V.
	{0.6 / 1.9, 0.3 / 1.5, 0, 0, 0},
	// Layer II/III <- VI, V, IV.
	{0.5 / 1.9, 0.3 / 1.5, 1.3 / 2.2, 0, 0},
	// Layer I <- VI, V, IV, II/III.
	{0.5 / 1.9, 0.3 / 1.5, 1.3 / 2.2, 0.7 / 1.7, 0},
}

// layerSignalGE is the relative gradient-echo fMRI signal per unit neural
// response at each layer (Markuerkiaga et al. 2016, Table 1, 3T GE). The
// denominators of DrainingRatios are drawn from the same column.
var layerSignalGE = [NumLayers]float64{1.9, 1.5, 2.2, 1.7, 1.6}

// VascularScaling is the model-2 scaling table. After deconvolution, each
// layer is multiplied by its entry to compensate for depth-dependent
// vascular density and haemodynamic coupling, normalizing the
// layer-specific GE signal gain to that of layer VI.
var VascularScaling = [NumLayers]float64{
	layerSignalGE[0] / layerSignalGE[0],
	layerSignalGE[0] / layerSignalGE[1],
	layerSignalGE[0] / layerSignalGE[2],
	layerSignalGE[0] / layerSignalGE[3],
	layerSignalGE[0] / layerSignalGE[4],
}

// Relative microvascular length density per layer, normalized to the
// across-depth mean, read from Weber et al. (2008), Figure 4, for macaque
// striate and extrastriate cortex.
var (
	vesselDensityStriate      = [NumLayers]float64{0.89, 1.08, 1.33, 1.10, 0.93}
	vesselDensityExtrastriate = [NumLayers]float64{0.95, 1.03, 1.16, 1.06, 0.94}
)

// RegionScaling returns the model-3 scaling table for the region: the
// reciprocal of the normalized vascular density of each layer, so that
// layers with denser vasculature are attenuated after deconvolution. The
// returned array is a copy and safe to modify.
func RegionScaling(r Region) [NumLayers]float64 {
	density := vesselDensityStriate
	if r == Extrastriate {
		density = vesselDensityExtrastriate
	}
	var scale [NumLayers]float64
	for i, d := range density {
		scale[i] = 1.0 / d
	}
	return scale
}
