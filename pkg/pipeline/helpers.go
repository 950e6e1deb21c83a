package pipeline

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"corticaldepth/internal/models"
	"corticaldepth/pkg/anatomy"
	"corticaldepth/pkg/bootstrap"
	"corticaldepth/pkg/resample"
)

// resamplerFor builds the depth resampler for the region and empirical
// depth-level count.
func resamplerFor(region anatomy.Region, levels int) resample.Resampler {
	return resample.Resampler{Region: region, Levels: levels}
}

// resampleSystematic brings the model-5 bias profiles back into
// equivolume space, per condition.
func resampleSystematic(r resample.Resampler, low, high [][]float64) ([][]float64, [][]float64, error) {
	outLow := make([][]float64, len(low))
	outHigh := make([][]float64, len(high))
	for c := range low {
		l, err := r.ToEquivolume(low[c])
		if err != nil {
			return nil, nil, err
		}
		h, err := r.ToEquivolume(high[c])
		if err != nil {
			return nil, nil, err
		}
		outLow[c] = l
		outHigh[c] = h
	}
	return outLow, outHigh, nil
}

// accumulate adds a per-subject contribution divided by the subject count
// into the running across-subject mean, allocating on first use.
func accumulate(into *[][]float64, contribution [][]float64, numSub int) {
	if *into == nil {
		*into = make([][]float64, len(contribution))
		for c := range contribution {
			(*into)[c] = make([]float64, len(contribution[c]))
		}
	}
	for c := range contribution {
		for d, v := range contribution[c] {
			(*into)[c][d] += v / float64(numSub)
		}
	}
}

// subjectMeanSamples averages corrected[subject][sample][condition][depth]
// over the subject axis, yielding [sample][condition][depth].
func subjectMeanSamples(corrected [][][][]float64, numCon, numDepth int) [][][]float64 {
	numSub := len(corrected)
	numSamples := len(corrected[0])
	out := make([][][]float64, numSamples)
	for i := 0; i < numSamples; i++ {
		out[i] = make([][]float64, numCon)
		for c := 0; c < numCon; c++ {
			row := make([]float64, numDepth)
			for s := 0; s < numSub; s++ {
				for d := 0; d < numDepth; d++ {
					row[d] += corrected[s][i][c][d]
				}
			}
			for d := range row {
				row[d] /= float64(numSub)
			}
			out[i][c] = row
		}
	}
	return out
}

// sampleInterval computes percentile bounds across the sample axis of
// [sample][condition][depth] data, with the across-sample mean as point
// estimate. This is the models-4/5 analogue of the subject bootstrap: the
// variance of interest is across noise iterations, not across subjects.
func sampleInterval(samples [][][]float64, lower, upper float64) (*bootstrap.Interval, error) {
	if lower < 0 || upper > 100 || lower >= upper {
		return nil, &models.ParamError{Name: "Lower/Upper", Reason: "percentile bounds must satisfy 0 <= lower < upper <= 100"}
	}
	numSamples := len(samples)
	numCon := len(samples[0])
	numDepth := len(samples[0][0])
	iv := &bootstrap.Interval{
		Point:      make([][]float64, numCon),
		Lower:      make([][]float64, numCon),
		Upper:      make([][]float64, numCon),
		Iterations: numSamples,
	}
	col := make([]float64, numSamples)
	for c := 0; c < numCon; c++ {
		iv.Point[c] = make([]float64, numDepth)
		iv.Lower[c] = make([]float64, numDepth)
		iv.Upper[c] = make([]float64, numDepth)
		for d := 0; d < numDepth; d++ {
			for i := 0; i < numSamples; i++ {
				col[i] = samples[i][c][d]
			}
			iv.Point[c][d] = stat.Mean(col, nil)
			sort.Float64s(col)
			iv.Lower[c][d] = stat.Quantile(lower/100.0, stat.LinInterp, col, nil)
			iv.Upper[c][d] = stat.Quantile(upper/100.0, stat.LinInterp, col, nil)
		}
	}
	return iv, nil
}

// meanAcrossSubjects returns the across-subject mean depth profile of one
// condition.
func meanAcrossSubjects(profiles models.DepthProfiles, condition int) []float64 {
	numDepth := len(profiles[0][condition])
	mean := make([]float64, numDepth)
	for _, sub := range profiles {
		for d, v := range sub[condition] {
			mean[d] += v
		}
	}
	for d := range mean {
		mean[d] /= float64(len(profiles))
	}
	return mean
}
