package models

// DepthProfiles holds single-subject cortical depth profiles of the form
// [subject][condition][depth]. Depth index 0 is the white-matter boundary,
// the last index the CSF boundary; inputs must be normalized to this
// orientation before entering the analysis.
type DepthProfiles [][][]float64

// Dims returns the subject, condition and depth-level counts of the array
// after verifying that every subject has the same condition count and every
// condition the same depth-level count. Ragged input is an error, never
// silently broadcast.
func (p DepthProfiles) Dims() (numSub, numCon, numDepth int, err error) {
	if len(p) == 0 {
		return 0, 0, 0, &ShapeError{Axis: "subject", Want: 1, Got: 0}
	}
	numSub = len(p)
	numCon = len(p[0])
	if numCon == 0 {
		return 0, 0, 0, &ShapeError{Axis: "condition", Want: 1, Got: 0}
	}
	numDepth = len(p[0][0])
	if numDepth == 0 {
		return 0, 0, 0, &ShapeError{Axis: "depth", Want: 1, Got: 0}
	}
	for _, sub := range p {
		if len(sub) != numCon {
			return 0, 0, 0, &ShapeError{Axis: "condition", Want: numCon, Got: len(sub)}
		}
		for _, con := range sub {
			if len(con) != numDepth {
				return 0, 0, 0, &ShapeError{Axis: "depth", Want: numDepth, Got: len(con)}
			}
		}
	}
	return numSub, numCon, numDepth, nil
}

// PeakEstimate is the result of sub-sample peak localization on a depth
// profile. Found is false when the maximum sits on either end of the grid,
// i.e. the profile has no interior peak (for example a monotonic profile).
// Position is reported in original depth-position units regardless.
type PeakEstimate struct {
	Position float64
	Found    bool
}

// CheckMatrix verifies that rows is a non-empty rectangular matrix with the
// given number of columns. A want of -1 accepts any column count but still
// requires all rows to agree.
func CheckMatrix(axis string, rows [][]float64, want int) (cols int, err error) {
	if len(rows) == 0 {
		return 0, &ShapeError{Axis: axis, Want: 1, Got: 0}
	}
	cols = len(rows[0])
	if want >= 0 && cols != want {
		return 0, &ShapeError{Axis: axis, Want: want, Got: cols}
	}
	for _, row := range rows {
		if len(row) != cols {
			return 0, &ShapeError{Axis: axis, Want: cols, Got: len(row)}
		}
	}
	return cols, nil
}
