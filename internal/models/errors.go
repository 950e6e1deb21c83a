package models

import "fmt"

// ShapeError reports mismatched array dimensions across inputs that are
// required to agree before they can be combined.
type ShapeError struct {
	// Axis names the dimension that disagrees (subject, condition, depth).
	Axis string

	// Want and Got are the expected and observed sizes along that axis.
	Want, Got int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch on %s axis: want %d, got %d", e.Axis, e.Want, e.Got)
}

// ParamError reports a parameter outside its valid range, such as a
// percentile bound outside [0, 100], a non-positive iteration count, or a
// negative smoothing SD.
type ParamError struct {
	// Name is the parameter name as exposed on the component.
	Name string

	// Reason describes the violated constraint.
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}

// DomainError reports an interpolation target outside the convex hull of
// the source positions. The offending output values are set to NaN rather
// than clamped, so the condition stays visible downstream.
type DomainError struct {
	// Position is the first out-of-hull target position.
	Position float64

	// Min and Max delimit the convex hull of the source positions.
	Min, Max float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("interpolation target %g outside source domain [%g, %g]", e.Position, e.Min, e.Max)
}
