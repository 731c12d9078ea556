package scan

import "fmt"

// AxisError reports a failure that aborted the remaining points of an axis.
type AxisError struct {
	Axis  string
	Point int
	Err   error
}

func (e *AxisError) Error() string {
	if e.Point < 0 {
		return fmt.Sprintf("axis %s: %v", e.Axis, e.Err)
	}
	return fmt.Sprintf("axis %s, point %d: %v", e.Axis, e.Point, e.Err)
}

func (e *AxisError) Unwrap() error { return e.Err }

// FitError marks a failure in post-axis analysis that must stop the run.
// Any other post-axis or finish error is logged and the run continues.
type FitError struct {
	Axis string
	Err  error
}

func (e *FitError) Error() string {
	if e.Axis == "" {
		return fmt.Sprintf("fit: %v", e.Err)
	}
	return fmt.Sprintf("fit on axis %s: %v", e.Axis, e.Err)
}

func (e *FitError) Unwrap() error { return e.Err }
