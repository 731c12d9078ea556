package scan

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/banshee-data/pulsesim/internal/readout"
)

// Series is one named curve of a Result.
type Series struct {
	Name string
	Y    []float64
}

type seriesJSON struct {
	Name string     `json:"name"`
	Y    []*float64 `json:"y"`
}

// MarshalJSON encodes missing samples (NaN) as null.
func (s Series) MarshalJSON() ([]byte, error) {
	out := seriesJSON{Name: s.Name, Y: make([]*float64, len(s.Y))}
	for i, v := range s.Y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out.Y[i] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null samples as NaN.
func (s *Series) UnmarshalJSON(data []byte) error {
	var in seriesJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.Name = in.Name
	s.Y = make([]float64, len(in.Y))
	for i, v := range in.Y {
		if v == nil {
			s.Y[i] = math.NaN()
			continue
		}
		s.Y[i] = *v
	}
	return nil
}

// Result accumulates the x-values and curves of one axis. Every series always
// has exactly one sample per x-value: a curve first seen at point i is
// back-filled with NaN, and a curve missing at a point gets NaN.
type Result struct {
	Axis      string    `json:"axis"`
	Parameter string    `json:"parameter"`
	X         []float64 `json:"x"`
	Series    []Series  `json:"curves"`

	index map[string]int
}

// NewResult returns an empty result for an axis.
func NewResult(axis, parameter string) *Result {
	return &Result{Axis: axis, Parameter: parameter, index: make(map[string]int)}
}

// Append records one point.
func (r *Result) Append(x float64, curves []readout.Curve) {
	if r.index == nil {
		r.reindex()
	}
	n := len(r.X)
	r.X = append(r.X, x)
	for _, c := range curves {
		i, ok := r.index[c.Name]
		if !ok {
			y := make([]float64, n, n+1)
			for k := range y {
				y[k] = math.NaN()
			}
			r.Series = append(r.Series, Series{Name: c.Name, Y: y})
			i = len(r.Series) - 1
			r.index[c.Name] = i
		}
		if len(r.Series[i].Y) == n+1 {
			// Duplicate curve name within one point; last value wins.
			r.Series[i].Y[n] = c.Value
			continue
		}
		r.Series[i].Y = append(r.Series[i].Y, c.Value)
	}
	for i := range r.Series {
		if len(r.Series[i].Y) == n {
			r.Series[i].Y = append(r.Series[i].Y, math.NaN())
		}
	}
}

// Len returns the number of recorded points.
func (r *Result) Len() int { return len(r.X) }

// Names returns the curve names in first-seen order.
func (r *Result) Names() []string {
	out := make([]string, len(r.Series))
	for i, s := range r.Series {
		out[i] = s.Name
	}
	return out
}

// Curve returns the samples of a named curve.
func (r *Result) Curve(name string) ([]float64, bool) {
	if r.index == nil {
		r.reindex()
	}
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.Series[i].Y, true
}

// Validate checks that every series is as long as X.
func (r *Result) Validate() error {
	for _, s := range r.Series {
		if len(s.Y) != len(r.X) {
			return fmt.Errorf("curve %s has %d samples, want %d", s.Name, len(s.Y), len(r.X))
		}
	}
	return nil
}

// UnmarshalJSON restores the name index alongside the fields.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Result(p)
	r.reindex()
	return nil
}

func (r *Result) reindex() {
	r.index = make(map[string]int, len(r.Series))
	for i, s := range r.Series {
		r.index[s.Name] = i
	}
}
