package sequence

import (
	"log/slog"

	"github.com/banshee-data/pulsesim/internal/frequency"
	"github.com/banshee-data/pulsesim/internal/monitoring"
	"github.com/banshee-data/pulsesim/internal/params"
	"github.com/banshee-data/pulsesim/internal/timeline"
)

// Point identifies the scan point being built.
type Point struct {
	Sequence  string
	Axis      string
	Parameter params.Key
	Index     int
	Value     float64
}

// Context is handed to experiment and subsequence code. It is created once
// per run; the point fields change between scan points.
type Context struct {
	Emitter  timeline.Emitter
	Store    params.Store
	Resolver *params.Resolver
	Freq     *frequency.Calculator
	Arena    *Arena
	Log      *slog.Logger

	point Point
	x     float64
	xSet  bool
}

// NewContext wires a context. A nil logger uses the default.
func NewContext(em timeline.Emitter, store params.Store, freq *frequency.Calculator, logger *slog.Logger) *Context {
	logger = monitoring.OrDefault(logger)
	return &Context{
		Emitter:  em,
		Store:    store,
		Resolver: params.NewResolver(store, logger),
		Freq:     freq,
		Arena:    NewArena(),
		Log:      logger,
	}
}

// BeginPoint records the point being built and clears any x override.
func (c *Context) BeginPoint(p Point) {
	c.point = p
	c.x = 0
	c.xSet = false
}

// Point returns the point being built.
func (c *Context) Point() Point { return c.point }

// SetX overrides the x-value recorded for the current point.
func (c *Context) SetX(x float64) {
	c.x = x
	c.xSet = true
}

// X returns the x override, if any.
func (c *Context) X() (float64, bool) { return c.x, c.xSet }

// Float reads a numeric parameter from the current store, returning def on a
// miss.
func (c *Context) Float(key string, def float64) float64 {
	k, err := params.ParseKey(key)
	if err != nil {
		return def
	}
	return params.Float(c.Store, k, def)
}

// Text reads a string parameter from the current store, returning def on a
// miss.
func (c *Context) Text(key string, def string) string {
	k, err := params.ParseKey(key)
	if err != nil {
		return def
	}
	return params.Text(c.Store, k, def)
}

// Bool reads a boolean parameter from the current store, returning def on a
// miss.
func (c *Context) Bool(key string, def bool) bool {
	k, err := params.ParseKey(key)
	if err != nil {
		return def
	}
	v, ok := c.Store.Get(k)
	if !ok {
		return def
	}
	if b, ok := v.Bool(); ok {
		return b
	}
	return def
}

// Run runs a registered subsequence.
func (c *Context) Run(h Handle) error {
	return c.Arena.Run(c, h)
}

// Frequency is shorthand for c.Freq.Frequency.
func (c *Context) Frequency(r frequency.Request) float64 {
	if c.Freq == nil {
		return r.Detuning
	}
	return c.Freq.Frequency(r)
}
