// Package sequence provides the building blocks experiment code composes
// timelines from: a per-run Context and an Arena of reusable subsequences
// addressed by handle.
package sequence

import (
	"errors"
	"fmt"

	"github.com/banshee-data/pulsesim/internal/params"
)

// Handle addresses a subsequence registered in an Arena.
type Handle int

// ErrBadHandle is returned for a handle the arena did not issue.
var ErrBadHandle = errors.New("invalid subsequence handle")

// Configurable is implemented by anything carrying a configuration struct
// whose fields are bound from the parameter store at setup.
type Configurable interface {
	// Config returns a pointer to the configuration struct, or nil.
	Config() any
}

// Subsequence is a reusable block of timeline construction.
type Subsequence interface {
	Configurable
	Name() string
	Run(ctx *Context) error
}

// Parent is a Subsequence that registers the subsequences it runs.
type Parent interface {
	Subsequence
	AddChildren(a *Arena)
}

// Arena owns every subsequence of a run. Subsequences refer to each other by
// Handle only, so the composition is a DAG rooted at the experiment.
type Arena struct {
	subs   []Subsequence
	byName map[string]Handle
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{byName: make(map[string]Handle)}
}

// Add registers s and, for a Parent, its children. Registering a second
// subsequence with a name already present returns the existing handle.
func (a *Arena) Add(s Subsequence) Handle {
	if h, ok := a.byName[s.Name()]; ok {
		return h
	}
	h := Handle(len(a.subs))
	a.subs = append(a.subs, s)
	a.byName[s.Name()] = h
	if p, ok := s.(Parent); ok {
		p.AddChildren(a)
	}
	return h
}

// Get returns the subsequence behind h.
func (a *Arena) Get(h Handle) (Subsequence, error) {
	if h < 0 || int(h) >= len(a.subs) {
		return nil, fmt.Errorf("%w: %d", ErrBadHandle, h)
	}
	return a.subs[h], nil
}

// Lookup returns the handle of a registered subsequence by name.
func (a *Arena) Lookup(name string) (Handle, bool) {
	h, ok := a.byName[name]
	return h, ok
}

// Len returns the number of registered subsequences.
func (a *Arena) Len() int { return len(a.subs) }

// Names returns the registered subsequence names in registration order.
func (a *Arena) Names() []string {
	out := make([]string, len(a.subs))
	for i, s := range a.subs {
		out[i] = s.Name()
	}
	return out
}

// Attach binds every subsequence configuration through r. Misses are merged
// into one report.
func (a *Arena) Attach(r *params.Resolver) (params.AttachReport, error) {
	var total params.AttachReport
	for _, s := range a.subs {
		cfg := s.Config()
		if cfg == nil {
			continue
		}
		rep, err := r.Attach(cfg)
		if err != nil {
			return total, fmt.Errorf("attach %s: %w", s.Name(), err)
		}
		total.Resolved += rep.Resolved
		total.Misses = append(total.Misses, rep.Misses...)
	}
	return total, nil
}

// Run runs the subsequence behind h.
func (a *Arena) Run(ctx *Context, h Handle) error {
	s, err := a.Get(h)
	if err != nil {
		return err
	}
	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	return nil
}
