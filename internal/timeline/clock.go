// Package timeline is the simulation backend for timeline construction: a
// logical clock with sequential and parallel blocks, and named channels that
// record a pulse every time they are switched off.
package timeline

import (
	"fmt"
	"math"
)

// Mode is the structuring mode of a timeline block.
type Mode uint8

const (
	ModeSequential Mode = iota
	ModeParallel
)

func (m Mode) String() string {
	if m == ModeParallel {
		return "parallel"
	}
	return "sequential"
}

type frame struct {
	mode   Mode
	start  float64
	cursor float64 // sequential only
	end    float64 // parallel only
}

// Clock is a logical clock. Inside a sequential block every Advance moves the
// clock forward. Inside a parallel block every child starts at the block's
// start time and the block ends at the latest child end, so the enclosing
// block advances by the maximum child duration rather than the sum.
//
// Clock is not safe for concurrent use.
type Clock struct {
	frames []frame
}

// NewClock returns a clock at t=0 with only the root sequential block open.
func NewClock() *Clock {
	c := &Clock{}
	c.Reset()
	return c
}

// Reset returns the clock to t=0 and discards every open block.
func (c *Clock) Reset() {
	c.frames = append(c.frames[:0], frame{mode: ModeSequential})
}

// Now returns the current logical time. Inside a parallel block this is the
// block's start.
func (c *Clock) Now() float64 {
	f := c.top()
	if f.mode == ModeParallel {
		return f.start
	}
	return f.cursor
}

// Depth returns the number of open blocks above the root.
func (c *Clock) Depth() int {
	return len(c.frames) - 1
}

// Mode returns the mode of the innermost open block.
func (c *Clock) Mode() Mode {
	return c.top().mode
}

// EnterSequential opens a sequential block starting at Now.
func (c *Clock) EnterSequential() {
	now := c.Now()
	c.frames = append(c.frames, frame{mode: ModeSequential, start: now, cursor: now})
}

// EnterParallel opens a parallel block starting at Now.
func (c *Clock) EnterParallel() {
	now := c.Now()
	c.frames = append(c.frames, frame{mode: ModeParallel, start: now, end: now})
}

// Exit closes the innermost block and hands its end time to the enclosing one.
// Exiting the root block panics.
func (c *Clock) Exit() {
	if len(c.frames) <= 1 {
		panic("timeline: Exit without matching Enter")
	}
	f := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	c.settle(f.endTime())
}

// Advance moves time forward by d. A negative duration panics.
func (c *Clock) Advance(d float64) {
	if d < 0 || math.IsNaN(d) {
		panic(fmt.Sprintf("timeline: invalid duration %v", d))
	}
	f := c.top()
	c.settle(f.childStart() + d)
}

// Sequential runs fn inside a sequential block.
func (c *Clock) Sequential(fn func()) {
	c.EnterSequential()
	defer c.Exit()
	fn()
}

// Parallel runs fn inside a parallel block.
func (c *Clock) Parallel(fn func()) {
	c.EnterParallel()
	defer c.Exit()
	fn()
}

// settle records that a child of the innermost block finished at t.
func (c *Clock) settle(t float64) {
	f := c.top()
	switch f.mode {
	case ModeParallel:
		f.end = math.Max(f.end, t)
	default:
		f.cursor = t
	}
}

func (c *Clock) top() *frame {
	return &c.frames[len(c.frames)-1]
}

func (f frame) childStart() float64 {
	if f.mode == ModeParallel {
		return f.start
	}
	return f.cursor
}

func (f frame) endTime() float64 {
	if f.mode == ModeParallel {
		return f.end
	}
	return f.cursor
}
