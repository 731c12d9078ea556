package pulse

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/banshee-data/pulsesim/internal/units"
)

// ChannelState is the drive of one channel at a table breakpoint.
type ChannelState struct {
	Channel      string  `json:"channel"`
	FrequencyMHz float64 `json:"frequency_mhz"`
	Amplitude    float64 `json:"amplitude"`
}

// TableRow holds every channel's state at one breakpoint.
type TableRow struct {
	Time     float64        `json:"time"`
	Channels []ChannelState `json:"channels"`
}

// Table is a per-breakpoint view of a pulse list, the form used by the
// sequence visualizers. Amplitudes are effective (attenuation applied).
type Table struct {
	Channels []string   `json:"channels"`
	Rows     []TableRow `json:"rows"`
}

// NewTable samples pulses at every distinct switching time. A channel is
// considered on at t when t lies in (TimeOn, TimeOff] of one of its pulses.
func NewTable(pulses []Pulse) Table {
	chanSet := make(map[string]bool)
	timeSet := make(map[float64]bool)
	for _, p := range pulses {
		chanSet[p.Channel] = true
		timeSet[p.TimeOn] = true
		timeSet[p.TimeOff] = true
	}

	t := Table{Channels: make([]string, 0, len(chanSet))}
	for ch := range chanSet {
		t.Channels = append(t.Channels, ch)
	}
	sort.Strings(t.Channels)

	times := make([]float64, 0, len(timeSet))
	for ts := range timeSet {
		times = append(times, ts)
	}
	sort.Float64s(times)

	for _, ts := range times {
		row := TableRow{Time: ts, Channels: make([]ChannelState, 0, len(t.Channels))}
		for _, ch := range t.Channels {
			row.Channels = append(row.Channels, sample(pulses, ch, ts))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func sample(pulses []Pulse, channel string, ts float64) ChannelState {
	for _, p := range pulses {
		if p.Channel == channel && p.Active(ts) {
			return ChannelState{Channel: channel, FrequencyMHz: units.FromBase(p.Frequency, units.MHz), Amplitude: p.EffectiveAmplitude()}
		}
	}
	return ChannelState{Channel: channel}
}

// WriteTo renders the table as aligned text, one row per breakpoint with a
// "freq/amp" cell per channel.
func (t Table) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "time")
	for _, ch := range t.Channels {
		fmt.Fprintf(tw, "\t%s", ch)
	}
	fmt.Fprintln(tw)
	for _, row := range t.Rows {
		fmt.Fprintf(tw, "%.3e", row.Time)
		for _, st := range row.Channels {
			if st.Amplitude == 0 && st.FrequencyMHz == 0 {
				fmt.Fprint(tw, "\t-")
				continue
			}
			fmt.Fprintf(tw, "\t%.4f/%.3f", st.FrequencyMHz, st.Amplitude)
		}
		fmt.Fprintln(tw)
	}
	err := tw.Flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
