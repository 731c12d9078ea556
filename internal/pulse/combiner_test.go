package pulse

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCombine_SinglePassInsideDoublePass(t *testing.T) {
	in := []Pulse{
		{Channel: "729G", TimeOn: 0, TimeOff: 10, Frequency: 100, Amplitude: 1.0, Attenuation: 0},
		{Channel: "SP_729G", TimeOn: 2, TimeOff: 8, Frequency: 80, Amplitude: 0.8, Attenuation: 5},
	}
	got := NewCombiner(WithReferenceOffset(80)).Combine(in)
	want := []Pulse{
		{Channel: "729G", TimeOn: 2, TimeOff: 8, Frequency: 100, Amplitude: 0.8, Attenuation: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Combine() mismatch (-want +got):\n%s", diff)
	}
}

func TestCombine_DefaultOffset(t *testing.T) {
	in := []Pulse{
		{Channel: "SP_729G", TimeOn: 0, TimeOff: 5, Frequency: 80e6, Amplitude: 0.5, Attenuation: 1, Phase: 0.25},
		{Channel: "729G", TimeOn: 1, TimeOff: 6, Frequency: 2e6, Amplitude: 0.5, Attenuation: 2, Phase: 0.5},
	}
	got := NewCombiner().Combine(in)
	if len(got) != 1 {
		t.Fatalf("got %d pulses, want 1: %v", len(got), got)
	}
	p := got[0]
	if p.Frequency != 2e6 || p.Amplitude != 0.25 || p.Attenuation != 3 || p.Phase != 0.75 {
		t.Errorf("combined = %+v", p)
	}
	if p.TimeOn != 1 || p.TimeOff != 5 {
		t.Errorf("interval = [%v, %v], want [1, 5]", p.TimeOn, p.TimeOff)
	}
}

func TestCombine_PassThroughAndOrdering(t *testing.T) {
	in := []Pulse{
		{Channel: "397", TimeOn: 0, TimeOff: 1},
		{Channel: "729G", TimeOn: 1, TimeOff: 3, Frequency: 1},
		{Channel: "SP_729G", TimeOn: 1, TimeOff: 3, Frequency: 80e6},
		{Channel: "SP_854", TimeOn: 0, TimeOff: 2},
		{Channel: "866", TimeOn: 0, TimeOff: 4},
	}
	got := NewCombiner().Combine(in)

	var names []string
	for _, p := range got {
		names = append(names, p.Channel)
	}
	want := []string{"729G", "397", "SP_854", "866"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("output order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(in[3], got[2]); diff != "" {
		t.Errorf("unmatched single-pass pulse should pass through unchanged:\n%s", diff)
	}
}

func TestCombine_EmptyIntersectionDropped(t *testing.T) {
	in := []Pulse{
		{Channel: "729G", TimeOn: 0, TimeOff: 2},
		{Channel: "SP_729G", TimeOn: 2, TimeOff: 4},
	}
	if got := NewCombiner().Combine(in); len(got) != 0 {
		t.Errorf("touching intervals should combine to nothing, got %v", got)
	}
}

func TestCombine_MultiplePartnerPulses(t *testing.T) {
	in := []Pulse{
		{Channel: "729G", TimeOn: 0, TimeOff: 2},
		{Channel: "729G", TimeOn: 4, TimeOff: 6},
		{Channel: "SP_729G", TimeOn: 0, TimeOff: 10},
	}
	got := NewCombiner().Combine(in)
	if len(got) != 2 {
		t.Fatalf("got %d pulses, want 2", len(got))
	}
	if got[0].TimeOn != 0 || got[1].TimeOn != 4 {
		t.Errorf("combined pulses out of recorded order: %v", got)
	}
}

func TestCombine_BichroSuffix(t *testing.T) {
	in := []Pulse{
		{Channel: "729G", TimeOn: 0, TimeOff: 10, Frequency: 1e6},
		{Channel: "SP_729G_bichro", TimeOn: 0, TimeOff: 10, Frequency: 81e6},
	}
	got := NewCombiner().Combine(in)
	if len(got) != 1 {
		t.Fatalf("got %d pulses, want 1", len(got))
	}
	if got[0].Channel != "729G_bichro" {
		t.Errorf("combined channel = %q, want 729G_bichro", got[0].Channel)
	}
	if got[0].Frequency != 2e6 {
		t.Errorf("frequency = %v, want 2e6", got[0].Frequency)
	}
}

func TestCombine_LongestPrefixWins(t *testing.T) {
	in := []Pulse{
		{Channel: "729", TimeOn: 0, TimeOff: 10},
		{Channel: "729_G", TimeOn: 0, TimeOff: 10},
		{Channel: "SP_729_G_bichro", TimeOn: 0, TimeOff: 10},
	}
	got := NewCombiner().Combine(in)
	if len(got) != 2 {
		t.Fatalf("got %d pulses, want 2: %v", len(got), got)
	}
	if got[0].Channel != "729_G_bichro" || got[1].Channel != "729" {
		t.Errorf("unexpected output %v", got)
	}
}

func TestCombine_PairingTable(t *testing.T) {
	in := []Pulse{
		{Channel: "729G", TimeOn: 0, TimeOff: 10},
		{Channel: "729L1", TimeOn: 0, TimeOff: 10},
		{Channel: "SP_729G", TimeOn: 0, TimeOff: 10},
	}
	got := NewCombiner(WithPair("SP_729G", "729L1")).Combine(in)
	if len(got) != 2 {
		t.Fatalf("got %d pulses, want 2: %v", len(got), got)
	}
	if got[1].Channel != "729G" {
		t.Errorf("729G should pass through when SP_729G is pinned to 729L1, got %v", got)
	}

	// A pinned partner that never fired leaves the single-pass pulse alone.
	got = NewCombiner(WithPair("SP_729G", "729L2")).Combine(in)
	if len(got) != 3 {
		t.Errorf("got %d pulses, want 3", len(got))
	}
}

func TestCombine_IntervalIsIntersection(t *testing.T) {
	in := []Pulse{
		{Channel: "729G", TimeOn: 1, TimeOff: 7},
		{Channel: "SP_729G", TimeOn: 3, TimeOff: 9},
		{Channel: "SP_729G", TimeOn: 0, TimeOff: 2},
	}
	for _, p := range NewCombiner().Combine(in) {
		if p.TimeOn >= p.TimeOff {
			t.Errorf("pulse %v has non-positive length", p)
		}
		if p.TimeOn < 1 || p.TimeOff > 7 {
			t.Errorf("pulse %v escapes its double-pass interval", p)
		}
	}
}

func TestCombine_DoesNotMutateInput(t *testing.T) {
	in := []Pulse{
		{Channel: "729G", TimeOn: 0, TimeOff: 10},
		{Channel: "SP_729G", TimeOn: 2, TimeOff: 8},
	}
	before := append([]Pulse(nil), in...)
	NewCombiner().Combine(in)
	if diff := cmp.Diff(before, in); diff != "" {
		t.Errorf("input mutated:\n%s", diff)
	}
}

func TestCustomPrefix(t *testing.T) {
	c := NewCombiner(WithPrefix("AUX-"))
	if !c.IsSinglePass("AUX-729G") || c.IsSinglePass("SP_729G") || c.IsSinglePass("AUX-") {
		t.Error("IsSinglePass does not honour custom prefix")
	}
}

func TestNewTable(t *testing.T) {
	pulses := []Pulse{
		{Channel: "866", TimeOn: 0, TimeOff: 4, Frequency: 40e6, Amplitude: 1, Attenuation: 20},
		{Channel: "397", TimeOn: 0, TimeOff: 2, Frequency: 80e6, Amplitude: 0.5},
	}
	tab := NewTable(pulses)

	if diff := cmp.Diff([]string{"397", "866"}, tab.Channels); diff != "" {
		t.Errorf("channels mismatch:\n%s", diff)
	}
	if len(tab.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(tab.Rows))
	}
	// t=0 is the left edge, nothing is on yet.
	if tab.Rows[0].Channels[0].Amplitude != 0 {
		t.Errorf("row 0 should be idle: %+v", tab.Rows[0])
	}
	r1 := tab.Rows[1]
	if r1.Time != 2 || r1.Channels[0].FrequencyMHz != 80 || r1.Channels[0].Amplitude != 0.5 {
		t.Errorf("row 1 = %+v", r1)
	}
	if got := r1.Channels[1].Amplitude; got < 0.0999 || got > 0.1001 {
		t.Errorf("866 effective amplitude = %v, want 0.1", got)
	}
	if tab.Rows[2].Channels[0].Amplitude != 0 {
		t.Errorf("397 should be off at t=4: %+v", tab.Rows[2])
	}

	var buf bytes.Buffer
	n, err := tab.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteTo returned %d, wrote %d", n, buf.Len())
	}
	if !strings.HasPrefix(buf.String(), "time") {
		t.Errorf("unexpected header: %q", buf.String())
	}
}
