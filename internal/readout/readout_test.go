package readout

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var twoIons = map[string]float64{"BB": 0.5, "BD": 0.2, "DB": 0.2, "DD": 0.1}

func aggregate(t *testing.T, mode Mode, ions int, probs map[string]float64) []Curve {
	t.Helper()
	a, err := New(mode, ions)
	if err != nil {
		t.Fatalf("New(%s, %d): %v", mode, ions, err)
	}
	got, err := a.Aggregate(probs)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	return got
}

func sum(curves []Curve, skip string) float64 {
	var s float64
	for _, c := range curves {
		if c.Name != skip {
			s += c.Value
		}
	}
	return s
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestCounts(t *testing.T) {
	got := aggregate(t, ModePMT, 2, twoIons)
	want := []Curve{{"num_dark:1", 0.4}, {"num_dark:2", 0.1}}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if s := sum(got, ""); math.Abs(s-0.5) > 1e-12 {
		t.Errorf("dark-carrying mass = %v, want 0.5", s)
	}
}

func TestPMTVariants(t *testing.T) {
	got := aggregate(t, ModePMTParity, 2, twoIons)
	if got[len(got)-1].Name != "parity" {
		t.Fatalf("parity must be last, got %v", got)
	}
	// 0.5 - 0.2 - 0.2 + 0.1
	if p := got[len(got)-1].Value; math.Abs(p-0.2) > 1e-12 {
		t.Errorf("parity = %v, want 0.2", p)
	}

	got = aggregate(t, ModePMTStates, 2, twoIons)
	var names []string
	for _, c := range got {
		names = append(names, c.Name)
	}
	want := []string{"num_dark:1", "num_dark:2", "state:BB", "state:BD", "state:DB", "state:DD"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("pmt_states order (-want +got):\n%s", diff)
	}

	mle := aggregate(t, ModePMTMLE, 2, twoIons)
	pmt := aggregate(t, ModePMT, 2, twoIons)
	if diff := cmp.Diff(pmt, mle); diff != "" {
		t.Errorf("pmtMLE should match pmt:\n%s", diff)
	}
}

func TestPerIon(t *testing.T) {
	got := aggregate(t, ModeCamera, 2, twoIons)
	want := []Curve{{"dark_ion:0", 0.3}, {"dark_ion:1", 0.3}}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("per-ion mismatch (-want +got):\n%s", diff)
	}

	a, _ := New(ModeCamera, 3)
	if _, err := a.Aggregate(twoIons); err == nil {
		t.Error("labels shorter than the ion count should fail")
	}
}

func TestStatesConserveMass(t *testing.T) {
	got := aggregate(t, ModeCameraStates, 2, twoIons)
	if len(got) != 4 {
		t.Fatalf("got %d curves, want 4", len(got))
	}
	if s := sum(got, ""); math.Abs(s-1.0) > 1e-12 {
		t.Errorf("state mass = %v, want 1", s)
	}

	got = aggregate(t, ModeCameraParity, 2, twoIons)
	if s := sum(got, "parity"); math.Abs(s-1.0) > 1e-12 {
		t.Errorf("state mass with parity = %v, want 1", s)
	}
	if got[len(got)-1].Name != "parity" {
		t.Errorf("parity must be last")
	}
}

func TestSingleIonCamera(t *testing.T) {
	got := aggregate(t, ModeCamera, 1, map[string]float64{"S": 0.25, "D": 0.75})
	if diff := cmp.Diff([]Curve{{"dark_ion:0", 0.75}}, got); diff != "" {
		t.Errorf("mismatch:\n%s", diff)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New("bogus", 1); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("err = %v, want ErrUnknownMode", err)
	}
	if _, err := New(ModePMT, 0); err == nil {
		t.Error("zero ions should be rejected")
	}
	for _, m := range Modes {
		if _, err := ParseMode(string(m)); err != nil {
			t.Errorf("ParseMode(%q): %v", m, err)
		}
	}
}

func TestLabels(t *testing.T) {
	if diff := cmp.Diff([]string{"DD", "DS", "SD", "SS"}, Labels(2)); diff != "" {
		t.Errorf("Labels(2) mismatch:\n%s", diff)
	}
	if Labels(0) != nil {
		t.Error("Labels(0) should be nil")
	}
	if DarkCount("DSD") != 2 {
		t.Error("DarkCount(DSD) != 2")
	}
}
