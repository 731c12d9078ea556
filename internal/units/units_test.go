package units

import (
	"math"
	"testing"
)

func TestToBaseFromBase(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		unit  string
		base  float64
	}{
		{"80 MHz", 80, MHz, 80e6},
		{"150 kHz", 150, KHz, 150e3},
		{"100 us", 100, Us, 100e-6},
		{"5 ms", 5, Ms, 5e-3},
		{"8 dB", 8, DB, 8},
		{"unknown units unchanged", 3, "furlong", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToBase(tt.value, tt.unit)
			if math.Abs(got-tt.base) > 1e-12*math.Max(1, math.Abs(tt.base)) {
				t.Errorf("ToBase(%v, %s) = %v, want %v", tt.value, tt.unit, got, tt.base)
			}
			back := FromBase(got, tt.unit)
			if math.Abs(back-tt.value) > 1e-9 {
				t.Errorf("FromBase(ToBase(%v)) = %v", tt.value, back)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid MHz", MHz, true},
		{"valid us", Us, true},
		{"valid dB", DB, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "mhz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"80MHz", 80e6, false},
		{"100 us", 100e-6, false},
		{"-150kHz", -150e3, false},
		{"5ms", 5e-3, false},
		{"2s", 2, false},
		{"0.25", 0.25, false},
		{"1e-6", 1e-6, false},
		{"", 0, true},
		{"abcMHz", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseQuantity(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseQuantity(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseQuantity(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-12*math.Max(1, math.Abs(tt.want)) {
			t.Errorf("ParseQuantity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAttenuatedAmplitude(t *testing.T) {
	if got := AttenuatedAmplitude(1, 0); got != 1 {
		t.Errorf("0 dB should not change amplitude, got %v", got)
	}
	if got := AttenuatedAmplitude(1, 20); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("20 dB should give 0.1, got %v", got)
	}
	if got := AttenuatedAmplitude(0.5, 6); math.Abs(got-0.5*math.Pow(10, -0.3)) > 1e-12 {
		t.Errorf("unexpected amplitude %v", got)
	}
}
