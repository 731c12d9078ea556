package params

import (
	"errors"
	"testing"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"A.x", Key{"A", "x"}, false},
		{"Excitation_729.line_selection", Key{"Excitation_729", "line_selection"}, false},
		{"A.b.c", Key{"A", "b.c"}, false},
		{" A.x ", Key{"A", "x"}, false},
		{"A", Key{}, true},
		{".x", Key{}, true},
		{"A.", Key{}, true},
		{"", Key{}, true},
	}

	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedKey) {
				t.Errorf("ParseKey(%q) error = %v, want ErrMalformedKey", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseKey(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKey(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.String() != tt.want.Collection+"."+tt.want.Name {
			t.Errorf("String() = %q", got.String())
		}
	}
}

func TestMustKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustKey did not panic on malformed key")
		}
	}()
	MustKey("nodot")
}

func TestValueConversions(t *testing.T) {
	if f, ok := NumberValue(2.5).Float(); !ok || f != 2.5 {
		t.Errorf("NumberValue.Float = %v, %v", f, ok)
	}
	if f, ok := StringValue("1e3").Float(); !ok || f != 1000 {
		t.Errorf("numeric string Float = %v, %v", f, ok)
	}
	if _, ok := StringValue("729G").Float(); ok {
		t.Error("non-numeric string should not convert to float")
	}
	if f, ok := BoolValue(true).Float(); !ok || f != 1 {
		t.Errorf("BoolValue(true).Float = %v, %v", f, ok)
	}
	if n, ok := NumberValue(3).Int(); !ok || n != 3 {
		t.Errorf("Int = %v, %v", n, ok)
	}
	if _, ok := NumberValue(3.5).Int(); ok {
		t.Error("3.5 should not convert to int")
	}
	if b, ok := NumberValue(0).Bool(); !ok || b {
		t.Errorf("NumberValue(0).Bool = %v, %v", b, ok)
	}
	if _, ok := NumberValue(1).Text(); ok {
		t.Error("number should not convert to text")
	}
	if (Value{}).IsValid() {
		t.Error("zero Value should be invalid")
	}
	if _, err := FromAny([]int{1}); err == nil {
		t.Error("FromAny should reject slices")
	}
}
