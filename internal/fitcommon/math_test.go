package fitcommon

import (
	"testing"
)

func TestParseWorkers(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"auto", "auto", 0, false},
		{"auto_padded_upper", " AUTO ", 0, false},
		{"explicit", "4", 4, false},
		{"one", "1", 1, false},
		{"zero", "0", 0, true},
		{"negative", "-2", 0, true},
		{"garbage", "many", 0, true},
		{"empty", "", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseWorkers(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseWorkers(%q) expected error, got %d", tc.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWorkers(%q) error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("ParseWorkers(%q) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(-1.0, 0.0, 1.0); got != 0.0 {
		t.Fatalf("Clamp(-1, 0, 1) = %f", got)
	}
	if got := Clamp(2.0, 0.0, 1.0); got != 1.0 {
		t.Fatalf("Clamp(2, 0, 1) = %f", got)
	}
	if got := Clamp(0.4, 0.0, 1.0); got != 0.4 {
		t.Fatalf("Clamp(0.4, 0, 1) = %f", got)
	}
}
