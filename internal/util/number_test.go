package util

import "testing"

func TestCoerceNumber(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "plain", input: "500", want: 500},
		{name: "thousand comma", input: "1,250", want: 1250},
		{name: "interior space", input: "12 500", want: 12500},
		{name: "nbsp separator", input: "2 000", want: 2000},
		{name: "decimal", input: "3.75", want: 3.75},
		{name: "padded", input: "  42  ", want: 42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CoerceNumber(tc.input)
			if got == nil {
				t.Fatalf("value is nil")
			}
			if *got != tc.want {
				t.Fatalf("got %v want %v", *got, tc.want)
			}
		})
	}
}

func TestCoerceNumberUnparseable(t *testing.T) {
	for _, input := range []string{"", "n/a", "-", "1.2.3", "abc"} {
		if got := CoerceNumber(input); got != nil {
			t.Fatalf("CoerceNumber(%q) = %v, want nil", input, *got)
		}
	}
}

func TestCleanHeader(t *testing.T) {
	if got := CleanHeader("Month-end \ninventory"); got != "Month-end inventory" {
		t.Fatalf("got %q", got)
	}
	if got := CleanHeader("  Production  "); got != "Production" {
		t.Fatalf("got %q", got)
	}
}
