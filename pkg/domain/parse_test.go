package domain

import "testing"

func TestParseCount(t *testing.T) {
	cases := map[string]int{
		"5":     5,
		" 12 ":  12,
		"0":     0,
		"-3":    0,
		"abc":   0,
		"":      0,
		"+":     0,
		"+4":    4,
		"3.7":   3,
		"12abc": 12,
	}
	cases["99999999999999999999999"] = 0
	for raw, want := range cases {
		if got := ParseCount(raw); got != want {
			t.Fatalf("ParseCount(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestParseSchoolName(t *testing.T) {
	cases := map[string]SchoolName{
		"École A": SchoolA,
		"a":       SchoolA,
		" B ":     SchoolB,
		"c":       SchoolC,
	}
	for raw, want := range cases {
		got, err := ParseSchoolName(raw)
		if err != nil {
			t.Fatalf("ParseSchoolName(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseSchoolName(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseSchoolName("École D"); err == nil {
		t.Fatalf("expected error for unknown school")
	}
}

func TestParseField(t *testing.T) {
	if f, err := ParseField("animatorCount"); err != nil || f != FieldAnimatorCount {
		t.Fatalf("ParseField animatorCount = %q, %v", f, err)
	}
	if f, err := ParseField("studentCount"); err != nil || f != FieldStudentCount {
		t.Fatalf("ParseField studentCount = %q, %v", f, err)
	}
	if _, err := ParseField("teachers"); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}
