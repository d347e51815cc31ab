package domain

import "testing"

func TestComputeStatusGrid(t *testing.T) {
	for _, a := range []int{0, 1, 2, 10} {
		for _, s := range []int{0, 1, 8, 9, 16, 17} {
			required := (s + 7) / 8
			got := ComputeStatus(a, s)
			var want Status
			switch {
			case a < required:
				want = Status{Kind: StatusDeficit, Count: required - a}
			case a > required:
				want = Status{Kind: StatusSurplus, Count: a - required}
			default:
				want = Status{Kind: StatusOK}
			}
			if got != want {
				t.Fatalf("ComputeStatus(%d, %d) = %+v, want %+v", a, s, got, want)
			}
		}
	}
}

func TestComputeStatusExamples(t *testing.T) {
	cases := []struct {
		name      string
		animators int
		students  int
		want      Status
	}{
		{"deficit", 1, 10, Status{Kind: StatusDeficit, Count: 1}},
		{"balanced", 2, 16, Status{Kind: StatusOK}},
		{"surplus", 3, 16, Status{Kind: StatusSurplus, Count: 1}},
		{"empty school", 0, 0, Status{Kind: StatusOK}},
		{"animators without children", 2, 0, Status{Kind: StatusSurplus, Count: 2}},
		{"children without animators", 0, 1, Status{Kind: StatusDeficit, Count: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeStatus(tc.animators, tc.students); got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestRequiredAnimators(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 7: 1, 8: 1, 9: 2, 16: 2, 17: 3, -4: 0}
	for students, want := range cases {
		if got := RequiredAnimators(students); got != want {
			t.Fatalf("RequiredAnimators(%d) = %d, want %d", students, got, want)
		}
	}
}
