package domain

// StudentsPerAnimator is the staffing ratio: one animator for every eight
// children, rounded up.
const StudentsPerAnimator = 8

// StatusKind classifies a school's staffing against its requirement.
type StatusKind string

// Staffing classifications.
const (
	StatusOK      StatusKind = "ok"
	StatusDeficit StatusKind = "deficit"
	StatusSurplus StatusKind = "surplus"
)

// Status is the derived staffing state of a school. Count is zero for
// StatusOK and positive otherwise.
type Status struct {
	Kind  StatusKind `json:"kind" yaml:"kind"`
	Count int        `json:"count" yaml:"count"`
}

// SchoolStatus pairs a school with its derived status.
type SchoolStatus struct {
	Name   SchoolName `json:"name" yaml:"name"`
	School School     `json:"school" yaml:"school"`
	Status Status     `json:"status" yaml:"status"`
}

// RequiredAnimators returns ceil(students / StudentsPerAnimator).
func RequiredAnimators(students int) int {
	if students <= 0 {
		return 0
	}
	return (students + StudentsPerAnimator - 1) / StudentsPerAnimator
}

// ComputeStatus classifies a school from its animator and student counts.
// Both inputs must already be sanitized to zero or more.
func ComputeStatus(animators, students int) Status {
	delta := animators - RequiredAnimators(students)
	switch {
	case delta < 0:
		return Status{Kind: StatusDeficit, Count: -delta}
	case delta > 0:
		return Status{Kind: StatusSurplus, Count: delta}
	default:
		return Status{Kind: StatusOK}
	}
}
