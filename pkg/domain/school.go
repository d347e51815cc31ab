// Package domain defines the school staffing records, the derived status and
// notification values, and the persistence contract used by schoolcoord.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SchoolName identifies one of the coordinated schools.
type SchoolName string

// The coordinated schools, in their fixed evaluation order.
const (
	SchoolA SchoolName = "École A"
	SchoolB SchoolName = "École B"
	SchoolC SchoolName = "École C"
)

const schoolCount = 3

var schoolOrder = [schoolCount]SchoolName{SchoolA, SchoolB, SchoolC}

// Schools returns the school names in fixed evaluation order.
func Schools() []SchoolName {
	out := make([]SchoolName, schoolCount)
	copy(out, schoolOrder[:])
	return out
}

func schoolIndex(name SchoolName) (int, bool) {
	for i, candidate := range schoolOrder {
		if candidate == name {
			return i, true
		}
	}
	return 0, false
}

// ParseSchoolName resolves a full school name or its trailing letter
// ("A", "b") to a SchoolName.
func ParseSchoolName(raw string) (SchoolName, error) {
	trimmed := strings.TrimSpace(raw)
	for _, name := range schoolOrder {
		if string(name) == trimmed {
			return name, nil
		}
		letter := string(name)[len(name)-1:]
		if strings.EqualFold(trimmed, letter) {
			return name, nil
		}
	}
	return "", ErrUnknownSchool{Name: trimmed}
}

// Field names one of the two editable counters of a school. The values are
// also the snapshot JSON keys.
type Field string

// Editable school fields.
const (
	FieldAnimatorCount Field = "animatorCount"
	FieldStudentCount  Field = "studentCount"
)

// ParseField validates a field name.
func ParseField(raw string) (Field, error) {
	switch f := Field(strings.TrimSpace(raw)); f {
	case FieldAnimatorCount, FieldStudentCount:
		return f, nil
	}
	return "", ErrUnknownField{Field: raw}
}

// School carries the staffing counters of a single school.
type School struct {
	AnimatorCount int `json:"animatorCount" yaml:"animatorCount"`
	StudentCount  int `json:"studentCount" yaml:"studentCount"`
}

// sanitized clamps both counters to zero or more.
func (s School) sanitized() School {
	return School{AnimatorCount: clampCount(s.AnimatorCount), StudentCount: clampCount(s.StudentCount)}
}

// Status returns the staffing status derived from the school counters.
func (s School) Status() Status {
	return ComputeStatus(s.AnimatorCount, s.StudentCount)
}

// UnmarshalJSON accepts the current keys and the legacy "animators" /
// "students" keys written by older browser clients.
func (s *School) UnmarshalJSON(data []byte) error {
	var raw struct {
		AnimatorCount *int `json:"animatorCount"`
		StudentCount  *int `json:"studentCount"`
		Animators     *int `json:"animators"`
		Students      *int `json:"students"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = School{}
	switch {
	case raw.AnimatorCount != nil:
		s.AnimatorCount = *raw.AnimatorCount
	case raw.Animators != nil:
		s.AnimatorCount = *raw.Animators
	}
	switch {
	case raw.StudentCount != nil:
		s.StudentCount = *raw.StudentCount
	case raw.Students != nil:
		s.StudentCount = *raw.Students
	}
	return nil
}

// Registry is an immutable-by-value mapping of the three school names to
// their counters. Copies never share state; With returns a new value.
type Registry struct {
	entries [schoolCount]School
}

// NewRegistry returns a registry with every school at zero counts.
func NewRegistry() Registry {
	return Registry{}
}

// Get returns the counters for the named school.
func (r Registry) Get(name SchoolName) (School, bool) {
	idx, ok := schoolIndex(name)
	if !ok {
		return School{}, false
	}
	return r.entries[idx], true
}

// With returns a copy of the registry with the named school replaced.
// Counters are clamped to zero or more.
func (r Registry) With(name SchoolName, school School) (Registry, error) {
	idx, ok := schoolIndex(name)
	if !ok {
		return r, ErrUnknownSchool{Name: string(name)}
	}
	r.entries[idx] = school.sanitized()
	return r, nil
}

// Sanitized returns a copy with every counter clamped to zero or more.
func (r Registry) Sanitized() Registry {
	for i := range r.entries {
		r.entries[i] = r.entries[i].sanitized()
	}
	return r
}

// Each calls fn for every school in fixed order.
func (r Registry) Each(fn func(SchoolName, School)) {
	for i, name := range schoolOrder {
		fn(name, r.entries[i])
	}
}

// IsZero reports whether every school has zero counts.
func (r Registry) IsZero() bool {
	return r == Registry{}
}

// Statuses computes the status of each school in fixed order.
func (r Registry) Statuses() []SchoolStatus {
	out := make([]SchoolStatus, 0, schoolCount)
	r.Each(func(name SchoolName, school School) {
		out = append(out, SchoolStatus{Name: name, School: school, Status: school.Status()})
	})
	return out
}

// MarshalJSON encodes the snapshot shape: an object keyed by school name.
func (r Registry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range schoolOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(name))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.entries[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the snapshot shape. Missing schools decode as zero
// counts, unknown keys are ignored and negative counters clamp to zero.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var raw map[string]School
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode registry: %w", err)
	}
	next := Registry{}
	for key, school := range raw {
		if idx, ok := schoolIndex(SchoolName(key)); ok {
			next.entries[idx] = school.sanitized()
		}
	}
	*r = next
	return nil
}

// MarshalYAML renders the registry as a mapping keyed by school name.
func (r Registry) MarshalYAML() (any, error) {
	out := make(map[string]School, schoolCount)
	r.Each(func(name SchoolName, school School) {
		out[string(name)] = school
	})
	return out, nil
}
