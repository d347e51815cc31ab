package core

import (
	"sync"

	"schoolcoord/pkg/domain"
)

// ChangeFunc observes the registry after a mutation together with the
// recomputed notification.
type ChangeFunc func(domain.Registry, domain.Notification)

// SchoolRegistry owns the live registry value and its derived notification.
// Every mutation recomputes the notification before returning, so readers
// always observe a notification consistent with the registry.
type SchoolRegistry struct {
	mu           sync.RWMutex
	reg          domain.Registry
	notification domain.Notification
	observers    []ChangeFunc
}

// NewSchoolRegistry returns a registry with all schools at zero counts.
func NewSchoolRegistry() *SchoolRegistry {
	return &SchoolRegistry{
		reg:          domain.NewRegistry(),
		notification: domain.NoNotification(),
	}
}

// OnChange registers an observer called after each successful mutation,
// outside the registry lock.
func (r *SchoolRegistry) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Snapshot returns the current registry value.
func (r *SchoolRegistry) Snapshot() domain.Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reg
}

// Notification returns the notification derived from the current registry.
func (r *SchoolRegistry) Notification() domain.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notification
}

// State returns the registry and its notification read atomically.
func (r *SchoolRegistry) State() (domain.Registry, domain.Notification) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reg, r.notification
}

// SetField parses raw and stores it in one counter of one school. Invalid
// input stores 0. Unknown schools or fields leave the registry unchanged.
func (r *SchoolRegistry) SetField(name domain.SchoolName, field domain.Field, raw string) (domain.Notification, error) {
	value := domain.ParseCount(raw)
	return r.mutate(func(reg domain.Registry) (domain.Registry, error) {
		school, ok := reg.Get(name)
		if !ok {
			return reg, domain.ErrUnknownSchool{Name: string(name)}
		}
		switch field {
		case domain.FieldAnimatorCount:
			school.AnimatorCount = value
		case domain.FieldStudentCount:
			school.StudentCount = value
		default:
			return reg, domain.ErrUnknownField{Field: string(field)}
		}
		return reg.With(name, school)
	})
}

// ResetSchool sets both counters of one school to zero.
func (r *SchoolRegistry) ResetSchool(name domain.SchoolName) (domain.Notification, error) {
	return r.mutate(func(reg domain.Registry) (domain.Registry, error) {
		return reg.With(name, domain.School{})
	})
}

// ResetAll sets every school to zero counts, which also clears the
// notification.
func (r *SchoolRegistry) ResetAll() domain.Notification {
	n, _ := r.mutate(func(domain.Registry) (domain.Registry, error) {
		return domain.NewRegistry(), nil
	})
	return n
}

// Replace swaps in a whole registry, typically a loaded snapshot.
func (r *SchoolRegistry) Replace(next domain.Registry) domain.Notification {
	n, _ := r.mutate(func(domain.Registry) (domain.Registry, error) {
		return next.Sanitized(), nil
	})
	return n
}

func (r *SchoolRegistry) mutate(fn func(domain.Registry) (domain.Registry, error)) (domain.Notification, error) {
	r.mu.Lock()
	next, err := fn(r.reg)
	if err != nil {
		n := r.notification
		r.mu.Unlock()
		return n, err
	}
	r.reg = next
	r.notification = domain.Match(next)
	n := r.notification
	observers := append([]ChangeFunc(nil), r.observers...)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(next, n)
	}
	return n, nil
}
