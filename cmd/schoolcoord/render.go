package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"schoolcoord/internal/i18n"
	"schoolcoord/pkg/domain"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want %s, %s or %s)", format, outputText, outputJSON, outputYAML)
}

// view is the structured form of one registry state.
type view struct {
	Schools      []domain.SchoolStatus `json:"schools" yaml:"schools"`
	Notification domain.Notification   `json:"notification" yaml:"notification"`
	Messages     []string              `json:"messages" yaml:"messages"`

	// Snapshot is the registry in its stored shape, keyed by school name.
	Snapshot domain.Registry `json:"snapshot" yaml:"snapshot"`
}

type renderer struct {
	w      io.Writer
	mu     *sync.Mutex
	format string
	loc    *i18n.Localizer
}

func (r *renderer) view(reg domain.Registry, n domain.Notification) view {
	return view{
		Schools:      reg.Statuses(),
		Notification: n,
		Messages:     r.loc.Notification(n),
		Snapshot:     reg,
	}
}

// State writes one registry state in the selected format.
func (r *renderer) State(reg domain.Registry, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.view(reg, n)
	switch r.format {
	case outputJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		for _, st := range v.Schools {
			if _, err := fmt.Fprintln(r.w, r.loc.SchoolLine(st)); err != nil {
				return err
			}
		}
		for _, line := range v.Messages {
			if _, err := fmt.Fprintln(r.w, line); err != nil {
				return err
			}
		}
		return nil
	}
}

// Line writes a localized informational line. Structured formats omit it.
func (r *renderer) Line(key string, args ...any) error {
	if r.format != outputText {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintln(r.w, r.loc.Sprintf(key, args...))
	return err
}
