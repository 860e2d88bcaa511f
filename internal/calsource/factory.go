/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calsource

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Kind selects a source implementation.
type Kind string

const (
	KindRemote Kind = "remote"
	KindFile   Kind = "file"
	KindStatic Kind = "static"
)

// Spec describes one configured calendar. In YAML it is either a bare URL
// string or a mapping with an explicit kind.
type Spec struct {
	Kind   Kind        `yaml:"kind" json:"kind"`
	Name   string      `yaml:"name,omitempty" json:"name,omitempty"`
	URL    string      `yaml:"url,omitempty" json:"url,omitempty"`
	Path   string      `yaml:"path,omitempty" json:"path,omitempty"`
	Events []BusyEvent `yaml:"events,omitempty" json:"events,omitempty"`
}

// UnmarshalYAML accepts a scalar URL or a full mapping.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Kind = KindRemote
		s.URL = strings.TrimSpace(node.Value)
		return nil
	}
	type plain Spec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Spec(p)
	if s.Kind == "" && s.URL != "" {
		s.Kind = KindRemote
	}
	return nil
}

// Validate checks that the fields required by the kind are present.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindRemote:
		if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
			return fmt.Errorf("remote calendar needs an http(s) url, got %q", s.URL)
		}
	case KindFile:
		if s.Path == "" {
			return fmt.Errorf("file calendar needs a path")
		}
	case KindStatic:
		for i, ev := range s.Events {
			if !ev.Start.Before(ev.End) {
				return fmt.Errorf("static event %d: end must be after start", i)
			}
		}
	default:
		return fmt.Errorf("unknown calendar kind %q", s.Kind)
	}
	return nil
}

// New builds the source a spec describes.
func New(spec Spec, client *http.Client, logger zerolog.Logger) (Source, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Kind {
	case KindRemote:
		return NewRemote(spec.URL, client, logger), nil
	case KindFile:
		return NewFile(spec.Path, logger), nil
	default:
		name := spec.Name
		if name == "" {
			name = "static"
		}
		return NewStatic(name, spec.Events), nil
	}
}

// NewAll builds every spec, stopping at the first invalid one.
func NewAll(specs []Spec, client *http.Client, logger zerolog.Logger) ([]Source, error) {
	out := make([]Source, 0, len(specs))
	for i, spec := range specs {
		src, err := New(spec, client, logger)
		if err != nil {
			return nil, fmt.Errorf("calendar %d: %w", i, err)
		}
		out = append(out, src)
	}
	return out, nil
}
