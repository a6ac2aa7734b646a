package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"capbench/internal/domain"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Structured writes the whole run as one JSON or YAML document once the run
// finishes.
type Structured struct {
	w      io.Writer
	format string
}

func NewStructured(w io.Writer, format string) (*Structured, error) {
	switch format {
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
	return &Structured{w: w, format: format}, nil
}

func (s *Structured) RunStarted(context.Context, domain.RunInfo) error { return nil }

func (s *Structured) PassStarted(context.Context, string) error { return nil }

func (s *Structured) PassFinished(context.Context, domain.RunInfo, domain.PassResult) error {
	return nil
}

func (s *Structured) RunFinished(_ context.Context, report domain.RunReport) error {
	switch s.format {
	case FormatYAML:
		enc := yaml.NewEncoder(s.w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(s.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	}
}
