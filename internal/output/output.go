// Package output renders plans and run reports for the command line.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/aurora-snapshot-copier/internal/runner"
)

// Formatter defines the interface for output formatting
type Formatter interface {
	FormatPlan(plan *runner.Plan, writer io.Writer) error
	FormatReport(report *runner.Report, writer io.Writer) error
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct{}

// NewFormatter creates a formatter based on format type
func NewFormatter(format string, noColor bool) (Formatter, error) {
	switch format {
	case "", "table":
		return NewTableRenderer(noColor), nil
	case "json":
		return &JSONFormatter{Pretty: true}, nil
	case "yaml", "yml":
		return &YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatPlan writes the plan as JSON
func (f *JSONFormatter) FormatPlan(plan *runner.Plan, writer io.Writer) error {
	return f.encode(plan, writer)
}

// FormatReport writes the report as JSON
func (f *JSONFormatter) FormatReport(report *runner.Report, writer io.Writer) error {
	return f.encode(report, writer)
}

func (f *JSONFormatter) encode(v interface{}, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// FormatPlan writes the plan as YAML
func (f *YAMLFormatter) FormatPlan(plan *runner.Plan, writer io.Writer) error {
	return f.encode(plan, writer)
}

// FormatReport writes the report as YAML
func (f *YAMLFormatter) FormatReport(report *runner.Report, writer io.Writer) error {
	return f.encode(report, writer)
}

func (f *YAMLFormatter) encode(v interface{}, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
