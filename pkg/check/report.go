package check

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/requirement"
)

// Report is the serializable result of a check run.
type Report struct {
	RunID      string          `json:"run_id" yaml:"run_id"`
	Target     string          `json:"target" yaml:"target"`
	Sources    []string        `json:"sources" yaml:"sources"`
	Errors     int             `json:"errors" yaml:"errors"`
	Warnings   int             `json:"warnings" yaml:"warnings"`
	ExitStatus int             `json:"exit_status" yaml:"exit_status"`
	Findings   []ReportFinding `json:"findings" yaml:"findings"`
}

// ReportFinding is a Finding with requirements rendered as text.
type ReportFinding struct {
	Severity  Severity `json:"severity" yaml:"severity"`
	Kind      Kind     `json:"kind" yaml:"kind"`
	Message   string   `json:"message" yaml:"message"`
	Subject   string   `json:"subject" yaml:"subject"`
	Reference string   `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// NewReport snapshots the state of sink.
func NewReport(runID string, in Input, sink *Sink) *Report {
	r := &Report{
		RunID:      runID,
		Target:     in.Target,
		Sources:    append([]string{}, in.SourceNames...),
		Errors:     sink.Errors,
		Warnings:   sink.Warnings,
		ExitStatus: sink.ExitStatus(),
		Findings:   make([]ReportFinding, 0, len(sink.Findings)),
	}
	for _, f := range sink.Findings {
		rf := ReportFinding{
			Severity: f.Severity,
			Kind:     f.Kind,
			Message:  f.Message,
			Subject:  requirement.Format(f.Subject),
		}
		if f.Reference != nil {
			rf.Reference = formatReference(f.Kind, *f.Reference)
		}
		r.Findings = append(r.Findings, rf)
	}
	return r
}

// formatReference renders the requirement a finding points back to. A
// duplicate points at the earlier pin, which is rendered like the subject.
func formatReference(kind Kind, ref requirement.Requirement) string {
	if kind == KindDuplicate {
		return requirement.Format(ref)
	}
	return requirement.FormatConstraint(ref)
}

// HasFindings reports whether the run produced any error or warning.
func (r *Report) HasFindings() bool {
	return r.Errors > 0 || r.Warnings > 0
}

// Summary returns the one-line result, e.g.
// "pincheck found 1 errors and 0 warnings in requirements.txt".
func (r *Report) Summary() string {
	return fmt.Sprintf("pincheck found %d errors and %d warnings in %s", r.Errors, r.Warnings, r.Target)
}

// Format selects a report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want text, json or yaml)", s)
	}
}

// Formatter writes a report.
type Formatter interface {
	Format(w io.Writer, r *Report) error
}

// FormatterFunc allows functions to implement Formatter.
type FormatterFunc func(io.Writer, *Report) error

// Format implements the Formatter interface.
func (f FormatterFunc) Format(w io.Writer, r *Report) error {
	return f(w, r)
}

// NewFormatter returns the formatter for format, defaulting to text.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return FormatterFunc(formatText)
	}
}

// JSONFormatter outputs JSON.
type JSONFormatter struct {
	Indent string
}

// Format implements the Formatter interface for JSON output.
func (f *JSONFormatter) Format(w io.Writer, r *Report) error {
	encoder := json.NewEncoder(w)
	if f.Indent != "" {
		encoder.SetIndent("", f.Indent)
	}
	return encoder.Encode(r)
}

// YAMLFormatter outputs YAML.
type YAMLFormatter struct{}

// Format implements the Formatter interface for YAML output.
func (f *YAMLFormatter) Format(w io.Writer, r *Report) error {
	data, err := yaml.MarshalWithOptions(r,
		yaml.Indent(2),
		yaml.IndentSequence(false),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// formatText writes one "severity: message" line per finding followed by
// the summary.
func formatText(w io.Writer, r *Report) error {
	for _, f := range r.Findings {
		if _, err := fmt.Fprintf(w, "%s: %s\n", f.Severity, f.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, r.Summary())
	return err
}
