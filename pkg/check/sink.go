package check

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pincheck/pkg/requirement"
)

// Severity separates findings that fail a check from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind names the rule that produced a finding.
type Kind string

const (
	KindEditable     Kind = "editable"
	KindUnpinned     Kind = "unpinned"
	KindDuplicate    Kind = "duplicate"
	KindMissing      Kind = "missing"
	KindIncompatible Kind = "incompatible"
	KindOrphan       Kind = "orphan"
)

// Finding is one classified outcome of a check.
type Finding struct {
	Severity  Severity
	Kind      Kind
	Message   string
	Subject   requirement.Requirement
	Reference *requirement.Requirement // Related pin or source requirement, if any
}

// Reporter receives findings as they are recorded.
type Reporter interface {
	Report(Finding)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Finding)

// Report calls f(finding).
func (f ReporterFunc) Report(finding Finding) { f(finding) }

// LogReporter logs errors at error level and warnings at warn level.
func LogReporter(logger *log.Logger) Reporter {
	return ReporterFunc(func(f Finding) {
		if f.Severity == SeverityError {
			logger.Error(f.Message)
			return
		}
		logger.Warn(f.Message)
	})
}

// Sink accumulates the findings of one check run. A Sink belongs to exactly
// one run and is never reset.
type Sink struct {
	Errors   int
	Warnings int
	Verbose  bool
	Findings []Finding

	reporter Reporter
}

// NewSink creates a sink. When verbose is set, every finding is forwarded to
// r as soon as it is recorded. A nil reporter discards findings.
func NewSink(r Reporter, verbose bool) *Sink {
	return &Sink{Verbose: verbose, reporter: r}
}

// Record adds a finding and updates the counters.
func (s *Sink) Record(f Finding) {
	switch f.Severity {
	case SeverityError:
		s.Errors++
	default:
		f.Severity = SeverityWarning
		s.Warnings++
	}
	s.Findings = append(s.Findings, f)
	if s.Verbose && s.reporter != nil {
		s.reporter.Report(f)
	}
}

// Error records an error finding.
func (s *Sink) Error(kind Kind, subject requirement.Requirement, ref *requirement.Requirement, format string, args ...any) {
	s.Record(Finding{SeverityError, kind, fmt.Sprintf(format, args...), subject, ref})
}

// Warning records a warning finding.
func (s *Sink) Warning(kind Kind, subject requirement.Requirement, ref *requirement.Requirement, format string, args ...any) {
	s.Record(Finding{SeverityWarning, kind, fmt.Sprintf(format, args...), subject, ref})
}

// HasFindings reports whether anything was recorded.
func (s *Sink) HasFindings() bool {
	return s.Errors > 0 || s.Warnings > 0
}

// ExitStatus is 1 when any error was recorded and 0 otherwise.
func (s *Sink) ExitStatus() int {
	if s.Errors > 0 {
		return 1
	}
	return 0
}
