package check

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/reqfile"
	"github.com/matzehuels/pincheck/pkg/requirement"
	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

var linux = marker.DefaultEnv().With(map[string]string{
	"sys_platform":    "linux",
	"platform_system": "Linux",
	"os_name":         "posix",
})

func parse(t *testing.T, lines ...string) []requirement.Requirement {
	t.Helper()
	out := make([]requirement.Requirement, 0, len(lines))
	for _, l := range lines {
		var (
			r   requirement.Requirement
			err error
		)
		if rest, ok := strings.CutPrefix(l, "-e "); ok {
			r, err = reqfile.ParseLine(rest)
			r.Editable = true
		} else {
			r, err = reqfile.ParseLine(l)
		}
		require.NoError(t, err, l)
		out = append(out, r)
	}
	return out
}

func constraints(t *testing.T, lines ...string) []requirement.Requirement {
	t.Helper()
	out := parse(t, lines...)
	for i := range out {
		out[i].Constraint = true
	}
	return out
}

func messages(s *Sink) []string {
	out := make([]string, len(s.Findings))
	for i, f := range s.Findings {
		out[i] = f.Message
	}
	return out
}

// run reconciles target against the concatenation of sources.
func run(t *testing.T, target []requirement.Requirement, sources ...[]requirement.Requirement) *Sink {
	t.Helper()
	sink := NewSink(nil, false)
	pins := BuildPins(target, sink)
	require.NoError(t, Reconcile(pins, BuildSources(sources, linux), sink))
	return sink
}

func TestBuildPinsDuplicate(t *testing.T) {
	sink := NewSink(nil, false)
	pins := BuildPins(parse(t, "six==1.9.0", "six==1.10.0"), sink)

	assert.Equal(t, []string{"six==1.10.0 is a duplicate of six==1.9.0"}, messages(sink))
	assert.Equal(t, 1, sink.Errors)
	assert.Equal(t, KindDuplicate, sink.Findings[0].Kind)
	require.NotNil(t, sink.Findings[0].Reference)
	assert.Equal(t, "six==1.9.0", sink.Findings[0].Reference.String())

	pin, ok := pins.Get("six")
	require.True(t, ok)
	assert.Equal(t, "six==1.10.0", pin.String())
	assert.Equal(t, 1, pins.Len())
}

func TestBuildPinsIdempotent(t *testing.T) {
	target := parse(t, "Django==4.2", "six==1.9.0", "django==4.2.1", "attrs")

	s1, s2 := NewSink(nil, false), NewSink(nil, false)
	p1, p2 := BuildPins(target, s1), BuildPins(target, s2)

	assert.Equal(t, p1.Keys(), p2.Keys())
	for k, v := range p1.All() {
		other, ok := p2.Get(k)
		require.True(t, ok)
		assert.Equal(t, v.String(), other.String())
	}
	assert.Equal(t, messages(s1), messages(s2))
}

func TestBuildPinsSize(t *testing.T) {
	tests := []struct {
		name   string
		target []string
		want   int
	}{
		{"distinct", []string{"a==1", "b==2", "c==3"}, 3},
		{"repeated key", []string{"a==1", "A==2", "b==2"}, 2},
		{"separator variants", []string{"foo_bar==1", "Foo.Bar==1"}, 1},
		{"unnamed editable", []string{"a==1", "-e ./src"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := parse(t, tt.target...)
			pins := BuildPins(target, NewSink(nil, false))
			assert.Equal(t, tt.want, pins.Len())
			assert.LessOrEqual(t, pins.Len(), len(target))
		})
	}
}

func TestBuildPinsWarnings(t *testing.T) {
	tests := []struct {
		name     string
		target   []string
		warnings []string
	}{
		{"pinned", []string{"six==1.10.0"}, []string{}},
		{"unpinned", []string{"six"}, []string{"six is unpinned"}},
		{"range is unpinned", []string{"six>=1.0"}, []string{"six>=1.0 is unpinned"}},
		{"wildcard is unpinned", []string{"six==1.*"}, []string{"six==1.* is unpinned"}},
		{"arbitrary equality pins", []string{"six===1.10.0"}, []string{}},
		{"url", []string{"pkg @ https://example.com/pkg-1.0.tar.gz"}, []string{}},
		{"named editable", []string{"-e git+https://github.com/org/tool.git#egg=tool"},
			[]string{"-e git+https://github.com/org/tool.git#egg=tool is editable"}},
		{"unnamed editable", []string{"-e ./src"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := NewSink(nil, false)
			BuildPins(parse(t, tt.target...), sink)
			assert.Equal(t, 0, sink.Errors)
			assert.Equal(t, len(tt.warnings), sink.Warnings)
			assert.Equal(t, tt.warnings, messages(sink))
		})
	}
}

func TestBuildSources(t *testing.T) {
	set := BuildSources([][]requirement.Requirement{
		parse(t, "Django>=4", `pywin32; sys_platform == "win32"`),
		constraints(t, "six>=1.10", `colorama<1; sys_platform == "win32"`),
		parse(t, "six", "-e ./src"),
	}, linux)

	assert.Equal(t, map[string]bool{"django": true, "pywin32": true, "six": true}, set.Primary)

	var got []string
	for _, r := range set.Records {
		got = append(got, r.String())
	}
	assert.Equal(t, []string{"django>=4", "six>=1.10", "six"}, got)
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		target   []requirement.Requirement
		sources  [][]requirement.Requirement
		findings []string
		errs     int
		warnings int
	}{
		{
			name:   "clean",
			target: parse(t, "six==1.10.0"),
			sources: [][]requirement.Requirement{
				parse(t, "six"),
			},
		},
		{
			name:     "unpinned",
			target:   parse(t, "six"),
			sources:  [][]requirement.Requirement{parse(t, "six")},
			findings: []string{"six is unpinned"},
			warnings: 1,
		},
		{
			name:     "missing",
			target:   parse(t, "six==1.10.0"),
			sources:  [][]requirement.Requirement{parse(t, "django", "six")},
			findings: []string{"missing requirement django"},
			errs:     1,
		},
		{
			name:     "incompatible",
			target:   parse(t, "six==1.9.0"),
			sources:  [][]requirement.Requirement{parse(t, "six==1.10.0")},
			findings: []string{"incompatible requirements found, six==1.9.0 violates constraint six==1.10.0"},
			errs:     1,
		},
		{
			name:     "pre-release pin",
			target:   parse(t, "six==2.0rc1"),
			sources:  [][]requirement.Requirement{parse(t, "six>=1.0")},
			findings: []string{"incompatible requirements found, six==2.0rc1 violates constraint six>=1.0"},
			errs:     1,
		},
		{
			name:   "constraint propagation",
			target: parse(t, "six==1.9.0"),
			sources: [][]requirement.Requirement{
				append(constraints(t, "six>=1.10.0"), parse(t, "six")...),
			},
			findings: []string{"incompatible requirements found, six==1.9.0 violates constraint six>=1.10.0"},
			errs:     1,
		},
		{
			name:   "constraint without pin",
			target: parse(t, "six==1.10.0"),
			sources: [][]requirement.Requirement{
				constraints(t, "django<5"),
				parse(t, "six"),
			},
		},
		{
			name:     "orphan",
			target:   parse(t, "gnureadline==6.6.3", "six==1.9.0"),
			sources:  [][]requirement.Requirement{parse(t, "six")},
			findings: []string{"gnureadline==6.6.3 is present but not required by any input requirements"},
			warnings: 1,
		},
		{
			name:     "constraint only is orphan",
			target:   parse(t, "six==1.10.0"),
			sources:  [][]requirement.Requirement{constraints(t, "six>=1")},
			findings: []string{"six==1.10.0 is present but not required by any input requirements"},
			warnings: 1,
		},
		{
			name:    "marker excludes missing",
			target:  parse(t, "six==1.10.0"),
			sources: [][]requirement.Requirement{parse(t, "six", `pywin32; sys_platform == "win32"`)},
		},
		{
			name:    "marker excluded primary is not orphan",
			target:  parse(t, "six==1.10.0", "pywin32==306"),
			sources: [][]requirement.Requirement{parse(t, "six", `pywin32>=400; sys_platform == "win32"`)},
		},
		{
			name:    "identity is normalized",
			target:  parse(t, "Foo_Bar==1.0"),
			sources: [][]requirement.Requirement{parse(t, "FOO.BAR>=1")},
		},
		{
			name:    "unpinned pin skips compatibility",
			target:  parse(t, "six>=1.0"),
			sources: [][]requirement.Requirement{parse(t, "six>=2")},
			findings: []string{
				"six>=1.0 is unpinned",
			},
			warnings: 1,
		},
		{
			name:   "multiple sources",
			target: parse(t, "django==2.1", "six==1.10.0"),
			sources: [][]requirement.Requirement{
				parse(t, "six==1.10.0"),
				parse(t, "django==2.1"),
			},
		},
		{
			name:   "findings keep source order",
			target: parse(t, "b==1.0", "c==1.0"),
			sources: [][]requirement.Requirement{
				parse(t, "c>=2", "a", "b>=2"),
			},
			findings: []string{
				"incompatible requirements found, c==1.0 violates constraint c>=2",
				"missing requirement a",
				"incompatible requirements found, b==1.0 violates constraint b>=2",
			},
			errs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := run(t, tt.target, tt.sources...)
			want := tt.findings
			if want == nil {
				want = []string{}
			}
			assert.Equal(t, want, messages(sink))
			assert.Equal(t, tt.errs, sink.Errors)
			assert.Equal(t, tt.warnings, sink.Warnings)
			assert.Equal(t, min(tt.errs, 1), sink.ExitStatus())
		})
	}
}

func TestReconcileMissingShowsOrigin(t *testing.T) {
	src := parse(t, "django")
	src[0].Origin = "-r requirements.in (line 1)"

	sink := run(t, parse(t, "six==1.10.0"), src, parse(t, "six"))
	assert.Equal(t, []string{"missing requirement django from requirements.in (line 1)"}, messages(sink))
}

func TestReconcileMalformedPin(t *testing.T) {
	sink := NewSink(nil, false)
	pins := BuildPins(parse(t, "six==1.9.0,==1.10.0"), sink)
	err := Reconcile(pins, BuildSources([][]requirement.Requirement{parse(t, "six>=1")}, linux), sink)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeMalformedPin))
}

func TestReconcileRepeatedExactClause(t *testing.T) {
	sink := run(t, parse(t, "six==1.10.0,==1.10.0"), parse(t, "six>=1.10"))
	assert.Equal(t, 0, sink.Errors)
}

func TestSink(t *testing.T) {
	var reported []string
	reporter := ReporterFunc(func(f Finding) { reported = append(reported, string(f.Severity)+" "+f.Message) })

	verbose := NewSink(reporter, true)
	assert.False(t, verbose.HasFindings())
	assert.Equal(t, 0, verbose.ExitStatus())

	verbose.Warning(KindUnpinned, requirement.Requirement{Name: "six"}, nil, "%s is unpinned", "six")
	assert.True(t, verbose.HasFindings())
	assert.Equal(t, 0, verbose.ExitStatus())

	verbose.Error(KindMissing, requirement.Requirement{Name: "django"}, nil, "missing requirement %s", "django")
	assert.Equal(t, 1, verbose.ExitStatus())
	assert.Equal(t, []string{"warning six is unpinned", "error missing requirement django"}, reported)

	reported = nil
	quiet := NewSink(reporter, false)
	quiet.Error(KindMissing, requirement.Requirement{Name: "django"}, nil, "missing requirement django")
	assert.Empty(t, reported)
	assert.Equal(t, 1, quiet.Errors)
	assert.Equal(t, 1, quiet.ExitStatus())

	NewSink(nil, true).Record(Finding{Severity: SeverityError})
}

func TestRun(t *testing.T) {
	in := Input{
		Target:       "requirements.txt",
		Requirements: parse(t, "gnureadline==6.6.3", "six==1.9.0"),
		SourceNames:  []string{"requirements.in"},
		Sources:      [][]requirement.Requirement{parse(t, "six==1.10.0")},
	}

	report, err := Run(context.Background(), in, Options{Env: linux})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Warnings)
	assert.Equal(t, 1, report.ExitStatus)
	assert.True(t, report.HasFindings())
	assert.Equal(t, "pincheck found 1 errors and 1 warnings in requirements.txt", report.Summary())
	require.Len(t, report.Findings, 2)
	assert.Equal(t, ReportFinding{
		Severity:  SeverityError,
		Kind:      KindIncompatible,
		Message:   "incompatible requirements found, six==1.9.0 violates constraint six==1.10.0",
		Subject:   "six==1.9.0",
		Reference: "six==1.10.0",
	}, report.Findings[0])
	assert.Equal(t, KindOrphan, report.Findings[1].Kind)
}

func TestRunDuplicateReference(t *testing.T) {
	target := parse(t, "six==1.9.0", "six==1.10.0")
	target[0].Origin = "-r requirements.txt (line 1)"
	target[1].Origin = "-r requirements.txt (line 2)"

	report, err := Run(context.Background(), Input{
		Target:       "requirements.txt",
		Requirements: target,
		SourceNames:  []string{"requirements.in"},
		Sources:      [][]requirement.Requirement{parse(t, "six")},
	}, Options{Env: linux})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, KindDuplicate, report.Findings[0].Kind)
	assert.Equal(t, "six==1.10.0", report.Findings[0].Subject)
	assert.Equal(t, "six==1.9.0", report.Findings[0].Reference)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Input{}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatters(t *testing.T) {
	report, err := Run(context.Background(), Input{
		Target:       "requirements.txt",
		Requirements: parse(t, "six"),
	}, Options{Env: linux})
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatJSON).Format(&buf, report))
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "requirements.txt", decoded["target"])
		assert.EqualValues(t, 2, decoded["warnings"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatYAML).Format(&buf, report))
		assert.Contains(t, buf.String(), "target: requirements.txt")
		assert.Contains(t, buf.String(), "message: six is unpinned")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatText).Format(&buf, report))
		assert.Equal(t, "warning: six is unpinned\n"+
			"warning: six is present but not required by any input requirements\n"+
			"pincheck found 0 errors and 2 warnings in requirements.txt\n", buf.String())
	})
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "JSON": FormatJSON, " yaml ": FormatYAML, "text": FormatText} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
