// Package requirement defines the parsed requirement record shared by the
// file parsers and the checker, along with identity normalization,
// classification and terminal formatting.
//
// A [Requirement] is immutable once parsed. Its identity key ([Requirement.Key])
// is the normalized package name and is empty exactly when the name is
// unknown, as for "-e ./local/path" or a bare archive path.
package requirement

import (
	"strings"

	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

// Requirement is one parsed requirement line or manifest entry.
type Requirement struct {
	Name       string       // Project name as written; empty if unknown
	Extras     []string     // Requested extras, e.g. [security]
	Specifier  Specifier    // Version clauses; empty if none
	URL        string       // Direct URL or path for URL-based and editable requirements
	Editable   bool         // Declared with -e / --editable
	Constraint bool         // Declared in a -c constraints file
	Marker     *marker.Expr // Environment condition; nil means always applies
	Origin     string       // Provenance, e.g. "-r requirements.in (line 3)"
}

// Key returns the identity key used for all comparisons.
func (r Requirement) Key() string {
	return Normalize(r.Name)
}

// Applies reports whether the requirement's environment marker holds in env.
func (r Requirement) Applies(env marker.Env) bool {
	return r.Marker.Evaluate(env)
}

// String renders the requirement as [Format] does.
func (r Requirement) String() string {
	return Format(r)
}

// Format renders a requirement for terminal output:
//
//	six==1.10.0
//	requests[security]>=2.0; python_version < "3.8"
//	-e git+https://github.com/org/pkg.git#egg=pkg
//	pkg @ https://example.com/pkg-1.0.tar.gz
func Format(r Requirement) string {
	var b strings.Builder
	switch {
	case r.Editable:
		b.WriteString("-e ")
		b.WriteString(r.URL)
	case r.URL != "" && r.Name != "":
		b.WriteString(strings.ToLower(r.Name))
		writeExtras(&b, r.Extras)
		b.WriteString(" @ ")
		b.WriteString(r.URL)
	case r.URL != "":
		b.WriteString(r.URL)
	default:
		b.WriteString(strings.ToLower(r.Name))
		writeExtras(&b, r.Extras)
		b.WriteString(strings.ToLower(r.Specifier.String()))
	}
	if r.Marker != nil {
		if r.URL != "" {
			b.WriteString(" ")
		}
		b.WriteString("; ")
		b.WriteString(r.Marker.String())
	}
	return b.String()
}

// FormatConstraint renders a source requirement together with where it was
// declared, stripping the "-r "/"-c " flag from the origin:
//
//	six>=1.10.0 from constraints.txt (line 1)
func FormatConstraint(r Requirement) string {
	s := Format(r)
	if origin := FormatOrigin(r.Origin); origin != "" {
		s += " from " + origin
	}
	return s
}

// FormatOrigin strips the pip flag prefix from an origin string.
func FormatOrigin(origin string) string {
	if strings.HasPrefix(origin, "-r ") || strings.HasPrefix(origin, "-c ") {
		return origin[3:]
	}
	return origin
}

func writeExtras(b *strings.Builder, extras []string) {
	if len(extras) == 0 {
		return
	}
	b.WriteString("[")
	b.WriteString(strings.ToLower(strings.Join(extras, ",")))
	b.WriteString("]")
}
