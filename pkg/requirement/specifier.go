package requirement

import (
	"fmt"
	"regexp"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// Clause is a single version comparison such as ">=1.10" or "==2.0.*".
type Clause struct {
	Op      string
	Version string
}

func (c Clause) String() string { return c.Op + c.Version }

// IsExact reports whether the clause pins a single version: "==" without a
// trailing wildcard, or arbitrary equality "===".
func (c Clause) IsExact() bool {
	switch c.Op {
	case "===":
		return true
	case "==":
		return !strings.HasSuffix(c.Version, ".*")
	default:
		return false
	}
}

// Specifier is an ordered set of version clauses, all of which must hold.
type Specifier []Clause

var clauseRE = regexp.MustCompile(`^(~=|===|==|!=|<=|>=|<|>)\s*([^\s,;]+)$`)

// ParseSpecifier parses a comma-separated list of clauses. An empty string
// yields an empty specifier.
func ParseSpecifier(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var spec Specifier
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		m := clauseRE.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("invalid version clause %q", part)
		}
		c := Clause{Op: m[1], Version: m[2]}
		if c.Op != "===" {
			if _, err := pep440.Parse(strings.TrimSuffix(c.Version, ".*")); err != nil {
				return nil, fmt.Errorf("invalid version clause %q: %w", part, err)
			}
		}
		spec = append(spec, c)
	}
	return spec, nil
}

func (s Specifier) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Empty reports whether the specifier has no clauses.
func (s Specifier) Empty() bool { return len(s) == 0 }

// ExactVersions returns the versions of all exact clauses, in order.
func (s Specifier) ExactVersions() []string {
	var out []string
	for _, c := range s {
		if c.IsExact() {
			out = append(out, c.Version)
		}
	}
	return out
}

// AllowsPreReleases reports whether an inclusive clause (==, ===, >=, <=
// or ~=) names a pre-release or development version.
func (s Specifier) AllowsPreReleases() bool {
	for _, c := range s {
		switch c.Op {
		case "==", "===", ">=", "<=", "~=":
		default:
			continue
		}
		v, err := pep440.Parse(strings.TrimSuffix(c.Version, ".*"))
		if err == nil && v.IsPreRelease() {
			return true
		}
	}
	return false
}

// Contains reports whether version satisfies every clause. Arbitrary
// equality compares strings; all other clauses use PEP 440 semantics.
// Pre-release versions only match when [Specifier.AllowsPreReleases].
func (s Specifier) Contains(version string) (bool, error) {
	if len(s) > 0 && !s.AllowsPreReleases() {
		if v, err := pep440.Parse(version); err == nil && v.IsPreRelease() {
			return false, nil
		}
	}

	var rest []string
	for _, c := range s {
		if c.Op == "===" {
			if c.Version != version {
				return false, nil
			}
			continue
		}
		rest = append(rest, c.String())
	}
	if len(rest) == 0 {
		return true, nil
	}
	v, err := pep440.Parse(version)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", version, err)
	}
	spec, err := pep440.NewSpecifiers(strings.Join(rest, ","))
	if err != nil {
		return false, err
	}
	return spec.Check(v), nil
}
