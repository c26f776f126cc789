// Package manifest extracts declared dependencies from pyproject.toml, the
// packaging manifest used as a source when no *.in file exists.
//
// PEP 621 metadata ([project].dependencies and the selected
// [project.optional-dependencies] groups) is preferred. Projects managed by
// Poetry without PEP 621 metadata fall back to
// [tool.poetry.dependencies], whose caret and tilde ranges are translated
// to PEP 440 clauses.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/reqfile"
	"github.com/matzehuels/pincheck/pkg/requirement"
)

// Filename is the manifest file name recognized as a source.
const Filename = "pyproject.toml"

// IsManifest reports whether path names a pyproject.toml file.
func IsManifest(path string) bool {
	return filepath.Base(path) == Filename
}

type pyproject struct {
	Project struct {
		Name                 string              `toml:"name"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// Load reads the manifest at path. extras selects optional dependency
// groups to include.
func Load(path string, extras []string) ([]requirement.Requirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "could not open manifest %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "could not read manifest %s", path)
	}
	return Parse(data, path, extras)
}

// Parse extracts requirements from manifest content. name labels origins.
func Parse(data []byte, name string, extras []string) ([]requirement.Requirement, error) {
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "could not parse manifest %s", name)
	}

	if doc.Project.Dependencies != nil || doc.Project.OptionalDependencies != nil || doc.Tool.Poetry.Dependencies == nil {
		return fromProject(doc, name, extras)
	}
	return fromPoetry(doc.Tool.Poetry.Dependencies, name)
}

func fromProject(doc pyproject, name string, extras []string) ([]requirement.Requirement, error) {
	out, err := parseEntries(doc.Project.Dependencies, fmt.Sprintf("%s (project.dependencies)", name))
	if err != nil {
		return nil, err
	}
	for _, extra := range extras {
		group, ok := lookupExtra(doc.Project.OptionalDependencies, extra)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidManifest,
				"%s: no optional dependency group %q", name, extra)
		}
		reqs, err := parseEntries(group, fmt.Sprintf("%s (project.optional-dependencies.%s)", name, extra))
		if err != nil {
			return nil, err
		}
		out = append(out, reqs...)
	}
	return out, nil
}

// lookupExtra matches extra names after normalization, as installers do.
func lookupExtra(groups map[string][]string, extra string) ([]string, bool) {
	want := requirement.Normalize(extra)
	for k, v := range groups {
		if requirement.Normalize(k) == want {
			return v, true
		}
	}
	return nil, false
}

func parseEntries(entries []string, origin string) ([]requirement.Requirement, error) {
	out := make([]requirement.Requirement, 0, len(entries))
	for i, entry := range entries {
		req, err := reqfile.ParseLine(entry)
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "%s entry %d: %v", origin, i+1, err)
		}
		req.Origin = origin
		out = append(out, req)
	}
	return out, nil
}

func fromPoetry(deps map[string]any, name string) ([]requirement.Requirement, error) {
	names := make([]string, 0, len(deps))
	for k := range deps {
		if strings.EqualFold(k, "python") {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	origin := fmt.Sprintf("%s (tool.poetry.dependencies)", name)
	var out []requirement.Requirement
	for _, dep := range names {
		constraint, optional, err := poetryConstraint(deps[dep])
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "%s: %s: %v", origin, dep, err)
		}
		if optional {
			continue
		}
		spec, err := translatePoetry(constraint)
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "%s: %s: %v", origin, dep, err)
		}
		out = append(out, requirement.Requirement{Name: dep, Specifier: spec, Origin: origin})
	}
	return out, nil
}

// poetryConstraint reads either `dep = "^1.2"` or `dep = { version = "^1.2" }`.
func poetryConstraint(v any) (constraint string, optional bool, err error) {
	switch t := v.(type) {
	case string:
		return t, false, nil
	case map[string]any:
		opt, _ := t["optional"].(bool)
		if s, ok := t["version"].(string); ok {
			return s, opt, nil
		}
		// git/path/url dependencies carry no version constraint
		return "*", opt, nil
	case []map[string]any:
		// multiple-constraint dependencies; the union is not expressible
		// as one specifier, so only the package itself is required
		return "*", false, nil
	default:
		return "", false, fmt.Errorf("unsupported dependency value %T", v)
	}
}

// translatePoetry converts a Poetry version constraint to PEP 440 clauses.
func translatePoetry(c string) (requirement.Specifier, error) {
	var spec requirement.Specifier
	for _, part := range strings.Split(c, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "" || part == "*":
			continue
		case strings.HasPrefix(part, "^"):
			lower := strings.TrimSpace(part[1:])
			spec = append(spec,
				requirement.Clause{Op: ">=", Version: lower},
				requirement.Clause{Op: "<", Version: caretUpper(lower)})
		case strings.HasPrefix(part, "~") && !strings.HasPrefix(part, "~="):
			lower := strings.TrimSpace(part[1:])
			spec = append(spec,
				requirement.Clause{Op: ">=", Version: lower},
				requirement.Clause{Op: "<", Version: tildeUpper(lower)})
		case strings.IndexAny(part[:1], "<>=!~") == 0:
			s, err := requirement.ParseSpecifier(part)
			if err != nil {
				return nil, err
			}
			spec = append(spec, s...)
		default:
			spec = append(spec, requirement.Clause{Op: "==", Version: part})
		}
	}
	if _, err := requirement.ParseSpecifier(spec.String()); err != nil {
		return nil, err
	}
	return spec, nil
}

// caretUpper bumps the first non-zero component: ^1.2.3 -> 2.0.0,
// ^0.2.3 -> 0.3.0, ^0.0.3 -> 0.0.4.
func caretUpper(v string) string {
	parts := numericParts(v)
	idx := slices.IndexFunc(parts, func(p int) bool { return p != 0 })
	if idx < 0 {
		idx = len(parts) - 1
	}
	return bump(parts, idx)
}

// tildeUpper bumps the minor component, or the major when only one is
// given: ~1.2.3 -> 1.3.0, ~1 -> 2.0.0.
func tildeUpper(v string) string {
	parts := numericParts(v)
	if len(parts) == 1 {
		return bump(parts, 0)
	}
	return bump(parts, 1)
}

func numericParts(v string) []int {
	var parts []int
	for _, p := range strings.Split(v, ".") {
		n := 0
		for _, r := range p {
			if r < '0' || r > '9' {
				break
			}
			n = n*10 + int(r-'0')
		}
		parts = append(parts, n)
	}
	return parts
}

func bump(parts []int, idx int) string {
	out := make([]string, max(len(parts), idx+1))
	for i := range out {
		switch {
		case i < idx:
			out[i] = fmt.Sprint(parts[i])
		case i == idx:
			out[i] = fmt.Sprint(parts[i] + 1)
		default:
			out[i] = "0"
		}
	}
	return strings.Join(out, ".")
}
