package reqfile

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/matzehuels/pincheck/pkg/requirement"
	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

var (
	nameRE = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)\s*(?:\[([^\]]*)\])?\s*(.*)$`)
	eggRE  = regexp.MustCompile(`[#&]egg=([A-Za-z0-9][A-Za-z0-9._-]*)`)
)

var vcsPrefixes = []string{"git+", "hg+", "svn+", "bzr+"}

var archiveSuffixes = []string{".whl", ".tar.gz", ".tgz", ".tar.bz2", ".zip"}

// ParseLine parses a single PEP 508 requirement (without pip options):
//
//	six==1.10.0
//	requests[security] >=2.0, <3; python_version >= "3.8"
//	pkg @ https://example.com/pkg-1.0.tar.gz
//	git+https://github.com/org/pkg.git#egg=pkg
//	./vendor/pkg-1.0.whl
//
// The returned requirement has no Origin; callers set it.
func ParseLine(line string) (requirement.Requirement, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return requirement.Requirement{}, fmt.Errorf("empty requirement")
	}

	if isURLOrPath(line) {
		return parseDirect(line)
	}

	if at := strings.Index(line, "@"); at >= 0 && !strings.ContainsAny(line[:at], "<>=!~;") {
		return parseNamedURL(line[:at], strings.TrimSpace(line[at+1:]), line)
	}

	spec, markerText := splitMarker(line, false)

	m := nameRE.FindStringSubmatch(spec)
	if m == nil {
		return requirement.Requirement{}, fmt.Errorf("invalid requirement %q", line)
	}
	req := requirement.Requirement{Name: m[1], Extras: splitExtras(m[2])}

	rest := strings.TrimSpace(m[3])
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		rest = rest[1 : len(rest)-1]
	}
	s, err := requirement.ParseSpecifier(rest)
	if err != nil {
		return requirement.Requirement{}, fmt.Errorf("invalid requirement %q: %w", line, err)
	}
	req.Specifier = s

	if req.Marker, err = parseMarker(markerText); err != nil {
		return requirement.Requirement{}, fmt.Errorf("invalid requirement %q: %w", line, err)
	}
	return req, nil
}

// parseEditable parses the argument of -e / --editable.
func parseEditable(arg string) (requirement.Requirement, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return requirement.Requirement{}, fmt.Errorf("missing argument to --editable")
	}
	location, markerText := splitMarker(arg, true)
	req := requirement.Requirement{
		Name:     eggName(location),
		URL:      location,
		Editable: true,
	}
	var err error
	if req.Marker, err = parseMarker(markerText); err != nil {
		return requirement.Requirement{}, fmt.Errorf("invalid editable requirement %q: %w", arg, err)
	}
	return req, nil
}

func parseDirect(line string) (requirement.Requirement, error) {
	location, markerText := splitMarker(line, true)
	req := requirement.Requirement{Name: eggName(location), URL: location}
	var err error
	if req.Marker, err = parseMarker(markerText); err != nil {
		return requirement.Requirement{}, fmt.Errorf("invalid requirement %q: %w", line, err)
	}
	return req, nil
}

func parseNamedURL(head, tail, line string) (requirement.Requirement, error) {
	m := nameRE.FindStringSubmatch(strings.TrimSpace(head))
	if m == nil || strings.TrimSpace(m[3]) != "" {
		return requirement.Requirement{}, fmt.Errorf("invalid requirement %q", line)
	}
	location, markerText := splitMarker(tail, true)
	if location == "" {
		return requirement.Requirement{}, fmt.Errorf("invalid requirement %q: missing URL", line)
	}
	if _, err := url.Parse(location); err != nil {
		return requirement.Requirement{}, fmt.Errorf("invalid requirement %q: %w", line, err)
	}
	req := requirement.Requirement{Name: m[1], Extras: splitExtras(m[2]), URL: location}
	var err error
	if req.Marker, err = parseMarker(markerText); err != nil {
		return requirement.Requirement{}, fmt.Errorf("invalid requirement %q: %w", line, err)
	}
	return req, nil
}

// splitMarker separates the marker after ";". In URL context the separator
// must be preceded by whitespace, since ";" is legal inside URLs.
func splitMarker(s string, urlContext bool) (head, markerText string) {
	sep := ";"
	if urlContext {
		sep = " ;"
	}
	if i := strings.Index(s, sep); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(sep):])
	}
	return strings.TrimSpace(s), ""
}

func parseMarker(text string) (*marker.Expr, error) {
	if text == "" {
		return nil, nil
	}
	return marker.Parse(text)
}

func isURLOrPath(s string) bool {
	if strings.Contains(s, "://") {
		head := s[:strings.Index(s, "://")]
		// "name @ https://..." is a named URL requirement
		return !strings.Contains(head, "@")
	}
	for _, p := range vcsPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	if strings.HasPrefix(s, "file:") || strings.HasPrefix(s, ".") || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~") {
		return true
	}
	first := strings.Fields(s)[0]
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(first, suffix) {
			return true
		}
	}
	return strings.ContainsAny(first, "/\\") && !strings.Contains(s, "@")
}

func eggName(location string) string {
	if m := eggRE.FindStringSubmatch(location); m != nil {
		return m[1]
	}
	return ""
}

func splitExtras(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
