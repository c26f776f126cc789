package requirement

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var separatorRun = regexp.MustCompile(`[-_.]+`)

// Normalize converts a package name to its identity key.
//
// Names are case-folded and every run of "-", "_" and "." collapses to a
// single "-" (PEP 503), so "Foo_Bar", "foo-bar" and "FOO.BAR" share a key.
// Normalize is idempotent and returns "" for an empty name.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return separatorRun.ReplaceAllString(cases.Fold().String(name), "-")
}
