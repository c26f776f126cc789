package requirement

import (
	"fmt"

	"github.com/matzehuels/pincheck/pkg/errors"
)

// Kind classifies a requirement for reconciliation.
type Kind int

const (
	// KindUnnamed is a requirement without a resolvable project name, such
	// as "-e ./src" or "./dist/pkg.whl". It never takes part in identity
	// comparisons.
	KindUnnamed Kind = iota
	// KindEditable is a named editable requirement.
	KindEditable
	// KindURL references a direct artifact location instead of a version.
	KindURL
	// KindPinned has at least one exact-equality clause.
	KindPinned
	// KindUnpinned is named but neither pinned nor URL-based.
	KindUnpinned
)

var kindNames = [...]string{
	KindUnnamed:  "unnamed",
	KindEditable: "editable",
	KindURL:      "url",
	KindPinned:   "pinned",
	KindUnpinned: "unpinned",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Classify returns the kind of r.
func Classify(r Requirement) Kind {
	switch {
	case r.Name == "":
		return KindUnnamed
	case r.Editable:
		return KindEditable
	case r.URL != "":
		return KindURL
	case len(r.Specifier.ExactVersions()) > 0:
		return KindPinned
	default:
		return KindUnpinned
	}
}

// IsPinned reports whether r has at least one exact-equality clause.
func (r Requirement) IsPinned() bool {
	return len(r.Specifier.ExactVersions()) > 0
}

// IsURL reports whether r references a direct artifact location. Editable
// requirements always do.
func (r Requirement) IsURL() bool {
	return r.Editable || r.URL != ""
}

// ExactVersion returns the version r is pinned to.
//
// It returns "" when r has no exact clause. Several exact clauses naming
// different versions cannot come out of a compile step and are reported as
// a MALFORMED_PIN error.
func (r Requirement) ExactVersion() (string, error) {
	versions := r.Specifier.ExactVersions()
	if len(versions) == 0 {
		return "", nil
	}
	for _, v := range versions[1:] {
		if v != versions[0] {
			return "", errors.New(errors.ErrCodeMalformedPin,
				"%s pins several versions (%s)", Format(r), r.Specifier)
		}
	}
	return versions[0], nil
}
