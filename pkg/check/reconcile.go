package check

import (
	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/requirement"
)

// Reconcile cross-references the pins against the source set.
//
// Each source record is looked up by key. A primary record without a pin is
// a missing requirement; a constraint without a pin is skipped. A record
// with a specifier must be satisfied by its pin's exact version. Finally
// every pin whose key no source declares directly is reported as an orphan,
// in pin order.
//
// Reconcile only fails on a pin with conflicting exact clauses, which no
// compile step produces.
func Reconcile(pins *Pins, sources *SourceSet, sink *Sink) error {
	for _, src := range sources.Records {
		pin, ok := pins.Get(src.Key())
		if !ok {
			if !src.Constraint {
				sink.Error(KindMissing, src, nil, "missing requirement %s", requirement.FormatConstraint(src))
			}
			continue
		}
		if src.Specifier.Empty() {
			continue
		}

		version, err := pin.ExactVersion()
		if err != nil {
			return err
		}
		if version == "" {
			// unpinned or URL-based; already reported by BuildPins
			continue
		}
		satisfied, err := src.Specifier.Contains(version)
		if err != nil {
			return errors.Wrap(errors.ErrCodeMalformedPin, err, "%s: cannot compare with %s",
				requirement.Format(pin), requirement.FormatConstraint(src))
		}
		if !satisfied {
			sink.Error(KindIncompatible, pin, &src,
				"incompatible requirements found, %s violates constraint %s",
				requirement.Format(pin), requirement.FormatConstraint(src))
		}
	}

	for key, pin := range pins.All() {
		if !sources.IsPrimary(key) {
			sink.Warning(KindOrphan, pin, nil,
				"%s is present but not required by any input requirements", requirement.Format(pin))
		}
	}
	return nil
}
