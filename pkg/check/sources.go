package check

import (
	"github.com/matzehuels/pincheck/pkg/requirement"
	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

// SourceSet is the merged view of all source files.
type SourceSet struct {
	// Primary holds the keys of every non-constraint requirement, collected
	// before marker filtering so that a conditionally installed package
	// still counts as declared.
	Primary map[string]bool
	// Records are all named source requirements whose marker holds, in
	// file argument order and then declaration order.
	Records []requirement.Requirement
}

// IsPrimary reports whether key was declared directly by a source.
func (s *SourceSet) IsPrimary(key string) bool { return s.Primary[key] }

// BuildSources concatenates the source sequences, collects primary keys and
// drops requirements whose environment marker is false under env. Unnamed
// requirements such as "-e ./src" have no key and are dropped entirely.
func BuildSources(seqs [][]requirement.Requirement, env marker.Env) *SourceSet {
	set := &SourceSet{Primary: make(map[string]bool)}

	var all []requirement.Requirement
	for _, seq := range seqs {
		for _, r := range seq {
			if r.Key() == "" {
				continue
			}
			all = append(all, r)
			if !r.Constraint {
				set.Primary[r.Key()] = true
			}
		}
	}

	for _, r := range all {
		if r.Applies(env) {
			set.Records = append(set.Records, r)
		}
	}
	return set
}
