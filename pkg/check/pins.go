package check

import (
	"iter"

	"github.com/matzehuels/pincheck/pkg/requirement"
)

// Pins maps identity keys to the requirement chosen for them in the target
// file. Keys keep the order in which they were first seen; a later entry for
// an existing key replaces the pin but not its position.
type Pins struct {
	keys []string
	pins map[string]requirement.Requirement
}

// NewPins returns an empty set.
func NewPins() *Pins {
	return &Pins{pins: make(map[string]requirement.Requirement)}
}

// Len returns the number of distinct keys.
func (p *Pins) Len() int { return len(p.keys) }

// Get returns the pin for key.
func (p *Pins) Get(key string) (requirement.Requirement, bool) {
	r, ok := p.pins[key]
	return r, ok
}

// Set stores r under its key and returns the pin it replaced, if any.
func (p *Pins) Set(r requirement.Requirement) (prev requirement.Requirement, replaced bool) {
	key := r.Key()
	prev, replaced = p.pins[key]
	if !replaced {
		p.keys = append(p.keys, key)
	}
	p.pins[key] = r
	return prev, replaced
}

// Keys returns the keys in first-insertion order.
func (p *Pins) Keys() []string {
	return append([]string(nil), p.keys...)
}

// All iterates over key and pin in first-insertion order.
func (p *Pins) All() iter.Seq2[string, requirement.Requirement] {
	return func(yield func(string, requirement.Requirement) bool) {
		for _, k := range p.keys {
			if !yield(k, p.pins[k]) {
				return
			}
		}
	}
}

// BuildPins folds the target requirements into a Pins set, recording
// editable, unpinned and duplicate findings along the way. Requirements
// without a name never occupy a key.
func BuildPins(reqs []requirement.Requirement, sink *Sink) *Pins {
	pins := NewPins()
	for _, r := range reqs {
		if r.Editable && r.Name != "" {
			sink.Warning(KindEditable, r, nil, "%s is editable", requirement.Format(r))
		}
		if r.Key() == "" {
			continue
		}
		if !r.IsPinned() && !r.IsURL() {
			sink.Warning(KindUnpinned, r, nil, "%s is unpinned", requirement.Format(r))
		}
		if prev, replaced := pins.Set(r); replaced {
			sink.Error(KindDuplicate, r, &prev, "%s is a duplicate of %s",
				requirement.Format(r), requirement.Format(prev))
		}
	}
	return pins
}
