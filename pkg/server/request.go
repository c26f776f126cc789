package server

import (
	"path"
	"sort"

	"github.com/matzehuels/pincheck/pkg/check"
	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/manifest"
	"github.com/matzehuels/pincheck/pkg/reqfile"
	"github.com/matzehuels/pincheck/pkg/requirement"
	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

// Document is a named in-memory file.
type Document struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// CheckRequest is the body of POST /v1/check.
type CheckRequest struct {
	Requirements Document          `json:"requirements"`
	Sources      []Document        `json:"sources"`
	Documents    []Document        `json:"documents,omitempty"` // Include targets only
	Extras       []string          `json:"extras,omitempty"`    // pyproject optional dependency groups
	Env          map[string]string `json:"env,omitempty"`       // Marker variable overrides
}

// documents validates every document name and indexes contents by cleaned
// name.
func (req *CheckRequest) documents() (map[string]string, error) {
	all := append([]Document{req.Requirements}, req.Sources...)
	all = append(all, req.Documents...)

	docs := make(map[string]string, len(all))
	for _, d := range all {
		if err := errors.ValidateDocumentName(d.Name); err != nil {
			return nil, err
		}
		name := path.Clean(d.Name)
		if prev, ok := docs[name]; ok && prev != d.Content {
			return nil, errors.New(errors.ErrCodeInvalidInput, "document %s given twice with different content", name)
		}
		docs[name] = d.Content
	}
	return docs, nil
}

// env applies the request's marker overrides to base.
func (req *CheckRequest) env(base marker.Env) (marker.Env, error) {
	keys := make([]string, 0, len(req.Env))
	for k := range req.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !marker.IsVariable(k) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "unknown marker variable %q", k)
		}
	}
	return base.With(req.Env), nil
}

// input parses the request documents into a check input.
func (req *CheckRequest) input() (check.Input, error) {
	if len(req.Sources) == 0 {
		return check.Input{}, errors.New(errors.ErrCodeInvalidInput, "at least one source document is required")
	}
	if err := errors.ValidateTargetFilename(req.Requirements.Name); err != nil {
		return check.Input{}, err
	}
	docs, err := req.documents()
	if err != nil {
		return check.Input{}, err
	}
	parser := reqfile.NewParser(reqfile.MapOpener(docs))

	in := check.Input{Target: req.Requirements.Name}
	if in.Requirements, err = parser.ParseFile(req.Requirements.Name); err != nil {
		return check.Input{}, err
	}

	for _, src := range req.Sources {
		var reqs []requirement.Requirement
		switch {
		case path.Base(src.Name) == "setup.py":
			return check.Input{}, errors.New(errors.ErrCodeInvalidInput,
				"setup.py cannot be evaluated; submit pyproject.toml instead")
		case manifest.IsManifest(src.Name):
			reqs, err = manifest.Parse([]byte(src.Content), src.Name, req.Extras)
		default:
			reqs, err = parser.ParseFile(src.Name)
		}
		if err != nil {
			return check.Input{}, err
		}
		in.SourceNames = append(in.SourceNames, src.Name)
		in.Sources = append(in.Sources, reqs)
	}
	return in, nil
}
