// Package reqfile parses pip requirements files into requirement records.
//
// It understands the subset of the pip file format that matters for
// checking a compiled requirements file against its sources:
//
//   - one requirement per line, "#" comments, "\" line continuations
//   - -r / --requirement includes, resolved relative to the including file
//   - -c / --constraint includes, whose entries are marked as constraints
//   - -e / --editable requirements
//   - global options (--index-url, --find-links, --pre, ...), which are
//     accepted and ignored, and per-requirement options such as --hash
//
// Include cycles and unknown options are fatal errors, as are malformed
// requirement lines. Every error identifies the offending file and line.
package reqfile

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/requirement"
)

// Stdin is the file name that denotes standard input.
const Stdin = "-"

// Opener opens a named requirements file for reading.
type Opener func(name string) (io.ReadCloser, error)

// OSOpener opens files from the local file system.
func OSOpener(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// MapOpener serves files from an in-memory set of documents keyed by
// cleaned slash-separated path.
func MapOpener(docs map[string]string) Opener {
	return func(name string) (io.ReadCloser, error) {
		content, ok := docs[filepath.ToSlash(filepath.Clean(name))]
		if !ok {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

// Parser reads requirements files through an Opener.
type Parser struct {
	open Opener
}

// NewParser creates a parser. A nil opener reads from the local file system.
func NewParser(open Opener) *Parser {
	if open == nil {
		open = OSOpener
	}
	return &Parser{open: open}
}

// ParseFile parses the requirements file at path, following includes.
func ParseFile(path string) ([]requirement.Requirement, error) {
	return NewParser(nil).ParseFile(path)
}

// ParseFile parses the named file, following includes.
func (p *Parser) ParseFile(name string) ([]requirement.Requirement, error) {
	return p.parseFile(name, false, nil)
}

// Parse parses requirements from r. name labels origins and anchors
// relative includes; use [Stdin] for standard input, whose includes resolve
// against the working directory.
func (p *Parser) Parse(r io.Reader, name string) ([]requirement.Requirement, error) {
	return p.parse(r, name, false, []string{name})
}

func (p *Parser) parseFile(name string, constraint bool, stack []string) ([]requirement.Requirement, error) {
	clean := filepath.Clean(name)
	if slices.Contains(stack, clean) {
		return nil, errors.New(errors.ErrCodeIncludeCycle,
			"%s: include cycle: %s", clean, strings.Join(append(stack, clean), " -> "))
	}

	f, err := p.open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "could not open requirements file %s", name)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "could not read requirements file %s", name)
	}
	defer f.Close()

	return p.parse(f, name, constraint, append(stack, clean))
}

func (p *Parser) parse(r io.Reader, name string, constraint bool, stack []string) ([]requirement.Requirement, error) {
	lines, err := logicalLines(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "could not read requirements file %s", name)
	}

	flag := "-r"
	if constraint {
		flag = "-c"
	}

	var result []requirement.Requirement
	for _, l := range lines {
		origin := fmt.Sprintf("%s %s (line %d)", flag, displayName(name), l.number)

		if strings.HasPrefix(l.text, "-") {
			opt, arg, err := splitOption(l.text)
			if err != nil {
				return nil, errors.New(errors.ErrCodeInvalidRequirement, "%s: %v", origin[3:], err)
			}
			switch opt {
			case "-r", "--requirement", "-c", "--constraint":
				// Everything below a constraints file stays a constraint.
				nested, err := p.parseFile(p.resolve(name, arg), constraint || opt == "-c" || opt == "--constraint", stack)
				if err != nil {
					return nil, err
				}
				result = append(result, nested...)
			case "-e", "--editable":
				req, err := parseEditable(arg)
				if err != nil {
					return nil, errors.New(errors.ErrCodeInvalidRequirement, "%s: %v", origin[3:], err)
				}
				req.Constraint = constraint
				req.Origin = origin
				result = append(result, req)
			}
			continue
		}

		req, err := ParseLine(stripRequirementOptions(l.text))
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidRequirement, "%s: %v", origin[3:], err)
		}
		req.Constraint = constraint
		req.Origin = origin
		result = append(result, req)
	}
	return result, nil
}

// resolve locates an included file relative to the including one.
func (p *Parser) resolve(parent, include string) string {
	if filepath.IsAbs(include) || parent == Stdin {
		return include
	}
	return filepath.Join(filepath.Dir(parent), include)
}

func displayName(name string) string {
	if name == Stdin {
		return "<stdin>"
	}
	return name
}

type logicalLine struct {
	number int
	text   string
}

// logicalLines joins continuations, strips comments and drops blank lines.
// Each logical line keeps the number of its first physical line.
func logicalLines(r io.Reader) ([]logicalLine, error) {
	var (
		out     []logicalLine
		pending strings.Builder
		start   int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if pending.Len() == 0 {
			start = n
		}
		if strings.HasSuffix(line, "\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			continue
		}
		pending.WriteString(line)
		if text := stripComment(pending.String()); text != "" {
			out = append(out, logicalLine{number: start, text: text})
		}
		pending.Reset()
	}
	if pending.Len() > 0 {
		if text := stripComment(pending.String()); text != "" {
			out = append(out, logicalLine{number: start, text: text})
		}
	}
	return out, scanner.Err()
}

// stripComment removes a "#" comment that starts the line or follows
// whitespace, so URL fragments like "#egg=pkg" survive.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
			line = line[:i]
			break
		}
	}
	return strings.TrimSpace(line)
}
