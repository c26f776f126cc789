// Package marker parses and evaluates PEP 508 environment markers.
//
// A marker is the condition after ";" in a requirement line, for example
//
//	pywin32==306; sys_platform == "win32"
//	tomli>=1.1; python_version < "3.11" and implementation_name == "cpython"
//
// Markers are parsed once into an [Expr] and evaluated against an [Env],
// which maps marker variable names to the values of the target interpreter.
// Version-like comparisons use PEP 440 ordering; everything else compares
// strings.
package marker

import (
	"fmt"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// Variables lists the marker variables defined by PEP 508.
var Variables = []string{
	"os_name",
	"sys_platform",
	"platform_machine",
	"platform_python_implementation",
	"platform_release",
	"platform_system",
	"platform_version",
	"python_version",
	"python_full_version",
	"implementation_name",
	"implementation_version",
	"extra",
}

var knownVariable = func() map[string]bool {
	m := make(map[string]bool, len(Variables))
	for _, v := range Variables {
		m[v] = true
	}
	return m
}()

// IsVariable reports whether name is one of [Variables].
func IsVariable(name string) bool { return knownVariable[name] }

// legacy spellings accepted by older tools.
var aliases = map[string]string{
	"os.name":                        "os_name",
	"sys.platform":                   "sys_platform",
	"platform.version":               "platform_version",
	"platform.machine":               "platform_machine",
	"platform.python_implementation": "platform_python_implementation",
	"python_implementation":          "platform_python_implementation",
}

// Expr is a parsed marker expression.
type Expr struct {
	root node
}

// Parse parses a marker expression.
func Parse(s string) (*Expr, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected %q in marker", p.peek().text)
	}
	return &Expr{root: root}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level marker constants.
func MustParse(s string) *Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

// Evaluate reports whether the marker holds in env. A nil Expr always holds.
func (e *Expr) Evaluate(env Env) bool {
	if e == nil || e.root == nil {
		return true
	}
	return e.root.eval(env)
}

// String renders the marker in canonical form, with double-quoted strings.
func (e *Expr) String() string {
	if e == nil || e.root == nil {
		return ""
	}
	return e.root.String()
}

// =============================================================================
// AST
// =============================================================================

type node interface {
	eval(Env) bool
	String() string
}

type boolNode struct {
	op          string // "and" | "or"
	left, right node
}

func (n *boolNode) eval(env Env) bool {
	if n.op == "and" {
		return n.left.eval(env) && n.right.eval(env)
	}
	return n.left.eval(env) || n.right.eval(env)
}

func (n *boolNode) String() string {
	return n.side(n.left) + " " + n.op + " " + n.side(n.right)
}

// side parenthesizes "or" operands nested under "and".
func (n *boolNode) side(c node) string {
	if b, ok := c.(*boolNode); ok && b.op == "or" && n.op == "and" {
		return "(" + b.String() + ")"
	}
	return c.String()
}

type operand struct {
	value    string
	variable bool
}

func (o operand) resolve(env Env) string {
	if o.variable {
		return env[o.value]
	}
	return o.value
}

func (o operand) String() string {
	if o.variable {
		return o.value
	}
	return `"` + o.value + `"`
}

type compareNode struct {
	op       string
	lhs, rhs operand
}

func (n *compareNode) String() string {
	return n.lhs.String() + " " + n.op + " " + n.rhs.String()
}

func (n *compareNode) eval(env Env) bool {
	lhs, rhs := n.lhs.resolve(env), n.rhs.resolve(env)
	if n.lhs.value == "extra" && n.lhs.variable || n.rhs.value == "extra" && n.rhs.variable {
		lhs, rhs = normalizeExtra(lhs), normalizeExtra(rhs)
	}

	switch n.op {
	case "in":
		return strings.Contains(rhs, lhs)
	case "not in":
		return !strings.Contains(rhs, lhs)
	}

	if ok, matched := compareVersions(n.op, lhs, rhs); ok {
		return matched
	}

	switch n.op {
	case "==", "===":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	}
	// Ordering on non-versions is undefined; treat as not satisfied.
	return false
}

// compareVersions evaluates lhs op rhs with PEP 440 semantics. ok is false
// when either side is not a valid version.
func compareVersions(op, lhs, rhs string) (ok, matched bool) {
	if op == "===" {
		return false, false
	}
	v, err := pep440.Parse(lhs)
	if err != nil {
		return false, false
	}
	spec, err := pep440.NewSpecifiers(op + rhs)
	if err != nil {
		return false, false
	}
	return true, spec.Check(v)
}

func normalizeExtra(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("_", "-", ".", "-").Replace(s)
}
