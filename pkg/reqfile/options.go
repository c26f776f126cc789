package reqfile

import (
	"fmt"
	"strings"
)

// optionArity maps every accepted option line to whether it takes an
// argument. Options other than includes and editables are ignored.
var optionArity = map[string]bool{
	"-r":                true,
	"--requirement":     true,
	"-c":                true,
	"--constraint":      true,
	"-e":                true,
	"--editable":        true,
	"-i":                true,
	"--index-url":       true,
	"--extra-index-url": true,
	"-f":                true,
	"--find-links":      true,
	"--no-binary":       true,
	"--only-binary":     true,
	"--trusted-host":    true,
	"--use-feature":     true,
	"--no-index":        false,
	"--pre":             false,
	"--prefer-binary":   false,
	"--require-hashes":  false,
}

// splitOption splits an option line into the option and its argument,
// accepting "-r file", "-rfile", "--requirement file" and
// "--requirement=file".
func splitOption(line string) (opt, arg string, err error) {
	fields := strings.Fields(line)
	head := fields[0]

	if strings.HasPrefix(head, "--") {
		if name, value, ok := strings.Cut(head, "="); ok {
			head = name
			arg = value
			if len(fields) > 1 {
				arg = strings.TrimSpace(value + " " + strings.Join(fields[1:], " "))
			}
		} else if len(fields) > 1 {
			arg = strings.TrimSpace(strings.TrimPrefix(line, head))
		}
	} else if len(head) > 2 {
		arg = strings.TrimSpace(line[2:])
		head = head[:2]
	} else if len(fields) > 1 {
		arg = strings.TrimSpace(strings.TrimPrefix(line, head))
	}

	takesArg, known := optionArity[head]
	if !known {
		return "", "", fmt.Errorf("unknown option %q", head)
	}
	if takesArg && arg == "" {
		return "", "", fmt.Errorf("option %s requires an argument", head)
	}
	return head, arg, nil
}

// stripRequirementOptions drops per-requirement options such as
// "--hash=sha256:..." that follow a requirement on the same line.
func stripRequirementOptions(line string) string {
	if i := strings.Index(line, " --"); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	if i := strings.Index(line, "\t--"); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return line
}
