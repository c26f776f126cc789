package marker

import (
	"maps"
	"runtime"
	"strings"
)

// DefaultPythonVersion is the interpreter version assumed when none is
// configured. pincheck never runs Python itself.
const DefaultPythonVersion = "3.12"

// Env maps marker variable names to their values in the target environment.
type Env map[string]string

// DefaultEnv describes a CPython interpreter on the host platform.
func DefaultEnv() Env {
	env := Env{
		"os_name":                        "posix",
		"sys_platform":                   runtime.GOOS,
		"platform_system":                titleOS(runtime.GOOS),
		"platform_machine":               machine(runtime.GOOS, runtime.GOARCH),
		"platform_python_implementation": "CPython",
		"platform_release":               "",
		"platform_version":               "",
		"implementation_name":            "cpython",
		"extra":                          "",
	}
	if runtime.GOOS == "windows" {
		env["os_name"] = "nt"
		env["sys_platform"] = "win32"
	}
	return env.WithPython(DefaultPythonVersion)
}

// WithPython returns a copy of env describing the given interpreter version.
// Both "3.11" and "3.11.4" are accepted; python_version always keeps the
// major.minor prefix.
func (e Env) WithPython(version string) Env {
	out := maps.Clone(e)
	if out == nil {
		out = Env{}
	}
	full := version
	if strings.Count(full, ".") < 2 {
		full += ".0"
	}
	parts := strings.SplitN(full, ".", 3)
	out["python_version"] = parts[0] + "." + parts[1]
	out["python_full_version"] = full
	out["implementation_version"] = full
	return out
}

// With returns a copy of env with overrides applied. Empty override values
// are ignored. A python_version override also updates the derived
// version variables unless they are overridden explicitly.
func (e Env) With(overrides map[string]string) Env {
	out := maps.Clone(e)
	if out == nil {
		out = Env{}
	}
	if v := overrides["python_version"]; v != "" {
		out = out.WithPython(v)
	}
	for k, v := range overrides {
		if v == "" || k == "python_version" {
			continue
		}
		out[k] = v
	}
	return out
}

func titleOS(goos string) string {
	switch goos {
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	case "freebsd":
		return "FreeBSD"
	default:
		return goos
	}
}

func machine(goos, goarch string) string {
	switch goarch {
	case "amd64":
		if goos == "windows" {
			return "AMD64"
		}
		return "x86_64"
	case "arm64":
		if goos == "linux" {
			return "aarch64"
		}
		return "arm64"
	case "386":
		return "i686"
	default:
		return goarch
	}
}
