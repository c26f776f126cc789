// Package pkg provides the core libraries for pincheck.
//
// # Overview
//
// pincheck checks that a compiled requirements file (the pinned output of
// pip-compile, usually requirements.txt) still agrees with the source files
// it was compiled from (requirements.in, extra *.in files, or the
// dependencies of pyproject.toml). It never resolves or installs anything;
// it only compares what is declared with what is pinned.
//
// # Architecture
//
// The typical data flow:
//
//	requirements.txt        requirements.in / pyproject.toml
//	        ↓                          ↓
//	  [reqfile] package        [reqfile] / [manifest] packages
//	        ↓                          ↓
//	    pins (one per key)     sources (filtered by markers)
//	                 ↘         ↙
//	           [check] package (reconcile)
//	                    ↓
//	         findings → Sink → Report (text/JSON/YAML)
//
// # Quick Start
//
//	pinned, _ := reqfile.ParseFile("requirements.txt")
//	declared, _ := reqfile.ParseFile("requirements.in")
//
//	report, err := check.Run(ctx, check.Input{
//	    Target:       "requirements.txt",
//	    Requirements: pinned,
//	    SourceNames:  []string{"requirements.in"},
//	    Sources:      [][]requirement.Requirement{declared},
//	}, check.Options{})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(report.Summary())
//
// # Main Packages
//
// ## Domain
//
// [requirement] - Requirement records, package key normalization and PEP 440
// specifiers.
//
// [requirement/marker] - PEP 508 environment markers and the environment
// they are evaluated against.
//
// [reqfile] - pip requirements file parser with -r/-c includes.
//
// [manifest] - pyproject.toml dependencies (PEP 621 and Poetry).
//
// [check] - Pins, sources, reconciliation, the findings sink and reports.
//
// ## Infrastructure
//
// [server] - HTTP check service (chi router).
//
// [cache] - Report cache backends: null, file and Redis.
//
// [observability] - Hooks for check runs, cache and HTTP events.
//
// [errors] - Coded errors for fatal conditions.
//
// [buildinfo] - Version information set at build time.
//
// # Testing
//
//	go test ./...                 # All tests
//	go test ./pkg/check/...       # Specific package
//	go test -run Example ./pkg/...
//
// [requirement]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/requirement
// [requirement/marker]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/requirement/marker
// [reqfile]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/reqfile
// [manifest]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/manifest
// [check]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/check
// [server]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/server
// [cache]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/cache
// [observability]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/errors
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/pincheck/pkg/buildinfo
package pkg
