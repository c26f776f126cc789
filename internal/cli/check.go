package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pincheck/pkg/check"
	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/manifest"
	"github.com/matzehuels/pincheck/pkg/reqfile"
	"github.com/matzehuels/pincheck/pkg/requirement"
)

const (
	defaultRequirementsFile = "requirements.txt"
	defaultSourceFile       = "requirements.in"
)

type checkOptions struct {
	sourceFiles []string
}

// checkCommand creates the root command, which checks REQ_FILE.
func (c *CLI) checkCommand() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   appName + " [REQ_FILE]",
		Short: "Check that a compiled requirements file matches its sources",
		Long: `Checks whether requirements.txt (or REQ_FILE) is in line with
requirements.in, or the given source files.

Every source requirement must be pinned, every pin must satisfy the
specifiers of the sources that name it, and every pin must be required by
some source. Use - as REQ_FILE to read the compiled file from stdin.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return errors.New(errors.ErrCodeUsage, "got unexpected extra arguments (%s)", strings.Join(args[1:], " "))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var reqFile string
			if len(args) > 0 {
				reqFile = args[0]
			}
			return c.runCheck(cmd, reqFile, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.sourceFiles, "source-file", "s", nil, "source file the requirements were compiled from (repeatable)")
	flags.String("format", "text", "report format: text, json or yaml")
	flags.StringSlice("extra", nil, "pyproject.toml optional dependency group to include (repeatable)")
	flags.String("python-version", "", "python_version the markers are evaluated for (default 3.12)")
	flags.String("sys-platform", "", "sys_platform the markers are evaluated for (default host platform)")

	return cmd
}

var checkFlagKeys = map[string]string{
	"format":         "format",
	"extra":          "extras",
	"python-version": "python_version",
	"sys-platform":   "sys_platform",
}

func (c *CLI) runCheck(cmd *cobra.Command, reqFile string, opts checkOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig(cmd, checkFlagKeys)
	if err != nil {
		return err
	}
	format, err := check.ParseFormat(cfg.Format)
	if err != nil {
		return errors.Wrap(errors.ErrCodeUsage, err, "invalid --format")
	}

	reqFile, sourceFiles, err := resolveFiles(reqFile, opts.sourceFiles)
	if err != nil {
		return err
	}
	logger.Debug("Checking", "req_file", reqFile, "sources", sourceFiles, "config", cfg.ConfigFile)

	prog := newProgress(logger)
	in, err := c.readInput(reqFile, sourceFiles, cfg.Extras)
	if err != nil {
		return err
	}
	prog.done("Parsed " + strings.Join(append([]string{in.Target}, in.SourceNames...), ", "))

	text := format == check.FormatText
	report, err := check.Run(ctx, in, check.Options{
		Env:      cfg.MarkerEnv(),
		Reporter: check.LogReporter(logger),
		Verbose:  text && c.verbosity() >= 0,
	})
	if err != nil {
		return err
	}

	if !text {
		if err := check.NewFormatter(format).Format(c.stdout, report); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "could not write report")
		}
	}

	if report.HasFindings() {
		logger.Info(report.Summary())
		logger.Infof("Use %s to fix these", cfg.CompileCommand)
	} else {
		logger.Debug(report.Summary())
	}

	if report.ExitStatus != ExitOK {
		return ErrFindings
	}
	return nil
}

// readInput parses reqFile and the source files.
func (c *CLI) readInput(reqFile string, sourceFiles []string, extras []string) (check.Input, error) {
	parser := reqfile.NewParser(nil)

	in := check.Input{Target: reqFile}
	var err error
	if reqFile == reqfile.Stdin {
		in.Target = "<stdin>"
		in.Requirements, err = parser.Parse(c.stdin, reqfile.Stdin)
	} else {
		in.Requirements, err = parser.ParseFile(reqFile)
	}
	if err != nil {
		return check.Input{}, err
	}

	for _, src := range sourceFiles {
		var reqs []requirement.Requirement
		if manifest.IsManifest(src) {
			reqs, err = manifest.Load(src, extras)
		} else {
			reqs, err = parser.ParseFile(src)
		}
		if err != nil {
			return check.Input{}, err
		}
		in.SourceNames = append(in.SourceNames, src)
		in.Sources = append(in.Sources, reqs)
	}
	return in, nil
}

// =============================================================================
// File Discovery
// =============================================================================

// resolveFiles applies the default file rules: requirements.txt as
// REQ_FILE, and <base>.in (requirements.in for stdin) or pyproject.toml as
// the source.
func resolveFiles(reqFile string, sourceFiles []string) (string, []string, error) {
	for _, src := range sourceFiles {
		if filepath.Base(src) == "setup.py" {
			return "", nil, errors.New(errors.ErrCodeUsage,
				"setup.py cannot be used as a source file; use pyproject.toml instead")
		}
		if !exists(src) {
			return "", nil, errors.New(errors.ErrCodeUsage,
				"invalid value for '-s' / '--source-file': path %q does not exist", src)
		}
	}

	if reqFile == "" {
		if len(sourceFiles) > 1 {
			return "", nil, errors.New(errors.ErrCodeUsage,
				"REQ_FILE is required if two or more source files are given")
		}
		if !exists(defaultRequirementsFile) {
			return "", nil, errors.New(errors.ErrCodeUsage,
				"No requirement file given and no %s found in the current directory", defaultRequirementsFile)
		}
		reqFile = defaultRequirementsFile
	} else if reqFile != reqfile.Stdin && !exists(reqFile) {
		return "", nil, errors.New(errors.ErrCodeUsage,
			"invalid value for 'REQ_FILE': path %q does not exist", reqFile)
	}

	if err := errors.ValidateTargetFilename(reqFile); err != nil {
		return "", nil, err
	}

	if len(sourceFiles) > 0 {
		return reqFile, sourceFiles, nil
	}

	if reqFile == reqfile.Stdin {
		switch {
		case exists(defaultSourceFile):
			return reqFile, []string{defaultSourceFile}, nil
		case exists(manifest.Filename):
			return reqFile, []string{manifest.Filename}, nil
		}
		return "", nil, errors.New(errors.ErrCodeUsage,
			"If input is from stdin, the default is %s or %s", defaultSourceFile, manifest.Filename)
	}

	src := strings.TrimSuffix(reqFile, filepath.Ext(reqFile)) + ".in"
	switch {
	case exists(src):
		return reqFile, []string{src}, nil
	case exists(manifest.Filename):
		return reqFile, []string{manifest.Filename}, nil
	}
	return "", nil, errors.New(errors.ErrCodeUsage,
		"If you do not specify a source file, the default is %s or %s", src, manifest.Filename)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
