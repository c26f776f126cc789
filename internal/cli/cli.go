package cli

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/matzehuels/pincheck/pkg/buildinfo"
	"github.com/matzehuels/pincheck/pkg/errors"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories, config files
	// and display.
	appName = "pincheck"

	// Exit statuses.
	ExitOK          = 0
	ExitFailure     = 1 // Error findings or a fatal error
	ExitUsage       = 2
	ExitInterrupted = 130 // Standard shell convention for SIGINT
)

// ErrFindings is returned when a check produced error-severity findings. The
// findings themselves have already been reported.
var ErrFindings = stderrors.New("check failed")

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	config *viper.Viper

	verbose    int
	quiet      int
	configFile string
}

// New creates a CLI reading from stdin and writing reports to stdout and
// logs to stderr.
func New(stdin io.Reader, stdout, stderr io.Writer) *CLI {
	return &CLI{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		config: newViper(),
	}
}

// verbosity is the number of -v flags minus the number of -q flags.
func (c *CLI) verbosity() int {
	return c.verbose - c.quiet
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := c.checkCommand()
	root.Version = buildinfo.Version
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.SetVersionTemplate(buildinfo.Template())
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	flags := root.PersistentFlags()
	flags.CountVarP(&c.verbose, "verbose", "v", "show more output")
	flags.CountVarP(&c.quiet, "quiet", "q", "give less output")
	flags.StringVar(&c.configFile, "config", "", "config file (default ./pincheck.toml or ~/pincheck.toml)")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Wrap(errors.ErrCodeUsage, err, "invalid usage")
	})

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loadEnvFiles()
		logger := newLogger(c.stderr, levelFor(c.verbosity()))
		cmd.SetContext(withLogger(cmd.Context(), logger))
		return nil
	}

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.envCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// Execute runs the command line args and returns the error that ended the
// run, if any. Use ExitCode and ErrorMessage to report it.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.RootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// loadConfig binds flags of cmd and loads the configuration.
func (c *CLI) loadConfig(cmd *cobra.Command, keys map[string]string) (*Config, error) {
	if err := bindFlags(c.config, cmd.Flags(), keys); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "could not bind flags")
	}
	return loadConfig(c.config, c.configFile)
}

// =============================================================================
// Exit Status
// =============================================================================

// ExitCode maps the error returned by Execute to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case stderrors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, errors.ErrCodeUsage):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// ErrorMessage returns the line to print for the error returned by Execute,
// or "" if nothing should be printed.
func ErrorMessage(err error) string {
	switch {
	case err == nil, stderrors.Is(err, ErrFindings), stderrors.Is(err, context.Canceled):
		return ""
	case errors.Is(err, errors.ErrCodeUsage):
		return "Error: " + errors.UserMessage(err) + "\nTry '" + appName + " --help' for help."
	case errors.GetCode(err) != "":
		return "Error: " + errors.UserMessage(err)
	default:
		return "Error: " + err.Error()
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/pincheck/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
