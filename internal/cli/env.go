package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

// envCommand creates the env command, which prints the marker environment
// that requirement markers are evaluated against.
func (c *CLI) envCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the marker environment",
		Long: `Print the PEP 508 marker variables used to evaluate markers such as
sys_platform == "win32". Values come from the host platform, the config
file, PINCHECK_* variables and flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd, checkFlagKeys)
			if err != nil {
				return err
			}
			env := cfg.MarkerEnv()
			printTitle(c.stdout, "Marker environment")
			for _, name := range marker.Variables {
				if name == "extra" {
					continue
				}
				printKeyValue(c.stdout, name, env[name])
			}
			return nil
		},
	}

	cmd.Flags().String("python-version", "", "python_version the markers are evaluated for")
	cmd.Flags().String("sys-platform", "", "sys_platform the markers are evaluated for")

	return cmd
}
