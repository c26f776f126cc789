package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for pincheck.

To load completions:

Bash:
  $ source <(pincheck completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ pincheck completion bash > /etc/bash_completion.d/pincheck
  # macOS:
  $ pincheck completion bash > $(brew --prefix)/etc/bash_completion.d/pincheck

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ pincheck completion zsh > "${fpath[1]}/_pincheck"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ pincheck completion fish | source

  # To load completions for each session, execute once:
  $ pincheck completion fish > ~/.config/fish/completions/pincheck.fish

PowerShell:
  PS> pincheck completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> pincheck completion powershell > pincheck.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(c.stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(c.stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(c.stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(c.stdout)
			}
			return nil
		},
	}

	return cmd
}
