package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewCompletionCmd creates the completion subcommand with shell-specific subcommands.
func NewCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for gatelist.

To load completions:

Bash:
  $ source <(gatelist completion bash)
  # To load completions for each session, execute once:
  $ gatelist completion bash > /etc/bash_completion.d/gatelist

Zsh:
  $ source <(gatelist completion zsh)
  # To load completions for each session, execute once:
  $ gatelist completion zsh > "${fpath[1]}/_gatelist"

Fish:
  $ gatelist completion fish | source
  # To load completions for each session, execute once:
  $ gatelist completion fish > ~/.config/fish/completions/gatelist.fish`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			}
			return nil
		},
	}

	return cmd
}
