package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/rebuild/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [targets...]",
		Short: "Bring steps up to date and print their outputs",
		Long:  "Bring steps up to date and print their outputs. The target \"all\" selects every step.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			force, _ := cmd.Flags().GetBool("force")
			quiet, _ := cmd.Flags().GetBool("quiet")
			jobs, _ := cmd.Flags().GetInt("jobs")
			return c.app.Run(cmd.Context(), args, app.RunOptions{
				Force:       force,
				Parallelism: jobs,
				Quiet:       quiet,
			})
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Run every step, bypassing the cache")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print the outputs of the targets")
	cmd.Flags().IntP("jobs", "j", 0, "Maximum number of steps run at once (0 uses the configured value)")
	return cmd
}
