package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *CLI) newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [targets...]",
		Short: "Print the identity hash of each target's output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashes, err := c.app.Hashes(cmd.Context(), args)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, h := range hashes {
				state := "missing"
				if h.Done {
					state = "cached"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", h.Step, h.Hash, state)
			}
			return w.Flush()
		},
	}
}

func (c *CLI) newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [targets...]",
		Short: "Check that nothing the targets depend on changed while hashing",
		Long: `Verify hashes the current inputs of the targets, then hashes them again and
fails if any identity differs, for example because an input file was edited
while rebuild was reading it.

It re-checks the identities of the current inputs only. It does not read or
audit the values already stored in the cache.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Verify(cmd.Context(), args); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func (c *CLI) newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the values in the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := c.app.Entries(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, e := range entries {
				step, run := "-", "-"
				if e.Info != nil {
					step = e.Info.Step
					run = e.Info.RunID
				}
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Hash.Short(), e.Size, step, run)
			}
			return w.Flush()
		},
	}
}

func (c *CLI) newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove every cached value and build record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Clean(cmd.Context())
		},
	}
}
