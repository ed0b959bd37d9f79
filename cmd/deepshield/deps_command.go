package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deepshield/internal/deps"
	"deepshield/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check analysis binaries, collaborator endpoints, and directory access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderSectionHeader("Binaries", colorize))
			statuses := preflight.CheckSystemDeps(cfg)
			if len(statuses) == 0 {
				fmt.Fprintln(out, renderStatusLine("Binaries", statusInfo, "none required", colorize))
			}
			for _, dep := range statuses {
				msg := dep.Path
				if !dep.Available {
					msg = dep.Detail
				}
				fmt.Fprintln(out, renderStatusLine(dep.Name, kindFor(dep.Available, dep.Optional), msg, colorize))
			}
			missing := len(deps.RequiredMissing(statuses))

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSectionHeader("Preflight", colorize))
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				if !result.Passed {
					missing++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kindFor(result.Passed, false), result.Detail, colorize))
			}

			if missing > 0 {
				return fmt.Errorf("%d required check(s) failed", missing)
			}
			return nil
		},
	}
}
