package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/internal/manifest"
	"github.com/risetechapps/jobchain/job"
)

func registerDescribeCommand(root *cobra.Command, g *globals) {
	root.AddCommand(&cobra.Command{
		Use:   "describe",
		Short: "Describe the chains declared in a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := g.manifest()
			if err != nil {
				return err
			}
			reg := job.NewRegistry()
			declared, err := manifest.Build(m, reg, chain.New, g.logger,
				chain.WithRegistry(reg), chain.WithConfig(g.cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range declared {
				queue := d.Def.Queue
				if queue == "" {
					queue = "default"
				}
				fmt.Fprintf(out, "[Chain] %s\n", d.Def.Name)
				fmt.Fprintf(out, "  On:       %s\n", d.Def.On)
				fmt.Fprintf(out, "  Queue:    %s\n", queue)
				fmt.Fprintf(out, "  Timeout:  %s\n", d.Chain.Timeout())
				fmt.Fprintf(out, "  Display:  %s\n", d.Chain.DisplayName())
				if d.Def.Schedule != "" {
					fmt.Fprintf(out, "  Schedule: %s\n", d.Def.Schedule)
				}
				fmt.Fprintf(out, "  Jobs (%d):\n", len(d.Def.Jobs))
				for i, step := range d.Def.Jobs {
					fmt.Fprintf(out, "    %d. %s%s\n", i+1, step.Unit, params(step.With))
				}
			}
			return nil
		},
	})
}

func params(with map[string]any) string {
	if len(with) == 0 {
		return ""
	}
	keys := make([]string, 0, len(with))
	for k := range with {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, with[k])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
