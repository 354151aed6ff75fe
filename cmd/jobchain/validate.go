package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/internal/manifest"
	"github.com/risetechapps/jobchain/job"
)

func registerValidateCommand(root *cobra.Command, g *globals) {
	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate a chain manifest and its unit parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := g.manifest()
			if err != nil {
				return err
			}
			reg := job.NewRegistry()
			if _, err := manifest.Build(m, reg, chain.New, g.logger, chain.WithRegistry(reg)); err != nil {
				return fmt.Errorf("invalid chain: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d chains\n", len(m.Chains))
			return nil
		},
	})
}
