package main

import (
	"github.com/spf13/cobra"

	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/reconciler"
	"github.com/edvin/svcctl/internal/report"
)

func newPlacementCmd(root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "placement",
		Short: "Show the role placements a request file would create",
		Long: `Validate the requests in a file and print the role-to-host assignments
they resolve to. Nothing is sent to the control plane.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := root.format()
			if err != nil {
				return err
			}
			reqs, err := loadRequests(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			var all []model.Placement
			for _, req := range reqs {
				placements, err := reconciler.Preview(req)
				if err != nil {
					return err
				}
				all = append(all, placements...)
			}
			return report.WritePlacements(cmd.OutOrStdout(), all, format)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML request file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
