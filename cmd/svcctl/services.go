package main

import (
	"github.com/spf13/cobra"

	"github.com/edvin/svcctl/internal/apiclient"
	"github.com/edvin/svcctl/internal/catalog"
	"github.com/edvin/svcctl/internal/report"
)

func newServicesCmd(root *rootOptions) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "services",
		Short: "List the service types svcctl can reconcile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := root.format()
			if err != nil {
				return err
			}

			descs := catalog.All()
			if server != "" {
				if descs, err = apiclient.NewClient(server).Catalog(cmd.Context()); err != nil {
					return err
				}
			}
			return report.WriteCatalog(cmd.OutOrStdout(), descs, format)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "List the catalog of this svcctl-api instead of the local one")
	return cmd
}
