package cmd

import (
	"github.com/asaidimu/go-mockdb/api"
	"github.com/spf13/cobra"
)

func serveCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the database over HTTP",
		Long:  `Serve the collections of the database over a JSON HTTP API until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return api.NewServer(r.db, r.logger).Start(cmd.Context(), r.conf.Listen)
		},
	}
	cmd.Flags().String("listen", "", "Address to listen on, such as 127.0.0.1:8080")
	return cmd
}
