package main

import (
	"github.com/xiaoshicae/xinfer/xapi"
	"github.com/xiaoshicae/xinfer/xgin/options"

	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var noRequestLog bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve configured pipelines over http",
		RunE: func(cmd *cobra.Command, args []string) error {
			return xapi.NewServer(options.EnableLogMiddleware(!noRequestLog)).Start()
		},
	}
	cmd.Flags().BoolVar(&noRequestLog, "no-request-log", false, "Disable per-request logging")
	return cmd
}
