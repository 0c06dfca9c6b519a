package main

import (
	"context"
	"fmt"

	"github.com/xiaoshicae/xinfer/xmodel"
	"github.com/xiaoshicae/xinfer/xserver"

	"github.com/spf13/cobra"
)

func newModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and prefetch models",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "schemes",
		Short: "List supported model id schemes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range xmodel.DefaultProvider().Schemes() {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "fetch <model-id>...",
		Short:   "Download remote onnx models into the cache dir",
		Example: "  xinfer models fetch onnx+https://example.com/panns_cnn14.onnx",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return xserver.Exec(cmd.Context(), func(ctx context.Context) error {
				for _, id := range args {
					path, err := xmodel.Prefetch(ctx, id)
					if err != nil {
						return err
					}
					if path == "" {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: remote service, nothing to fetch\n", id)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, path)
				}
				return nil
			})
		},
	})
	return cmd
}
