// xinfer 命令行：执行、列出与对外提供推理流水线
package main

import (
	"github.com/xiaoshicae/xinfer/xconfig"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var profileFlag string

	rootCmd := &cobra.Command{
		Use:           "xinfer",
		Short:         "Multi-stage heterogeneous inference pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 未指定时由 xconfig 在 before start hook 中自动探测
			if configFlag == "" {
				return nil
			}
			return xconfig.Load(configFlag)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (application.yml)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Active profile, merges application-{profile}.yml")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newPipelinesCommand())
	rootCmd.AddCommand(newModelsCommand())
	return rootCmd
}
