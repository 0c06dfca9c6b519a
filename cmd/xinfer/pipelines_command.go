package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/xiaoshicae/xinfer/xrecipe"
	"github.com/xiaoshicae/xinfer/xserver"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newPipelinesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "pipelines",
		Aliases: []string{"ls"},
		Short:   "List configured pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return xserver.Exec(cmd.Context(), func(context.Context) error {
				fmt.Fprintln(cmd.OutOrStdout(), renderPipelines())
				return nil
			})
		},
	}
}

func renderPipelines() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Pipeline", "Input", "Steps", "Description"})
	for _, name := range xrecipe.Names() {
		e, ok := xrecipe.Get(name)
		if !ok {
			continue
		}
		t.AppendRow(table.Row{name, e.Recipe.Input, e.Pipeline.String(), e.Recipe.Description})
	}
	if t.Length() == 0 {
		return "no pipelines configured"
	}
	return strings.TrimRight(t.Render(), "\n")
}
