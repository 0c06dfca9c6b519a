package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xpipeline"
	"github.com/xiaoshicae/xinfer/xrecipe"
	"github.com/xiaoshicae/xinfer/xserver"
	"github.com/xiaoshicae/xinfer/xsink"

	"github.com/spf13/cobra"
)

type runOptions struct {
	inputs  []string
	text    string
	sinks   []string
	timeout time.Duration
	workers int
	verbose bool
}

func newRunCommand() *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Run a pipeline on one or more inputs",
		Example: `  xinfer run narrator --input dog.wav
  xinfer run caption --input a.jpg --input b.jpg --sink table --sink json:runs.jsonl
  xinfer run summarize --input meeting.wav
  xinfer -c conf/application.yml run ask --text "three facts about owls"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return xserver.Exec(cmd.Context(), func(ctx context.Context) error {
				return runPipeline(ctx, cmd, args[0], o)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&o.inputs, "input", "i", nil, "Input file (wav for audio, png/jpeg for image, utf-8 for text), repeatable")
	flags.StringVarP(&o.text, "text", "t", "", "Inline text input for text pipelines")
	flags.StringArrayVarP(&o.sinks, "sink", "s", []string{"table"}, "Result sink: table | log | gorm | json[:path], repeatable")
	flags.DurationVar(&o.timeout, "timeout", 2*time.Minute, "Timeout for the whole command")
	flags.IntVarP(&o.workers, "workers", "w", 0, "Concurrent runs when multiple inputs are given, 0 uses XPipeline.BatchWorkers")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Print every step output")
	return cmd
}

func runPipeline(ctx context.Context, cmd *cobra.Command, name string, o *runOptions) error {
	e, ok := xrecipe.Get(name)
	if !ok {
		return fmt.Errorf("pipeline %q not found, available: %s", name, strings.Join(xrecipe.Names(), ", "))
	}

	values, err := readInputs(e.Recipe.Input, o)
	if err != nil {
		return err
	}

	sink, err := xsink.ParseAll(o.sinks, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if o.verbose {
		out := cmd.ErrOrStderr()
		e.Pipeline.SetObserver(func(_ context.Context, index int, stepName string, v xmedia.Value) {
			fmt.Fprintf(out, "  [%d] %s -> %s: %s\n", index, stepName, xmedia.KindOf(v), xsink.Render(v))
		})
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var results []*xpipeline.RunResult
	if len(values) == 1 {
		results = []*xpipeline.RunResult{e.Run(ctx, values[0])}
	} else {
		results = e.RunBatch(ctx, values, o.workers)
	}

	failed := 0
	for _, r := range results {
		if err := sink.Accept(ctx, r); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "emit %s: %v\n", r.RunID, err)
		}
		if !r.Success() {
			failed++
		}
	}
	if failed > 0 {
		if len(results) == 1 {
			return results[0].Error()
		}
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}

func readInputs(input string, o *runOptions) ([]xmedia.Value, error) {
	values := make([]xmedia.Value, 0, len(o.inputs)+1)
	if o.text != "" {
		v, err := xrecipe.DecodeInput(input, strings.NewReader(o.text))
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	for _, path := range o.inputs {
		v, err := xrecipe.DecodeFile(input, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no input, use --input or --text")
	}
	return values, nil
}
