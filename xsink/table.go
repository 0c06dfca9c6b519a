package xsink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xpipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// TableSink 以表格打印结果，W 为终端时着色
type TableSink struct {
	W io.Writer
	// Color nil 时按 W 是否为终端自动判断
	Color *bool

	mu sync.Mutex
}

func NewTableSink(w io.Writer) *TableSink {
	if w == nil {
		w = os.Stdout
	}
	return &TableSink{W: w}
}

func (s *TableSink) Accept(_ context.Context, r *xpipeline.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.W, RenderTable(r, s.colorize()))
	return err
}

func (s *TableSink) colorize() bool {
	if s.Color != nil {
		return *s.Color
	}
	f, ok := s.W.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// RenderTable 运行摘要、各 step 耗时以及输出
func RenderTable(r *xpipeline.RunResult, colorize bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if colorize {
		tw.SetStyle(table.StyleColoredBright)
	}
	tw.SetTitle(fmt.Sprintf("%s  %s  %s", r.Pipeline, r.RunID, stateText(r.State, colorize)))
	tw.AppendHeader(table.Row{"#", "step", "adapter", "output", "duration", "error"})
	for _, st := range r.Steps {
		tw.AppendRow(table.Row{st.Index, st.Name, st.Adapter, st.OutputKind, st.Duration.String(), st.Err})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, WidthMax: 60},
	})
	tw.AppendFooter(table.Row{"", "total", "", "", r.Duration.String(), ""})
	out := tw.Render()

	if r.Output == nil {
		return out
	}
	return out + "\n" + renderOutput(r.Output)
}

func renderOutput(v xmedia.Value) string {
	labels, ok := v.(xmedia.LabelSet)
	if !ok {
		return Render(v)
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"label", "confidence"})
	for _, l := range labels.Labels() {
		tw.AppendRow(table.Row{l.Name, fmt.Sprintf("%.4f", l.Confidence)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return tw.Render()
}

func stateText(s xpipeline.State, colorize bool) string {
	if !colorize {
		return s.String()
	}
	switch s {
	case xpipeline.Completed:
		return text.FgGreen.Sprint(s.String())
	case xpipeline.Failed:
		return text.FgRed.Sprint(s.String())
	default:
		return s.String()
	}
}
