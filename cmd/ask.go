package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sheetchat/sheetchat/internal/config"
	"github.com/sheetchat/sheetchat/internal/dataset"
	"github.com/sheetchat/sheetchat/internal/errors"
	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/planner"
	"github.com/sheetchat/sheetchat/internal/render"
	"github.com/sheetchat/sheetchat/internal/table"
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <question>",
	Short: "Ask a single question about a spreadsheet",
	Long: `Load a spreadsheet, answer one question, and print the result. Charts are
printed as tables of their underlying data.

Examples:
  sheetchat ask sales.xlsx "what is the average revenue by region"
  sheetchat ask data.csv "show rows where units is greater than 100"
  sheetchat ask survey.csv "describe the data"`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadActiveConfig()
	if err != nil {
		return err
	}

	question := strings.TrimSpace(args[1])
	if question == "" {
		return errors.New(errors.ErrTypeValidation, "question cannot be empty")
	}

	return askOnce(cmd.Context(), cfg, args[0], question, os.Stdout)
}

func askOnce(ctx context.Context, cfg *config.Config, filename, question string, w io.Writer) error {
	svc, err := buildPlanner(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "failed to configure planner")
	}

	return askWithPlanner(ctx, cfg, svc, filename, question, w)
}

func askWithPlanner(ctx context.Context, cfg *config.Config, svc planner.Service, filename, question string, w io.Writer) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeLoad, "failed to read file")
	}

	loader := table.NewLoader(table.Limits{
		MaxRows:    cfg.Loader.MaxRows,
		MaxColumns: cfg.Loader.MaxColumns,
	})

	tbl, err := loader.Load(filename, data)
	if err != nil {
		return err
	}

	store, err := dataset.NewStore()
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDataset, "failed to open analysis database")
	}
	defer store.Close()

	id, err := store.Register(ctx, tbl)
	if err != nil {
		return err
	}

	var spin *spinner.Spinner
	if cfg.LLM.APIKey != "" {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		spin.Writer = os.Stderr
		spin.Suffix = " thinking..."
		spin.Start()
	}

	result, err := svc.Plan(ctx, question, tbl)

	if spin != nil {
		spin.Stop()
	}

	if err != nil {
		return err
	}

	renderer := render.NewRenderer(store)

	resp, err := renderer.Render(ctx, result, tbl, id)
	if err != nil && result.Source == "model" {
		// A bad model plan gets one retry through the rule engine, the
		// same containment the web surface applies.
		if retry, rerr := planner.NewFallbackService().Plan(ctx, question, tbl); rerr == nil {
			resp, err = renderer.Render(ctx, retry, tbl, id)
		}
	}

	if err != nil {
		return err
	}

	printResponse(w, resp)

	return nil
}

// printResponse writes a rendered answer as plain text and light tables.
func printResponse(w io.Writer, resp *render.Response) {
	if resp.Text != "" {
		fmt.Fprintln(w, resp.Text)
	}

	if len(resp.Stats) > 0 {
		printStats(w, resp.Stats)
	}

	for _, chart := range resp.Charts {
		printChart(w, chart)
	}

	if resp.Table != nil {
		printRows(w, resp.Table)
	}
}

func printStats(w io.Writer, stats []render.Stats) {
	t := prettytable.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(prettytable.StyleLight)
	t.AppendHeader(prettytable.Row{"Column", "Count", "Mean", "Std", "Min", "25%", "Median", "75%", "Max"})

	for _, s := range stats {
		if s.Summary == nil {
			continue
		}

		t.AppendRow(prettytable.Row{
			s.Column,
			s.Summary.Count,
			trim(s.Summary.Mean),
			trim(s.Summary.StdDev),
			trim(s.Summary.Min),
			trim(s.Summary.Q25),
			trim(s.Summary.Median),
			trim(s.Summary.Q75),
			trim(s.Summary.Max),
		})
	}

	t.Render()
}

func printChart(w io.Writer, chart render.Chart) {
	if chart.Title != "" {
		fmt.Fprintf(w, "\n%s\n", chart.Title)
	}

	t := prettytable.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(prettytable.StyleLight)

	switch {
	case len(chart.Groups) > 0:
		y := chart.Y
		if y == "" {
			y = "Count"
		}

		t.AppendHeader(prettytable.Row{chart.X, y})

		for _, g := range chart.Groups {
			t.AppendRow(prettytable.Row{g.Group, trim(g.Value)})
		}

		t.Render()
	case len(chart.Bucket) > 0:
		t.AppendHeader(prettytable.Row{"Range", "Count"})

		for _, b := range chart.Bucket {
			t.AppendRow(prettytable.Row{
				fmt.Sprintf("%s to %s", trim(b.Low), trim(b.High)),
				b.Count,
			})
		}

		t.Render()
	case chart.Box != nil:
		t.AppendHeader(prettytable.Row{"Min", "Q1", "Median", "Q3", "Max", "Outliers"})
		t.AppendRow(prettytable.Row{
			trim(chart.Box.Min),
			trim(chart.Box.Q1),
			trim(chart.Box.Median),
			trim(chart.Box.Q3),
			trim(chart.Box.Max),
			len(chart.Box.Outliers),
		})
		t.Render()
	case chart.Matrix != nil:
		header := prettytable.Row{""}
		for _, c := range chart.Matrix.Columns {
			header = append(header, c)
		}

		t.AppendHeader(header)

		for i, c := range chart.Matrix.Columns {
			row := prettytable.Row{c}
			for _, v := range chart.Matrix.Matrix[i] {
				row = append(row, trim(v))
			}

			t.AppendRow(row)
		}

		t.Render()
	case chart.Type == plan.ChartScatter:
		fmt.Fprintf(w, "%d points of %s vs %s\n", len(chart.Points), chart.X, chart.Y)
	}
}

func printRows(w io.Writer, res *dataset.FilterResult) {
	header := make(prettytable.Row, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c
	}

	t := prettytable.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(prettytable.StyleLight)
	t.AppendHeader(header)

	for _, row := range res.Rows {
		out := make(prettytable.Row, len(row))
		for i, cell := range row {
			out[i] = cell
		}

		t.AppendRow(out)
	}

	t.Render()
	fmt.Fprintf(w, "(%d of %d rows)\n", len(res.Rows), res.Total)
}

func trim(v float64) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}

	return s
}
