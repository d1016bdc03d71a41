package cmd

import (
	"fmt"
	"io"
	"os"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sheetchat/sheetchat/internal/errors"
	"github.com/sheetchat/sheetchat/internal/table"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the inferred schema and column profiles of a spreadsheet",
	Long: `Load a spreadsheet and print what sheetchat inferred about it: column
names after header cleanup, detected types, missing counts, and per-column
summary statistics.

Examples:
  sheetchat inspect sales.xlsx
  sheetchat inspect data.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	cfg, err := loadActiveConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeLoad, "failed to read file")
	}

	loader := table.NewLoader(table.Limits{
		MaxRows:    cfg.Loader.MaxRows,
		MaxColumns: cfg.Loader.MaxColumns,
	})

	tbl, err := loader.Load(args[0], data)
	if err != nil {
		return err
	}

	printSchema(os.Stdout, tbl)

	return nil
}

func printSchema(w io.Writer, tbl *table.Table) {
	if tbl.Sheet != "" {
		fmt.Fprintf(w, "Sheet %q, %d rows, %d columns\n", tbl.Sheet, tbl.RowCount, len(tbl.Columns))
	} else {
		fmt.Fprintf(w, "%d rows, %d columns\n", tbl.RowCount, len(tbl.Columns))
	}

	t := prettytable.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(prettytable.StyleLight)
	t.AppendHeader(prettytable.Row{"Column", "Type", "Missing", "Distinct", "Summary"})

	for i, col := range tbl.Columns {
		p := tbl.Profiles[i]
		t.AppendRow(prettytable.Row{col.Name, col.Type, p.Missing, p.Cardinality, profileSummary(p)})
	}

	t.Render()
}

func profileSummary(p table.ColumnProfile) string {
	switch {
	case p.Numeric != nil:
		return fmt.Sprintf("min %s, max %s, mean %s, std %s",
			trim(p.Numeric.Min), trim(p.Numeric.Max), trim(p.Numeric.Mean), trim(p.Numeric.StdDev))
	case p.Datetime != nil:
		return fmt.Sprintf("%s to %s",
			p.Datetime.Min.Format("2006-01-02"), p.Datetime.Max.Format("2006-01-02"))
	default:
		return ""
	}
}
