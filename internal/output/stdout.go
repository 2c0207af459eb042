package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jakopako/kursbot/internal/types"
	"github.com/olekukonko/tablewriter"
)

// StdoutWriter prints the stage trace and the outcome of a run as a table
type StdoutWriter struct {
	out    io.Writer
	logger *slog.Logger
}

// NewStdoutWriter returns a new StdoutWriter
func NewStdoutWriter(wc *WriterConfig) *StdoutWriter {
	return &StdoutWriter{
		out:    os.Stdout,
		logger: slog.With(slog.String("writer", string(STDOUT_WRITER_TYPE))),
	}
}

func outcomeColors(o types.Outcome) tablewriter.Colors {
	switch {
	case o.Failed():
		return tablewriter.Colors{tablewriter.Normal, tablewriter.FgRedColor}
	case o == types.OutcomeSuccess:
		return tablewriter.Colors{tablewriter.Normal, tablewriter.FgGreenColor}
	default:
		return tablewriter.Colors{tablewriter.Normal, tablewriter.FgYellowColor}
	}
}

func (w *StdoutWriter) Write(report *types.RunReport) error {
	w.logger.Info(fmt.Sprintf("printing summary of run %s", report.RunID))
	fmt.Fprintf(w.out, "Run %s: %s at %s\n", report.RunID, report.Slot, report.TargetURL)

	table := tablewriter.NewWriter(w.out)
	table.SetHeader([]string{"State", "Time", "Note"})
	table.SetAutoWrapText(false)
	for _, e := range report.Trace {
		row := []string{string(e.State), e.At.Format("15:04:05.000"), e.Note}
		if e.State == types.StateFailed {
			c := outcomeColors(report.Outcome)
			table.Rich(row, []tablewriter.Colors{c, c, c})
		} else {
			table.Append(row)
		}
	}
	table.SetFooter([]string{"outcome", string(report.Outcome), report.Error})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT})
	table.SetBorder(false)
	table.Render()
	return nil
}
