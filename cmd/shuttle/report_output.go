package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"shuttle/internal/report"
)

// printReport renders the run summary table followed by the detail lines
// and an overall status line.
func printReport(cmd *cobra.Command, rep *report.Report) {
	out := cmd.OutOrStdout()

	if rep.Len() > 0 {
		rows := make([][]string, 0, rep.Len())
		for _, key := range rep.Keys() {
			rows = append(rows, []string{key, strconv.Itoa(len(rep.Items(key)))})
		}
		fmt.Fprintln(out, renderTable([]string{"Message", "Entries"}, rows))
		fmt.Fprint(out, report.RenderText(rep))
	}

	status := "Run completed"
	if !rep.OK() {
		status = "Run completed with failures"
	}
	fmt.Fprintln(out, colorizeStatus(out, status, rep.OK()))
}

func colorizeStatus(writer io.Writer, status string, ok bool) string {
	if !shouldColorize(writer) {
		return status
	}
	if ok {
		return text.FgGreen.Sprint(status)
	}
	return text.FgRed.Sprint(status)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
