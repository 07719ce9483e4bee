package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kalambet/rosterbot/internal/roster"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// printEmployees writes one row per employee. on_project is highlighted
// since it limits who can be staffed.
func printEmployees(w io.Writer, employees []roster.Employee) {
	if len(employees) == 0 {
		fmt.Fprintln(w, "No matching employees.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tYEARS\tSKILLS\tSTATUS")
	for _, e := range employees {
		status := e.Availability
		if status == roster.OnProject {
			status = colorize(colorYellow, status)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", e.ID, e.Name, e.ExperienceYears, strings.Join(e.Skills, ", "), status)
	}
	tw.Flush()
}
