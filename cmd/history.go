package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/zjrosen/omniedit/internal/history"
)

var historyLimit int

const errorWrapWidth = 70

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	Long: `List recent runs, newest first.

Use "omniedit history show <run-id>" to print a run's captured output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := history.Open(cfg.History.ResolvedPath())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		records, err := store.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), records)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the output captured for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(cfg.History.ResolvedPath())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		rec, err := store.Get(cmd.Context(), args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return err
		}
		return printRecord(cmd.OutOrStdout(), rec)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
}

func printHistory(w io.Writer, records []history.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.RunID,
			rec.StartedAt.Local().Format(time.DateTime),
			rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond).String(),
			string(rec.Status),
			strconv.FormatInt(rec.OutputBytes, 10),
			rec.SourceName,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "STARTED", "DURATION", "STATUS", "BYTES", "SOURCE").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func printRecord(w io.Writer, rec history.Record) error {
	fmt.Fprintf(w, "run:      %s\n", rec.RunID)
	fmt.Fprintf(w, "source:   %s\n", rec.SourceName)
	fmt.Fprintf(w, "status:   %s\n", rec.Status)
	fmt.Fprintf(w, "started:  %s\n", rec.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "duration: %s\n", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	if rec.Error != "" {
		msg := wordwrap.String(rec.Error, errorWrapWidth)
		fmt.Fprintf(w, "error:    %s\n", strings.ReplaceAll(msg, "\n", "\n          "))
	}
	fmt.Fprintln(w)
	_, err := io.WriteString(w, rec.Transcript)
	return err
}
