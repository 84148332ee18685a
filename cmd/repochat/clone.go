package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"repochat/internal/session"
)

var cloneFormat string

var cloneCmd = &cobra.Command{
	Use:   "clone <url|path>",
	Short: "Ingest a repository and print a summary",
	Long: `Fetch a git repository (or copy a local directory), split it into
fragments, embed them and report what was indexed.

Examples:
  repochat clone https://github.com/user/repo.git
  repochat clone ./some/dir --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runClone,
}

func init() {
	cloneCmd.Flags().StringVar(&cloneFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(cloneCmd)
}

func runClone(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(cloneFormat, FormatHuman, FormatJSON)
	if err != nil {
		return err
	}

	eng, err := newEngine(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close(closeTimeout) }()

	summary, err := eng.Clone(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if format == FormatJSON {
		out, err := encode(summary, FormatJSON)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), formatSummaryHuman(summary))
	return err
}

func formatSummaryHuman(s session.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session:   %s\n", s.ID)
	fmt.Fprintf(&b, "Source:    %s\n", s.Source)
	fmt.Fprintf(&b, "Files:     %d\n", s.Files)
	fmt.Fprintf(&b, "Fragments: %d\n", s.Fragments)
	if len(s.Warnings) > 0 {
		fmt.Fprintf(&b, "Warnings:  %d\n", len(s.Warnings))
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	return b.String()
}
