package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"repochat/internal/retriever"
)

var (
	askFormat  string
	askSources bool
)

var askCmd = &cobra.Command{
	Use:   "ask <url|path> <question>...",
	Short: "Ingest a repository and answer one question",
	Long: `Ingest a repository, answer a single question about it and exit.

Examples:
  repochat ask https://github.com/user/repo.git "what does main.go do?"
  repochat ask . how is config loaded --sources`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askFormat, "format", "human", "Output format (human, json, plain)")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "List the fragments the answer was based on")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(askFormat, FormatHuman, FormatJSON, FormatPlain)
	if err != nil {
		return err
	}
	question := strings.Join(args[1:], " ")

	eng, err := newEngine(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close(closeTimeout) }()

	summary, err := eng.Clone(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	res, err := eng.Ask(cmd.Context(), summary.ID, question)
	if err != nil {
		return err
	}

	var out string
	switch format {
	case FormatJSON:
		out, err = encode(res, FormatJSON)
	case FormatHuman:
		out, err = renderMarkdown(res.Answer, 100)
		if err == nil && askSources {
			out += formatSources(res.Sources)
		}
	default:
		out = res.Answer + "\n"
		if askSources {
			out += formatSources(res.Sources)
		}
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

// renderMarkdown renders text for a terminal of the given width.
func renderMarkdown(text string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

func formatSources(sources []retriever.Source) string {
	var b strings.Builder
	b.WriteString("\nSources:\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "  %.3f  %s\n", s.Score, s.Path)
	}
	return b.String()
}
