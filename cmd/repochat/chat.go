package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <url|path>",
	Short: "Ingest a repository and chat about it",
	Long: `Ingest a repository and open an interactive chat. Follow-up questions
are rewritten with the conversation history before retrieval.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	eng, err := newEngine(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close(closeTimeout) }()

	stderr := cmd.ErrOrStderr()
	last := -1
	summary, err := eng.CloneWithProgress(ctx, args[0], func(pct int, stage string) {
		if pct/10 != last/10 {
			fmt.Fprintf(stderr, "\r%-10s %3d%%", stage, pct)
			last = pct
		}
	})
	fmt.Fprintln(stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Indexed %d fragments from %d files\n", summary.Fragments, summary.Files)

	p := tea.NewProgram(newChatModel(ctx, eng, summary.ID, summary.Source), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
