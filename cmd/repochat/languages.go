package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"repochat/internal/chunking"
	"repochat/internal/config"
)

var languagesFormat string

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List recognised languages and their splitters",
	Args:  cobra.NoArgs,
	RunE:  runLanguages,
}

func init() {
	languagesCmd.Flags().StringVar(&languagesFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(languagesCmd)
}

func runLanguages(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(languagesFormat, FormatHuman, FormatJSON)
	if err != nil {
		return err
	}
	reg, err := buildRegistry(loadResult.Config.Chunking)
	if err != nil {
		return err
	}

	langs := reg.Languages()
	if format == FormatJSON {
		out, err := encode(map[string]interface{}{"languages": langs}, FormatJSON)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	}
	return writeLanguages(cmd.OutOrStdout(), langs)
}

// buildRegistry builds the registry without constructing providers.
func buildRegistry(c config.ChunkingConfig) (*chunking.Registry, error) {
	reg := chunking.NewRegistry(chunking.Options{
		FixedSize:         c.FixedSize,
		FixedOverlap:      c.FixedOverlap,
		LanguageChunkSize: c.LanguageChunkSize,
	})
	if c.LanguagesFile != "" {
		if err := reg.LoadLanguageFile(c.LanguagesFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func writeLanguages(w io.Writer, langs []chunking.LanguageInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tSPLITTER\tEXTENSIONS")
	for _, l := range langs {
		exts := strings.Join(l.Extensions, ", ")
		if exts == "" {
			exts = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Language, l.Splitter, exts)
	}
	return tw.Flush()
}
