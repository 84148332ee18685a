package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"repochat/internal/config"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect repochat configuration",
	Long:  "View the effective configuration loaded from .repochat/config.json, --config and REPOCHAT_* variables",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the effective configuration after defaults, the config file and
environment overrides.

Examples:
  repochat config show                 # JSON
  repochat config show --format yaml
  repochat config show --format toml > config.toml`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Args:  cobra.NoArgs,
	RunE:  runConfigEnv,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "json", "Output format (json, yaml, toml)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(configFormat, FormatJSON, FormatYAML, FormatTOML)
	if err != nil {
		return err
	}
	out, err := encode(loadResult.Config, format)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	switch {
	case loadResult.UsedDefaults:
		fmt.Fprintln(stderr, "# using built-in defaults")
	default:
		fmt.Fprintf(stderr, "# loaded from %s\n", loadResult.ConfigPath)
	}
	for _, o := range loadResult.EnvOverrides {
		fmt.Fprintf(stderr, "# %s overrides %s\n", o.EnvVar, o.Path)
	}

	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

func runConfigEnv(cmd *cobra.Command, args []string) error {
	return writeEnvVars(cmd.OutOrStdout(), os.LookupEnv)
}

func writeEnvVars(w io.Writer, lookup func(string) (string, bool)) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tCONFIG KEY\tSET")
	names := append([]string{config.EnvConfigPath}, config.GetSupportedEnvVars()...)
	for _, name := range names {
		path := config.EnvVarPath(name)
		if name == config.EnvConfigPath {
			path = "(config file path)"
		}
		set := "-"
		if _, ok := lookup(name); ok {
			set = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, path, set)
	}
	return tw.Flush()
}
