package main

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"repochat/internal/config"
	"repochat/internal/slogutil"
	"repochat/internal/version"
)

var (
	configPath string
	envFile    string
	verbosity  int
	quiet      bool
)

// Loaded by PersistentPreRunE for every command.
var (
	loadResult *config.LoadResult
	logger     *slog.Logger
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "repochat",
	Short: "repochat - chat with a git repository",
	Long: `repochat ingests a git repository into an in-memory vector index and
answers questions about it with a language model, keeping per-session
conversation history so follow-up questions work.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	rootCmd.SetVersionTemplate("repochat version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (json, yaml or toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before config")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all logging")
}

// setup loads .env, the config and the logger. Variables already set in the
// environment win over the dotenv file.
func setup(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	loadResult, err = config.LoadConfigWithDetails(wd, configPath)
	if err != nil {
		return err
	}

	if cmd.Name() == "serve" && verbosity == 0 && !quiet {
		lc := loadResult.Config.Logging
		logger, logCloser, err = slogutil.Setup(os.Stderr, slogutil.Options{
			Level:      lc.Level,
			File:       lc.File,
			MaxSize:    lc.MaxSize,
			MaxBackups: lc.MaxBackups,
		})
		return err
	}
	logger = slogutil.NewLogger(os.Stderr, slogutil.LevelFromVerbosity(verbosity, quiet))
	return nil
}
