package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"instarchive/pkg/archive"
	"instarchive/pkg/config"
	"instarchive/pkg/logger"
	"instarchive/pkg/ui"
)

var (
	// Version information
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	archiveDir string
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
)

// Process exit statuses
const (
	exitOK      = 0
	exitAborted = 2
)

// exitStatus carries a non-zero exit status for a run that completed
type exitStatus int

func (s exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(s))
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "instarchive",
	Short: "Keep a local Instagram archive in sync with a watchlist",
	Long: `instarchive maintains a local archive of Instagram accounts listed in a
watchlist file. Accounts are tracked by their numeric user id, so username
changes are detected and the archive directory and watchlist entry follow.

Layout of an archive:
  username           archiving identity (empty for anonymous use)
  tracking.txt       watchlist, one username per line
  data/<username>/   one directory per account, holding a userid file`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and returns the process exit status
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}

	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}

	console(os.Stderr).Error("Error: %v", err)
	return exitAborted
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&archiveDir, "archive-dir", "d", "", "archive root directory (default $HOME/instarchive)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: first of ./.instarchive.yaml, ~/.config/instarchive/config.yaml, ~/.instarchive.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append JSON log lines to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.SetVersionTemplate(`instarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func console(f *os.File) *ui.Console {
	if noColor {
		return ui.NewPlainConsole(f)
	}
	return ui.NewConsole(f)
}

// env is what every archive command needs
type env struct {
	cfg     *config.Config
	log     logger.Logger
	archive *archive.Archive
	out     *ui.Console
}

// setup loads configuration, initializes logging and opens the archive.
// extra carries command specific flag overrides.
func setup(extra map[string]interface{}) (*env, error) {
	flags := map[string]interface{}{
		"archive-dir": archiveDir,
		"log-level":   logLevel,
		"log-file":    logFile,
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("instarchive starting")

	return &env{
		cfg:     cfg,
		log:     log,
		archive: archive.New(cfg.Paths(), log),
		out:     console(os.Stdout),
	}, nil
}
