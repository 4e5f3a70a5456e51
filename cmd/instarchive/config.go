package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"instarchive/pkg/auth"
	"instarchive/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage instarchive configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (INSTARCHIVE_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default value.

The file is created at $HOME/.config/instarchive/config.yaml unless a
different path is given with --config. An existing file is never
overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources. Session cookies are
masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".config", "instarchive", "config.yaml")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	out := console(os.Stdout)
	out.Success("Configuration file created: %s", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	e, err := setup(nil)
	if err != nil {
		return err
	}

	display := *e.cfg
	masked := (&auth.Credentials{
		SessionID: display.Instagram.SessionID,
		CSRFToken: display.Instagram.CSRFToken,
	}).Masked()
	if display.Instagram.SessionID != "" {
		display.Instagram.SessionID = masked.SessionID
	}
	if display.Instagram.CSRFToken != "" {
		display.Instagram.CSRFToken = masked.CSRFToken
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("formatting configuration: %w", err)
	}

	fmt.Print(string(data))
	return nil
}
