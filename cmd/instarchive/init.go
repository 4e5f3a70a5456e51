package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"instarchive/pkg/instagram"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [username]",
	Short: "Create an archive",
	Long: `Create the archive directory layout and record the Instagram account used
to collect it. Without a username the archive is collected anonymously,
which limits it to public profiles and skips stories and highlights.

Running init again on an existing archive only changes the recorded username.`,
	Example: `  # Archive as a logged-in user
  instarchive init myusername

  # Anonymous archive in a custom location
  instarchive -d /srv/archive init`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	var username string
	if len(args) > 0 {
		username = instagram.SanitizeUsername(args[0])
		if !instagram.IsValidUsername(username) {
			return fmt.Errorf("invalid username %q", args[0])
		}
	}

	e, err := setup(nil)
	if err != nil {
		return err
	}

	result, err := e.archive.Init(username)
	if err != nil {
		return err
	}

	paths := e.archive.Paths()
	e.out.Info("Archive", paths.Root)
	if result.Anonymous {
		e.out.Warning("No username given; the archive will be collected anonymously.")
	} else {
		e.out.Info("Username", username)
		e.out.Line("Run 'instarchive login' to store the session for %s.", username)
	}

	if result.CreatedWatchlist {
		e.out.Warning("Add the usernames to archive to %s, one per line.", paths.WatchlistFile)
	}
	return nil
}
