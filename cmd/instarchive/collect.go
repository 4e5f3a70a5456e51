package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"instarchive/pkg/checkpoint"
	"instarchive/pkg/config"
	"instarchive/pkg/instagram"
	"instarchive/pkg/reconcile"
	"instarchive/pkg/watchlist"
)

var (
	feedPosts  int
	startLine  int
	resumeRun  bool
	freshStart bool
	concurrent int
)

// feedCmd represents the feed command
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Collect stories and recent feed posts of watched accounts",
	Long: `Collect the current stories and the most recent posts of the logged-in
feed, keeping only items owned by accounts on the watchlist. Items from an
archived account that now posts under a new username are kept too, and the
watchlist entry and account directory follow the new name.`,
	Example: `  # Look at the last 200 feed posts
  instarchive feed

  # Look further back
  instarchive feed -p 1000`,
	Args: cobra.NoArgs,
	RunE: runFeed,
}

// everythingCmd represents the everything command
var everythingCmd = &cobra.Command{
	Use:   "everything",
	Short: "Collect every account on the watchlist",
	Long: `Walk the watchlist in file order and collect each account's profile
picture, posts, highlights and stories. Accounts are resolved by username
first and by their recorded user id when the username no longer exists,
which detects renames and updates the archive accordingly.

Progress is checkpointed after each account so an interrupted run can be
continued with --resume.`,
	Example: `  # Full run
  instarchive everything

  # Start at the 40th watchlist line
  instarchive everything -l 40

  # Continue an interrupted run
  instarchive everything --resume`,
	Args: cobra.NoArgs,
	RunE: runEverything,
}

func init() {
	feedCmd.Flags().IntVarP(&feedPosts, "posts", "p", 0,
		fmt.Sprintf("number of feed posts to look at, %d-%d (default 200)", config.MinFeedPosts, config.MaxFeedPosts))
	everythingCmd.Flags().IntVarP(&startLine, "line", "l", 1, "watchlist line to start at")
	everythingCmd.Flags().BoolVar(&resumeRun, "resume", false, "continue after the last checkpointed account")
	everythingCmd.Flags().BoolVar(&freshStart, "force-restart", false, "discard an existing checkpoint")
	everythingCmd.MarkFlagsMutuallyExclusive("resume", "force-restart")

	for _, cmd := range []*cobra.Command{feedCmd, everythingCmd} {
		cmd.Flags().IntVar(&concurrent, "concurrent", 0, "media files of one item fetched at once, 1-10 (default 3)")
	}

	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(everythingCmd)
}

// collectFlags returns the config overrides shared by collection commands
func collectFlags(cmd *cobra.Command) map[string]interface{} {
	flags := map[string]interface{}{}
	if cmd.Flags().Changed("concurrent") {
		flags["concurrent-downloads"] = concurrent
	}
	return flags
}

func runFeed(cmd *cobra.Command, args []string) error {
	flags := collectFlags(cmd)
	if cmd.Flags().Changed("posts") {
		if feedPosts < config.MinFeedPosts || feedPosts > config.MaxFeedPosts {
			return fmt.Errorf("--posts must be between %d and %d", config.MinFeedPosts, config.MaxFeedPosts)
		}
		flags["num-posts"] = feedPosts
	}

	e, err := setup(flags)
	if err != nil {
		return err
	}
	e.log = e.log.WithField("run", uuid.NewString())

	loader, err := e.loader()
	if err != nil {
		return err
	}

	wl := watchlist.NewStore(e.archive.Paths().WatchlistFile, e.log)
	report, err := reconcile.NewFeedCollector(e.archive, wl, loader, e.log).Collect(e.cfg.Download.FeedPosts)
	if err != nil {
		if report != nil {
			e.printFeed(report)
		}
		return err
	}

	e.printFeed(report)
	return e.finish(report.Outcome)
}

func runEverything(cmd *cobra.Command, args []string) error {
	if startLine < 1 {
		return fmt.Errorf("--line must be at least 1")
	}

	e, err := setup(collectFlags(cmd))
	if err != nil {
		return err
	}

	paths := e.archive.Paths()
	cp := checkpoint.NewManager(paths.CheckpointFile, e.log)
	runID := uuid.NewString()
	switch {
	case resumeRun:
		saved, err := cp.Load()
		if err != nil {
			return err
		}
		if saved != nil {
			startLine = saved.NextLine()
			if saved.RunID != "" {
				runID = saved.RunID
			}
			e.out.Info("Resuming at line", strconv.Itoa(startLine))
		}
	case freshStart:
		if err := cp.Delete(); err != nil {
			return err
		}
	case cp.Exists():
		e.out.Warning("An interrupted run left a checkpoint; use --resume to continue it.")
	}

	e.log = e.log.WithField("run", runID)

	loader, err := e.loader()
	if err != nil {
		return err
	}

	wl := watchlist.NewStore(paths.WatchlistFile, e.log)
	engine := reconcile.NewEngine(e.archive, wl, loader, reconcile.EngineOptions{
		Download:   instagram.OptionsFromConfig(e.cfg.Download),
		Checkpoint: cp,
		RunID:      runID,
	}, e.log)

	report, err := engine.Run(startLine)
	if report != nil {
		e.printRun(report)
	}
	if err != nil {
		return err
	}
	return e.finish(report.Outcome)
}

// loader builds the fetcher for the archive identity. A logged-in archive
// needs a stored session.
func (e *env) loader() (*instagram.Loader, error) {
	username, err := e.archive.Username()
	if err != nil {
		return nil, err
	}

	var session *instagram.Session
	if username != "" {
		manager, err := newCredentialManager(e.cfg.Instagram, e.log)
		if err != nil {
			return nil, err
		}
		creds, err := manager.Retrieve(username)
		if err != nil {
			e.out.Warning("Failed to load session; aborting.")
			return nil, err
		}
		session = creds.Session()
		e.log.WithField("username", username).Info("Using stored session")
	} else {
		e.log.Info("Collecting anonymously")
	}

	client := instagram.NewClientFromConfig(e.cfg, session, e.log)
	loader := instagram.NewLoader(client, e.archive, e.cfg.Download.Comments, e.cfg.Download.FastUpdate, e.log)
	return loader.WithMediaWorkers(e.cfg.Download.ConcurrentDownloads), nil
}

func (e *env) printFeed(report *reconcile.FeedReport) {
	for _, r := range report.Renames {
		e.out.Info("Renamed", fmt.Sprintf("%s -> %s", r.From, r.To))
	}
	for _, m := range report.Migrations {
		for _, name := range m.Created {
			e.out.Info("New account directory", name)
		}
		for _, path := range m.Failed {
			e.out.Error("Not migrated: %s", path)
		}
	}
}

func (e *env) printRun(report *reconcile.RunReport) {
	for _, a := range report.Accounts {
		if a.Renamed {
			e.out.Info("Renamed", fmt.Sprintf("%s -> %s", a.Name, a.CurrentName))
		}
	}
	for _, a := range report.Failed() {
		e.out.Error("Line %d %s: %s", a.Line, a.Name, a.State)
		if a.Err != nil {
			e.out.Detail("%v", a.Err)
		}
	}
}

// finish prints the run summary and maps the outcome to an exit status
func (e *env) finish(outcome reconcile.Outcome) error {
	if outcome == reconcile.OutcomeSuccess {
		e.out.Success("%s", outcome.Summary())
	} else {
		e.out.Warning("%s", outcome.Summary())
	}

	if code := outcome.ExitCode(); code != exitOK {
		return exitStatus(code)
	}
	return nil
}
