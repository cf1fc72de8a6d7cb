package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/wesm/ghsync/config"
	"github.com/wesm/ghsync/internal/api"
	"github.com/wesm/ghsync/internal/auth"
	"github.com/wesm/ghsync/internal/db"
	"github.com/wesm/ghsync/internal/store"
	"github.com/wesm/ghsync/internal/sync"
)

const (
	// lockFileName is created in the record directory; the store ignores dotfiles
	lockFileName = ".ghsync.lock"

	lockPollInterval = 100 * time.Millisecond
)

// lockTimeout is how long a run waits for another run on the same directory
var lockTimeout = 10 * time.Second

type syncFlags struct {
	dir         string
	dryRun      bool
	preferLocal bool
}

func newPullCmd() *cobra.Command {
	var f syncFlags
	cmd := &cobra.Command{
		Use:   "pull <owner/repo>",
		Short: "Mirror remote issues and discussions into local records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0], f, "pull")
		},
	}
	cmd.Flags().StringVar(&f.dir, "output", "", "Record directory (default <records_dir>/<owner>/<repo>)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Report what would change without writing anything")
	return cmd
}

func newPushCmd() *cobra.Command {
	var f syncFlags
	cmd := &cobra.Command{
		Use:   "push <owner/repo>",
		Short: "Create and update remote issues and discussions from local records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0], f, "push")
		},
	}
	cmd.Flags().StringVar(&f.dir, "input", "", "Record directory (default <records_dir>/<owner>/<repo>)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Report what would change without writing anything")
	cmd.Flags().BoolVar(&f.preferLocal, "prefer-local", false, "Resolve title/body conflicts to the local value")
	return cmd
}

func newIssuesCmd() *cobra.Command {
	var f syncFlags
	cmd := &cobra.Command{
		Use:   "issues <owner/repo>",
		Short: "Pull, then push",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0], f, "pull", "push")
		},
	}
	cmd.Flags().StringVar(&f.dir, "dir", "", "Record directory (default <records_dir>/<owner>/<repo>)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Report what would change without writing anything")
	cmd.Flags().BoolVar(&f.preferLocal, "prefer-local", false, "Resolve title/body conflicts to the local value")
	return cmd
}

func runSync(cmd *cobra.Command, repoArg string, f syncFlags, directions ...string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	owner, name, err := sync.ParseRepositoryString(repoArg)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	token, err := auth.GetToken(cfg.GitHubToken)
	if err != nil {
		return err
	}

	dir := cfg.RecordsPath(f.dir, owner, name)
	if !f.dryRun {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create record directory: %w", err)
		}
	}
	if _, err := os.Stat(dir); err == nil {
		lock, err := acquireLock(ctx, dir)
		if err != nil {
			return err
		}
		defer lock.Unlock()
	}

	database, err := openHistory(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	rest := api.NewGitHubClient(token)
	repo, err := rest.GetRepository(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}
	if err := database.SaveRepository(repo); err != nil {
		log.Printf("Warning: %v", err)
	}

	syncer := sync.New(rest, api.NewGraphQLClient(token))
	syncer.SetOutput(out)
	opts := sync.Options{
		DryRun:          f.dryRun,
		PreferLocal:     f.preferLocal || cfg.PreferLocal,
		State:           cfg.IssueState,
		SkipDiscussions: cfg.SkipDiscussions,
	}

	for _, direction := range directions {
		// Reopen so push sees what pull wrote
		st, err := store.Open(dir)
		if err != nil {
			return err
		}

		started := time.Now()
		var summary *sync.Summary
		if direction == "pull" {
			summary, err = syncer.Pull(ctx, owner, name, st, opts)
		} else {
			summary, err = syncer.Push(ctx, owner, name, st, opts)
		}
		recordRun(database, repo.FullName, direction, opts.DryRun, started, summary, err)
		if err != nil {
			return fmt.Errorf("%s failed: %w", direction, err)
		}
		fmt.Fprintln(out, summary)
	}
	return nil
}

// acquireLock takes the directory's exclusive lock, waiting up to lockTimeout
// for a concurrent run to finish.
func acquireLock(ctx context.Context, dir string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(dir, lockFileName))

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockPollInterval)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("failed to lock %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s is in use by another ghsync run", dir)
	}
	return lock, nil
}

func openHistory(path string) (*db.DB, error) {
	database, err := db.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Initialize(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return database, nil
}

// recordRun writes the run to the history database. History is best effort.
func recordRun(database *db.DB, repo, direction string, dryRun bool, started time.Time, summary *sync.Summary, runErr error) {
	run := &db.Run{
		Repository: repo,
		Direction:  direction,
		DryRun:     dryRun,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if summary != nil {
		run.Issues = db.Counts(summary.Issues)
		run.Ideas = db.Counts(summary.Ideas)
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := database.RecordRun(run); err != nil {
		log.Printf("Warning: failed to record %s run: %v", direction, err)
	}
}
