package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/ghsync/config"
	"github.com/wesm/ghsync/internal/api"
	"github.com/wesm/ghsync/internal/db"
	"github.com/wesm/ghsync/internal/store"
	"github.com/wesm/ghsync/internal/sync"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "ghsync",
		Short: "Two-way sync between GitHub issues/discussions and local YAML files",
		Long: `ghsync mirrors a repository's issues and discussions into one YAML file
per record, and pushes local edits back with a three-way merge.

Authentication:
  1. github_token in the config file or the ` + config.EnvGithubToken + ` environment variable
  2. GitHub CLI: Run 'gh auth login'
  3. Environment variable: Set GITHUB_TOKEN`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "Path to configuration file")

	rootCmd.AddCommand(
		newInitCmd(),
		newAddRepoCmd(),
		newPullCmd(),
		newPushCmd(),
		newIssuesCmd(),
		newStatusCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var rle *api.RateLimitError
		if errors.As(err, &rle) {
			fmt.Fprintf(os.Stderr, "Error: GitHub rate limit exceeded, resets at %s\n", rle.ResetTime.Local().Format(time.RFC1123))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file if it doesn't exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := config.CreateDefaultConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to create default configuration: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration at %s\n", configPath)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at %s\n", configPath)
			}
			return nil
		},
	}
}

func newAddRepoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-repo <owner/repo>",
		Short: "Add a repository to the configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := sync.ParseRepositoryString(args[0]); err != nil {
				return err
			}
			added, err := config.AddRepository(configPath, args[0])
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			if added {
				fmt.Fprintf(cmd.OutOrStdout(), "Added repository %s to configuration\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Repository %s already exists in configuration\n", args[0])
			}
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local records and sync history for configured repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			database, err := openHistory(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer database.Close()

			out := cmd.OutOrStdout()
			if len(cfg.Repositories) == 0 {
				fmt.Fprintf(out, "No repositories configured. Use 'ghsync add-repo owner/name'.\n")
				return nil
			}
			for _, repo := range cfg.Repositories {
				owner, name, err := sync.ParseRepositoryString(repo)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", repo, err)
					continue
				}
				if err := printStatus(cmd, cfg, database, owner, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, cfg *config.Config, database *db.DB, owner, name string) error {
	out := cmd.OutOrStdout()
	fullName := owner + "/" + name
	dir := cfg.RecordsPath("", owner, name)

	st, err := store.Open(dir)
	if err != nil {
		return err
	}
	pending := 0
	for _, rec := range st.Records() {
		if rec.IsNew() {
			pending++
		}
	}

	fmt.Fprintln(out, fullName)
	repo, err := database.GetRepositoryByFullName(fullName)
	if err != nil {
		return err
	}
	if repo != nil {
		fmt.Fprintf(out, "  github:    id %d, node %s\n", repo.ID, repo.NodeID)
	} else {
		fmt.Fprintf(out, "  github:    not synced yet\n")
	}
	fmt.Fprintf(out, "  records:   %s (%d, %d not yet created remotely)\n", relPath(dir), len(st.Records()), pending)
	for _, direction := range []string{"pull", "push"} {
		last, err := database.GetLastSyncTime(fullName, direction)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  last %s: %s\n", direction, formatWhen(last))
	}

	runs, err := database.ListRuns(fullName, 5)
	if err != nil {
		return err
	}
	for _, run := range runs {
		line := fmt.Sprintf("    %s %-4s issues %d/%d/%d/%d ideas %d/%d/%d/%d",
			run.StartedAt.Local().Format("2006-01-02 15:04"), run.Direction,
			run.Issues.Created, run.Issues.Updated, run.Issues.Unchanged, run.Issues.Skipped,
			run.Ideas.Created, run.Ideas.Updated, run.Ideas.Unchanged, run.Ideas.Skipped)
		if run.DryRun {
			line += " (dry run)"
		}
		if run.Error != "" {
			line += " failed: " + run.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func relPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil {
		return rel
	}
	return path
}
