package cmd

import (
	"errors"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/smazurov/viewstream/internal/version"
)

// DefaultRepository is where releases are published.
const DefaultRepository = "smazurov/viewstream"

// CreateUpdateCmd creates the update command, which replaces the running
// binary with the latest release.
func CreateUpdateCmd() *cobra.Command {
	var (
		repository string
		prerelease bool
		checkOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update viewstream to the latest release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
			if err != nil {
				return fmt.Errorf("failed to create GitHub source: %w", err)
			}
			updater, err := selfupdate.NewUpdater(selfupdate.Config{
				Source:     source,
				Prerelease: prerelease,
			})
			if err != nil {
				return fmt.Errorf("failed to create updater: %w", err)
			}

			release, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(repository))
			if err != nil {
				return fmt.Errorf("failed to check for updates: %w", err)
			}
			if !found {
				return errors.New("repository not found or has no releases")
			}

			// dev builds are always outdated
			current := version.Version
			if current != "dev" && !release.GreaterThan(current) {
				fmt.Fprintf(out, "Already up to date (%s)\n", current)
				return nil
			}
			fmt.Fprintf(out, "Update available: %s -> %s\n", current, release.Version())
			if checkOnly {
				if release.ReleaseNotes != "" {
					fmt.Fprintf(out, "\n%s\n", release.ReleaseNotes)
				}
				return nil
			}

			exe, err := selfupdate.ExecutablePath()
			if err != nil {
				return fmt.Errorf("failed to get executable path: %w", err)
			}
			if err := updater.UpdateTo(ctx, release, exe); err != nil {
				return fmt.Errorf("failed to apply update: %w", err)
			}
			fmt.Fprintf(out, "Updated to %s, restart the service to use it\n", release.Version())
			return nil
		},
	}

	cmd.Flags().StringVar(&repository, "repository", DefaultRepository, "GitHub repository slug")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update exists")
	return cmd
}
