package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/liverec/liverec/internal/version"
)

const updateRepository = "liverec/liverec"

// CreateUpdateCmd creates the update command: replace the running binary
// with the latest GitHub release.
func CreateUpdateCmd() *cobra.Command {
	var checkOnly bool
	var prerelease bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update liverec to the latest release",
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
			if err != nil {
				fmt.Fprintf(os.Stderr, "update: %v\n", err)
				os.Exit(1)
			}

			updater, err := selfupdate.NewUpdater(selfupdate.Config{
				Source:     source,
				Prerelease: prerelease,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "update: %v\n", err)
				os.Exit(1)
			}

			release, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(updateRepository))
			if err != nil {
				fmt.Fprintf(os.Stderr, "update: check failed: %v\n", err)
				os.Exit(1)
			}
			if !found {
				fmt.Fprintln(os.Stderr, "update: no releases found")
				os.Exit(1)
			}

			current := version.Version
			// A dev build is always considered outdated.
			if current != "dev" && !release.GreaterThan(current) {
				fmt.Printf("liverec %s is up to date\n", current)
				return
			}

			fmt.Printf("update available: %s -> %s\n", current, release.Version())
			if checkOnly {
				return
			}

			exe, err := selfupdate.ExecutablePath()
			if err != nil {
				fmt.Fprintf(os.Stderr, "update: %v\n", err)
				os.Exit(1)
			}

			if err := updater.UpdateTo(ctx, release, exe); err != nil {
				fmt.Fprintf(os.Stderr, "update: apply failed: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("updated to %s\n", release.Version())
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for a new release, do not apply")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Consider prereleases")

	return cmd
}
