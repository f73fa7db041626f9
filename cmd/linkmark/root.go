package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkmark.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkmark",
		Short: "Mark external links in site content",
		Long: `linkmark classifies every link of a site's content as internal or external
and annotates the external ones with target, rel and class attributes and an
optional icon.

Server mode rewrites finished HTML and Markdown once (rewrite, serve).
Client mode leaves content untouched and annotates anchors in a live page as
it changes (live, and the bootstrap payload exposed by serve).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to a rotated file")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .linkmark in current or home directory)")
	cmd.PersistentFlags().StringP("site", "s", "",
		"Canonical base URL of the site, e.g. https://example.com")
	cmd.PersistentFlags().String("icon-dir", "",
		"Directory of extra SVG icons (<name>.svg) overriding the bundled ones")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory of the settings database (default: XDG data directory)")

	// Add subcommands
	cmd.AddCommand(NewRewriteCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewLiveCmd())
	cmd.AddCommand(NewSettingsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
