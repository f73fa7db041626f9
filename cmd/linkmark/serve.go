package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkmark/internal/config"
	"github.com/nao1215/linkmark/internal/server"
)

// adminTokenEnv names the environment variable read when --admin-token is
// not given, so the token stays out of process listings.
const adminTokenEnv = "LINKMARK_ADMIN_TOKEN"

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve site content with external links annotated",
		Long: `Serve publishes a directory over HTTP.

In server mode HTML responses are annotated before they are sent and Markdown
files are rendered to annotated HTML. In client mode content is served as is
and a page script reads the bootstrap payload from /linkmark/bootstrap.json.

Always available:
  /linkmark/style.css          stylesheet for annotated links
  /linkmark/icons/{name}.svg   bundled icons
  /linkmark/settings           effective settings (GET; PUT and DELETE with
                               the admin token)

Examples:
  # Serve public/ on :8080
  linkmark serve --site https://example.com --dir public

  # Share the bootstrap cache between instances
  linkmark serve --site https://example.com --redis redis://localhost:6379/0`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("dir", "d", ".", "Directory to serve")
	cmd.Flags().StringP("addr", "a", config.DefaultAddr, "Listen address")
	cmd.Flags().String("redis", "",
		"Cache bootstrap payloads in Redis (redis://host:6379/0)")
	cmd.Flags().Duration("bootstrap-ttl", config.DefaultBootstrapTTL,
		"Lifetime of cached bootstrap payloads")
	cmd.Flags().String("admin-token", "",
		"Bearer token allowing settings changes over HTTP (default: $"+adminTokenEnv+")")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	dir, err := flags.GetString("dir")
	if err != nil {
		return err
	}
	addr, err := flags.GetString("addr")
	if err != nil {
		return err
	}
	if cfg.RedisURL, err = flags.GetString("redis"); err != nil {
		return err
	}
	if cfg.BootstrapTTL, err = flags.GetDuration("bootstrap-ttl"); err != nil {
		return err
	}
	token, err := flags.GetString("admin-token")
	if err != nil {
		return err
	}
	if token == "" {
		token = os.Getenv(adminTokenEnv)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to open content directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	env, err := openEnvironment(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	srv := server.New(env.provider,
		server.WithRoot(dir),
		server.WithIcons(env.icons()),
		server.WithAdminToken(token),
		server.WithLogger(env.logger),
	)

	fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s for %s on %s\n", dir, env.provider.Site().Host, addr)
	return srv.ListenAndServe(ctx, addr)
}
