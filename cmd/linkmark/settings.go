package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/linkmark/internal/config"
	"github.com/nao1215/linkmark/internal/model"
)

// NewSettingsCmd creates the settings command and its subcommands.
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the stored settings of a site",
		Long: `Settings manages per-site settings kept in the settings database.

Stored settings replace the configuration file settings of that site
entirely. Importing or resetting settings drops the cached bootstrap payload.

Examples:
  # Show the effective settings
  linkmark settings show --site https://example.com

  # Copy the settings to a file, edit it, and store it
  linkmark settings export --site https://example.com -o example.yaml
  linkmark settings import --site https://example.com example.yaml

  # Go back to the configuration file settings
  linkmark settings reset --site https://example.com`,
	}

	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsExportCmd())
	cmd.AddCommand(newSettingsImportCmd())
	cmd.AddCommand(newSettingsResetCmd())
	cmd.AddCommand(newSettingsListCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings and where they come from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(cmd, nil, func(env *environment) error {
				ctx := cmd.Context()
				host := env.provider.Site().Host

				rec, err := env.store.Get(ctx, host)
				if err != nil {
					return err
				}
				opts, err := env.provider.Options(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch {
				case rec != nil:
					fmt.Fprintf(out, "# %s: stored settings, updated %s\n", host, rec.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
				case env.cfg.File != nil:
					fmt.Fprintf(out, "# %s: configuration file settings\n", host)
				default:
					fmt.Fprintf(out, "# %s: built-in defaults\n", host)
				}
				return writeSettings(out, opts)
			})
		},
	}
}

func newSettingsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the effective settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			return withEnvironment(cmd, nil, func(env *environment) error {
				opts, err := env.provider.Options(cmd.Context())
				if err != nil {
					return err
				}
				out, closeFn, err := openOutput(output, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if err := writeSettings(out, opts); err != nil {
					_ = closeFn()
					return err
				}
				return closeFn()
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newSettingsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Store settings read from a YAML file",
		Long: `Import reads settings in the format written by export. Keys that are
missing keep their built-in defaults. Values are sanitized like any other
untrusted input: custom icon markup is cleaned and list entries are trimmed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			var sc config.SiteConfig
			if err := yaml.Unmarshal(data, &sc); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			return withEnvironment(cmd, nil, func(env *environment) error {
				saved, err := env.provider.Save(cmd.Context(), sc.Apply(model.DefaultOptions()), true)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Stored settings for %s\n", env.provider.Site().Host)
				return writeSettings(cmd.OutOrStdout(), saved)
			})
		},
	}
}

func newSettingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove the stored settings of a site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnvironment(cmd, nil, func(env *environment) error {
				host := env.provider.Site().Host
				deleted, err := env.provider.Reset(cmd.Context())
				if err != nil {
					return err
				}
				if deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed stored settings for %s\n", host)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "No stored settings for %s\n", host)
				}
				return nil
			})
		},
	}
}

func newSettingsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the sites with stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, nil)
			if err != nil {
				return err
			}
			// Listing needs no site; any valid identity opens the store.
			if cfg.SiteURL == "" {
				cfg.SiteURL = "http://localhost"
			}
			return withConfig(cmd, cfg, func(env *environment) error {
				hosts, err := env.store.Hosts(cmd.Context())
				if err != nil {
					return err
				}
				for _, h := range hosts {
					fmt.Fprintln(cmd.OutOrStdout(), h)
				}
				return nil
			})
		},
	}
}

// withEnvironment builds the config from the global flags and runs fn with
// an open environment.
func withEnvironment(cmd *cobra.Command, args []string, fn func(env *environment) error) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	return withConfig(cmd, cfg, fn)
}

func withConfig(cmd *cobra.Command, cfg *config.Config, fn func(env *environment) error) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()
	cmd.SetContext(ctx)

	env, err := openEnvironment(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}

// writeSettings writes opts in the configuration file format.
func writeSettings(w io.Writer, opts model.Options) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(config.FromOptions(opts)); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}

// readInput reads a file, or r when name is "-".
func readInput(name string, r io.Reader) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(r)
	}
	data, err := os.ReadFile(name) //nolint:gosec // user-provided path
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
