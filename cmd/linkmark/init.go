package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkmark/internal/config"
)

//go:embed templates/linkmark.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new linkmark configuration file",
		Long: `Initialize creates a new .linkmark configuration file in the current directory.

The generated file includes:
- The default link annotation settings
- Commented examples for site-specific overrides
- Documentation for all available options

Examples:
  # Create .linkmark in current directory
  linkmark init

  # Create config file at a specific path
  linkmark init -o myconfig.yaml

  # Force overwrite existing file
  linkmark init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/linkmark.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	// The template must stay loadable.
	if _, err := config.ParseFile(content); err != nil {
		return fmt.Errorf("invalid config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Processing mode (server or client)")
	fmt.Fprintln(out, "  - Icon type and position")
	fmt.Fprintln(out, "  - Excluded classes and domains per site")

	return nil
}
