// Package config provides configuration structures and utilities for linkmark.
// It defines the CLI options shared by the commands, the YAML configuration
// file with per-site link annotation settings, validation of those settings
// and the sanitization applied to settings imported from outside sources.
package config
