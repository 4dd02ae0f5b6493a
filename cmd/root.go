// =============================================================================
// Invoice Export - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoice-export)
//   ├── exportCmd   (invoice-export export)
//   ├── validateCmd (invoice-export validate)
//   ├── serveCmd    (invoice-export serve)
//   └── versionCmd  (invoice-export version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Setting up logging from the configuration
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-export/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "invoice-export",
	Short: "Invoice Export - Encode invoices as TAKS customs files and other formats",
	Long: `Invoice Export picks up invoice files (JSON, YAML, XLSX, CSV) from an input
directory and encodes them for customs and accounting systems.

Key Features:
  - TAKS customs records (00/10/20/40/50/99) with defaulted fields reported
  - JSON, customs JSON, XML and CSV exports
  - Per-customer export profiles with field transformations
  - Validation with warnings or strict rejection
  - Concurrent processing and archival of processed files
  - An HTTP endpoint for on-demand exports

Example Usage:
  invoice-export export                        # Export all files in the input directory
  invoice-export export --batch shipment-17    # Encode all files into one TAKS file
  invoice-export validate                      # Validate input files without exporting
  invoice-export serve --addr :8080            # Serve exports over HTTP`,

	SilenceUsage: true,

	// PersistentPreRunE sets up logging before any subcommand runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		slog.SetDefault(newLogger(cfg))
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadConfig loads the main configuration named by --config.
func loadConfig() (*config.MainConfig, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}
	return cfg, nil
}

// loadConfigAndProfiles loads the main configuration and its export profiles.
func loadConfigAndProfiles() (*config.MainConfig, map[string]*config.ExportProfile, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	profiles, err := config.LoadProfiles(cfg.ProfilesDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load export profiles: %w", err)
	}
	return cfg, profiles, nil
}

// newLogger builds the slog logger for the configured level and format.
// --verbose forces the debug level.
func newLogger(cfg *config.MainConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
