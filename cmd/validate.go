// =============================================================================
// Invoice Export - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It checks the configuration, the
// export profiles and the invoice files without exporting anything.
//
// COMMAND USAGE:
//   invoice-export validate [flags]
//
// FLAGS:
//   --file    : Validate a single file instead of the input directory
//   --profile : Validate every file against this export profile
//   --report  : Write the validation issues to this file
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-export/internal/converter"
	"github.com/ginjaninja78/invoice-export/internal/invoiceparser"
	"github.com/ginjaninja78/invoice-export/internal/validation"
	"github.com/ginjaninja78/invoice-export/pkg/utils"
)

var (
	// validateFile is a single file to validate.
	validateFile string

	// validateProfile forces an export profile.
	validateProfile string

	// reportPath receives the validation report.
	reportPath string
)

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and invoice files without exporting",
	Long: `The validate command loads the main configuration and the export profiles,
then parses, transforms and validates every invoice file in the input
directory. Nothing is written or archived.

The command fails if the configuration is invalid, a file cannot be parsed,
or a file is rejected by a strict profile.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFile, "file", "", "Validate a single file instead of the input directory")
	validateCmd.Flags().StringVar(&validateProfile, "profile", "", "Validate every file against this export profile")
	validateCmd.Flags().StringVar(&reportPath, "report", "", "Write the validation issues to this file")
}

// runValidate validates the configuration and the input files.
func runValidate() error {
	fmt.Println("=== Invoice Export: Validate ===")

	cfg, profiles, err := loadConfigAndProfiles()
	if err != nil {
		return err
	}
	fmt.Printf("Configuration OK, %d export profile(s)\n", len(profiles))
	for code, profile := range profiles {
		fmt.Printf("  - %s (%s): %s, patterns %v\n", code, profile.ProfileName, profile.Format, profile.FileMatchingPatterns)
	}

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	files.ArchiveOnSuccess = false

	opts := converter.OptionsFromConfig(cfg)
	opts.DryRun = true
	opts.ProfileCode = validateProfile

	conv, err := converter.New(files, profiles, opts, slog.Default())
	if err != nil {
		return err
	}

	var inputFiles []string
	if validateFile != "" {
		inputFiles = []string{validateFile}
	} else {
		inputFiles, err = files.DiscoverInputFiles(invoiceparser.IsSupported)
		if err != nil {
			return err
		}
	}

	if len(inputFiles) == 0 {
		fmt.Println("No invoice files found in the input directory.")
		return nil
	}

	var (
		issues []*validation.ValidationError
		failed int
	)
	for _, path := range inputFiles {
		result := conv.ValidateFile(path)
		name := filepath.Base(path)

		var fileIssues []*validation.ValidationError
		if result.Validation != nil {
			fileIssues = result.Validation.Errors
		}
		issues = append(issues, fileIssues...)

		if result.Success {
			fmt.Printf("  ✓ %s: %d invoice(s), %d line item(s), %d issue(s)\n",
				name, result.Stats.Invoices, result.Stats.LineItems, len(fileIssues))
			continue
		}
		failed++
		fmt.Printf("  ✗ %s: %v\n", name, result.Error)
	}

	fmt.Println()
	fmt.Print(validation.FormatErrors(issues))

	if reportPath != "" {
		if err := validation.WriteErrorLog(issues, reportPath); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", reportPath)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(inputFiles))
	}
	return nil
}
