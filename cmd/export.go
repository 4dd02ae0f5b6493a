// =============================================================================
// Invoice Export - Export Command
// =============================================================================
//
// This file defines the 'export' command, the main command of the tool. It
// orchestrates the export pipeline for the input directory.
//
// COMMAND USAGE:
//   invoice-export export [flags]
//
// FLAGS:
//   --dry-run  : Run the pipeline without writing or archiving files
//   --file     : Export a single file instead of the input directory
//   --profile  : Use this export profile for every file
//   --format   : Override the export format of the profile
//   --batch    : Encode all files into one output with this base name
//
// PROCESSING PIPELINE:
//   1. Load the configuration and export profiles
//   2. Discover invoice files in the input directory
//   3. Export each file concurrently (or all files as one batch)
//   4. Archive processed files
//   5. Print and write the processing summary
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-export/internal/converter"
	"github.com/ginjaninja78/invoice-export/internal/invoiceparser"
	"github.com/ginjaninja78/invoice-export/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// dryRun runs the pipeline without writing output files.
	dryRun bool

	// filePath is a single file to export.
	filePath string

	// profileCode forces an export profile.
	profileCode string

	// exportFormat overrides the export format.
	exportFormat string

	// batchName encodes all files into one output.
	batchName string
)

// =============================================================================
// EXPORT COMMAND DEFINITION
// =============================================================================

// exportCmd represents the 'export' command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export invoice files from the input directory",
	Long: `The export command scans the input directory for invoice files, matches
them to an export profile, and encodes them in the profile's format.

Files are exported concurrently. By default an error in one file does not
stop the others (continue_on_error in the main configuration).

On success:
  - The export is placed in the output directory
  - The input is moved to the input archive
  - A copy of the export is placed in the output archive

On error:
  - An error log is created in the output directory
  - The input remains in the input directory

With --batch all files are encoded into one output, e.g. a single TAKS
file for a shipment.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runExport(ctx)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the pipeline without writing or archiving files")
	exportCmd.Flags().StringVar(&filePath, "file", "", "Export a single file instead of the input directory")
	exportCmd.Flags().StringVar(&profileCode, "profile", "", "Use this export profile for every file")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Override the export format (taks, json, customs-json, xml, csv)")
	exportCmd.Flags().StringVar(&batchName, "batch", "", "Encode all files into one output with this base name")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runExport orchestrates the export pipeline.
func runExport(ctx context.Context) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	fmt.Println("=== Invoice Export ===")

	cfg, profiles, err := loadConfigAndProfiles()
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d export profile(s)\n", len(profiles))

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	files.UseTimestampSubdirs = true
	files.ArchiveOnSuccess = !dryRun
	if !dryRun {
		if err := files.EnsureDirectories(); err != nil {
			return err
		}
	}

	opts := converter.OptionsFromConfig(cfg)
	opts.DryRun = dryRun
	opts.ProfileCode = profileCode
	opts.Format = exportFormat

	conv, err := converter.New(files, profiles, opts, slog.Default())
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if filePath != "" {
		if !utils.FileExists(filePath) {
			return fmt.Errorf("file not found: %s", filePath)
		}
		inputFiles = []string{filePath}
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
	fmt.Printf("Found %d file(s) to export\n", len(inputFiles))

	// =========================================================================
	// STEP 3: EXPORT
	// =========================================================================

	var (
		results  []converter.Result
		batchErr error
	)
	if batchName != "" {
		batch := conv.ProcessBatch(ctx, inputFiles, batchName)
		results = batch.Files
		batchErr = batch.Error
		if batch.Success {
			fmt.Printf("  ✓ batch %s -> %s (%d invoices, %d line items)\n",
				batchName, batch.OutputFile, batch.Invoices, batch.LineItems)
		} else {
			fmt.Printf("  ✗ batch %s: %v\n", batchName, batch.Error)
		}
		printResults(results)
	} else {
		bar := progressbar.NewOptions(len(inputFiles),
			progressbar.OptionSetDescription("Exporting invoices"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		results = conv.ProcessFiles(ctx, inputFiles, func(converter.Result) {
			bar.Add(1)
		})
		bar.Finish()
		fmt.Println()
		printResults(results)
	}

	// =========================================================================
	// STEP 4: SUMMARY
	// =========================================================================

	summary := converter.Summarize(results, startTime, time.Now())

	fmt.Println("\n=== Export Complete ===")
	fmt.Printf("Total files:     %d\n", summary.TotalFiles)
	fmt.Printf("Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Printf("Errors:          %d\n", summary.FailedFiles)
	fmt.Printf("Invoices:        %d\n", summary.TotalInvoices)
	fmt.Printf("Line items:      %d\n", summary.TotalLineItems)
	fmt.Printf("Warnings:        %d\n", summary.Warnings)
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))

	if dryRun {
		fmt.Println("\nDry run: nothing was written or archived.")
	} else {
		summaryPath, err := utils.WriteSummaryLog(summary, cfg.OutputDir)
		if err != nil {
			slog.Warn("failed to write summary", "error", err)
		} else {
			fmt.Printf("Summary:         %s\n", summaryPath)
		}
	}

	if batchErr != nil {
		return fmt.Errorf("batch %s failed: %w", batchName, batchErr)
	}
	if summary.FailedFiles > 0 {
		if !dryRun {
			fmt.Println("\nErrors have been logged to the output directory.")
		}
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// printResults prints one line per file.
func printResults(results []converter.Result) {
	for _, r := range results {
		name := filepath.Base(r.FilePath)
		if r.Success {
			if r.OutputFile != "" {
				fmt.Printf("  ✓ %s -> %s\n", name, filepath.Base(r.OutputFile))
			} else {
				fmt.Printf("  ✓ %s\n", name)
			}
			continue
		}
		fmt.Printf("  ✗ %s: %v\n", name, r.Error)
	}
}
