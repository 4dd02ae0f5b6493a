// =============================================================================
// Invoice Export - Converter Module
// =============================================================================
//
// This module orchestrates the export pipeline for input files, from parsing
// to archival.
//
// EXPORT PIPELINE (per file):
//   1. Resolve the export profile (forced, matched by file name, or default)
//   2. Parse the invoices (JSON, YAML, XLSX, CSV)
//   3. Apply the profile's field transformations
//   4. Validate (warnings by default, errors with strict_validation)
//   5. Encode with the profile's exporter
//   6. Write the output file
//   7. Archive the input and a copy of the output
//
// BATCH MODE:
//   ProcessBatch runs steps 1-4 for every file and encodes all invoices
//   into a single output, e.g. one TAKS file for a whole shipment.
//
// CONCURRENCY:
//   ProcessFiles runs up to MaxConcurrency files at a time. A Converter is
//   safe for concurrent use.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ginjaninja78/invoice-export/internal/config"
	"github.com/ginjaninja78/invoice-export/internal/export"
	"github.com/ginjaninja78/invoice-export/internal/invoiceparser"
	"github.com/ginjaninja78/invoice-export/internal/taks"
	"github.com/ginjaninja78/invoice-export/internal/types"
	"github.com/ginjaninja78/invoice-export/internal/validation"
	"github.com/ginjaninja78/invoice-export/pkg/utils"
)

// Error types reported in Result.ErrorType and the error logs.
const (
	ErrorTypeProfile    = "profile"
	ErrorTypeParse      = "parse"
	ErrorTypeTransform  = "transform"
	ErrorTypeValidation = "validation"
	ErrorTypeExport     = "export"
	ErrorTypeWrite      = "write"
	ErrorTypeSkipped    = "skipped"
)

// ErrValidationFailed is wrapped by the error of a file rejected by strict
// validation.
var ErrValidationFailed = errors.New("validation failed")

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result is the outcome of exporting a single file.
type Result struct {
	// FilePath is the input file.
	FilePath string

	// OutputFile is the written file. In a dry run it is the file name that
	// would have been written. Empty on failure.
	OutputFile string

	// ArchivePath is where the input was moved to.
	ArchivePath string

	// ErrorLog is the error log written for a failed file.
	ErrorLog string

	// Profile and Format are the export profile code and format used.
	Profile string
	Format  string

	Success   bool
	Error     error
	ErrorType string

	// Validation holds the pre-export checks, if they ran.
	Validation *validation.ValidationResult

	// Warnings lists the fields the TAKS encoder defaulted.
	Warnings []taks.FieldWarning

	Stats ProcessingStats
}

// ProcessingStats contains statistics about one file.
type ProcessingStats struct {
	Invoices         int
	LineItems        int
	ValidationIssues int
	DefaultedFields  int
	ProcessingTime   time.Duration
}

// BatchResult is the outcome of ProcessBatch.
type BatchResult struct {
	// OutputFile is the single written file.
	OutputFile string

	// Files holds the per-file parse and validation outcome. Files that
	// failed are not part of the output.
	Files []Result

	Invoices  int
	LineItems int
	Warnings  []taks.FieldWarning

	Success bool
	Error   error
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Options controls a Converter.
type Options struct {
	// FileNameFormat names the outputs. See utils.GenerateOutputFileName.
	FileNameFormat string

	// MaxConcurrency bounds ProcessFiles. Values below 1 mean 1.
	MaxConcurrency int

	// ContinueOnError keeps processing other files after a failure.
	ContinueOnError bool

	// DryRun parses, validates and encodes without writing or archiving.
	DryRun bool

	// ProfileCode forces a profile instead of matching by file name.
	ProfileCode string

	// Format overrides the profile's export format.
	Format string

	// Sequencer supplies TAKS timestamps. Nil uses the wall clock.
	Sequencer *taks.Sequencer

	// Clock supplies the time used in output file names. Nil is time.Now.
	Clock func() time.Time
}

// OptionsFromConfig derives converter options from the main configuration.
func OptionsFromConfig(cfg *config.MainConfig) Options {
	return Options{
		FileNameFormat:  cfg.FileNameFormat,
		MaxConcurrency:  cfg.MaxConcurrency,
		ContinueOnError: cfg.ShouldContinueOnError(),
	}
}

// Converter exports invoice files.
type Converter struct {
	opts         Options
	profiles     map[string]*config.ExportProfile
	transformers map[string]*Transformer
	files        *utils.FileManager
	logger       *slog.Logger
}

// New creates a Converter.
//
// PARAMETERS:
//   - files: Supplies the output and archive directories.
//   - profiles: The loaded export profiles, keyed by code. May be empty.
//   - opts: Run options.
//   - logger: Receives progress and warnings. Nil uses slog.Default().
//
// RETURNS:
//   - An error if a forced profile or format is unknown, or a profile's
//     transformation rules are invalid.
func New(files *utils.FileManager, profiles map[string]*config.ExportProfile, opts Options, logger *slog.Logger) (*Converter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.Sequencer == nil {
		opts.Sequencer = taks.NewSequencer(nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if profiles == nil {
		profiles = map[string]*config.ExportProfile{}
	}

	opts.Format = strings.ToLower(strings.TrimSpace(opts.Format))
	if opts.Format != "" && !config.IsKnownFormat(opts.Format) {
		return nil, fmt.Errorf("unknown export format %q", opts.Format)
	}
	if opts.ProfileCode != "" && opts.ProfileCode != config.DefaultProfile().ProfileCode {
		if _, ok := profiles[opts.ProfileCode]; !ok {
			return nil, fmt.Errorf("unknown profile %q", opts.ProfileCode)
		}
	}

	c := &Converter{
		opts:         opts,
		profiles:     profiles,
		transformers: make(map[string]*Transformer, len(profiles)),
		files:        files,
		logger:       logger,
	}

	for code, profile := range profiles {
		t, err := NewTransformer(profile.Transformations)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", code, err)
		}
		c.transformers[code] = t
	}

	return c, nil
}

// =============================================================================
// SINGLE FILE
// =============================================================================

// ProcessFile runs the export pipeline for one file.
func (c *Converter) ProcessFile(ctx context.Context, path string) Result {
	start := time.Now()
	result := Result{FilePath: path}
	logger := c.logger.With("file", filepath.Base(path))

	if err := ctx.Err(); err != nil {
		return c.fail(result, logger, ErrorTypeSkipped, err)
	}

	// =========================================================================
	// STEPS 1-4: PROFILE, PARSE, TRANSFORM, VALIDATE
	// =========================================================================

	profile, invoices, errType, err := c.load(path, &result, logger)
	if err != nil {
		return c.fail(result, logger, errType, err)
	}

	// =========================================================================
	// STEP 5: ENCODE
	// =========================================================================

	exporter, err := c.exporter(profile, logger)
	if err != nil {
		return c.fail(result, logger, ErrorTypeExport, err)
	}

	out, err := exporter.Export(invoices)
	if err != nil {
		return c.fail(result, logger, ErrorTypeExport, fmt.Errorf("failed to export: %w", err))
	}

	result.Warnings = out.Warnings
	result.Stats.Invoices = out.Invoices
	result.Stats.LineItems = out.LineItems
	result.Stats.DefaultedFields = len(out.Warnings)

	// =========================================================================
	// STEPS 6-7: WRITE AND ARCHIVE
	// =========================================================================

	name := utils.GenerateOutputFileName(c.opts.FileNameFormat, utils.NameParams{
		Name:    fileStem(path),
		Invoice: invoices[0].InvoiceNumber,
		Ext:     exporter.Extension(),
		Time:    c.opts.Clock(),
	})

	if c.opts.DryRun {
		result.OutputFile = name
		logger.Info("dry run, output not written", "output", name, "bytes", len(out.Data))
	} else {
		outputPath, err := c.files.WriteOutputFile(name, out.Data)
		if err != nil {
			return c.fail(result, logger, ErrorTypeWrite, err)
		}
		result.OutputFile = outputPath
		result.ArchivePath = c.archive(path, outputPath, logger)
	}

	result.Success = true
	result.Stats.ProcessingTime = time.Since(start)
	logger.Info("exported",
		"output", filepath.Base(result.OutputFile),
		"profile", result.Profile,
		"format", result.Format,
		"invoices", result.Stats.Invoices,
		"line_items", result.Stats.LineItems,
		"defaulted_fields", result.Stats.DefaultedFields,
	)

	return result
}

// ValidateFile runs steps 1-4 for one file. Nothing is written or archived.
func (c *Converter) ValidateFile(path string) Result {
	start := time.Now()
	result := Result{FilePath: path}
	logger := c.logger.With("file", filepath.Base(path))

	_, invoices, errType, err := c.load(path, &result, logger)
	result.Stats.ProcessingTime = time.Since(start)
	if err != nil {
		result.Error = err
		result.ErrorType = errType
		return result
	}

	result.Success = true
	result.Stats.Invoices = len(invoices)
	for _, inv := range invoices {
		result.Stats.LineItems += len(inv.LineItems)
	}
	return result
}

// load resolves the profile, parses, transforms and validates one file.
func (c *Converter) load(path string, result *Result, logger *slog.Logger) (*config.ExportProfile, []*types.Invoice, string, error) {
	profile, err := c.resolveProfile(path)
	if err != nil {
		return nil, nil, ErrorTypeProfile, err
	}
	result.Profile = profile.ProfileCode
	result.Format = profile.Format
	logger.Debug("using profile", "profile", profile.ProfileCode, "format", profile.Format)

	invoices, err := invoiceparser.Parse(path)
	if err != nil {
		return nil, nil, ErrorTypeParse, fmt.Errorf("failed to parse: %w", err)
	}
	logger.Debug("parsed invoices", "invoices", len(invoices))

	if err := c.transformers[profile.ProfileCode].Apply(invoices); err != nil {
		return nil, nil, ErrorTypeTransform, fmt.Errorf("failed to apply transformations: %w", err)
	}

	validator := validation.NewValidatorWithOptions(validation.ValidationOptions{
		Strict:                 profile.StrictValidation,
		RequireCountryOfOrigin: true,
		RequireHSCode:          true,
	})
	vr := validator.ValidateAll(invoices)
	result.Validation = vr
	result.Stats.ValidationIssues = len(vr.Errors)

	for _, issue := range vr.Errors {
		logger.Warn("validation issue",
			"severity", issue.Severity,
			"invoice", issue.InvoiceNumber,
			"line", issue.LineItem,
			"field", issue.Field,
			"message", issue.Message,
		)
	}
	if vr.ErrorCount > 0 {
		return nil, nil, ErrorTypeValidation, fmt.Errorf("%w with %d errors", ErrValidationFailed, vr.ErrorCount)
	}

	return profile, invoices, "", nil
}

// resolveProfile picks the forced profile, the first profile matching the
// file name, or the default profile, then applies the format override.
func (c *Converter) resolveProfile(path string) (*config.ExportProfile, error) {
	var profile *config.ExportProfile

	switch {
	case c.opts.ProfileCode != "":
		profile = c.profiles[c.opts.ProfileCode]
		if profile == nil && c.opts.ProfileCode == config.DefaultProfile().ProfileCode {
			profile = config.DefaultProfile()
		}
		if profile == nil {
			return nil, fmt.Errorf("unknown profile %q", c.opts.ProfileCode)
		}
	default:
		profile = config.FindProfile(path, c.profiles)
		if profile == nil {
			profile = config.DefaultProfile()
		}
	}

	if c.opts.Format != "" && c.opts.Format != profile.Format {
		overridden := *profile
		overridden.Format = c.opts.Format
		profile = &overridden
	}
	return profile, nil
}

func (c *Converter) exporter(profile *config.ExportProfile, logger *slog.Logger) (export.Exporter, error) {
	return export.New(profile.Format, export.Options{
		TAKS:      profile.TAKS,
		Sequencer: c.opts.Sequencer,
		Logger:    logger,
	})
}

// archive moves the input and copies the output. Failures are logged and do
// not fail the export.
func (c *Converter) archive(inputPath, outputPath string, logger *slog.Logger) string {
	if _, err := c.files.ArchiveOutputFile(outputPath); err != nil {
		logger.Warn("failed to archive output", "error", err)
	}
	archived, err := c.files.ArchiveInputFile(inputPath)
	if err != nil {
		logger.Warn("failed to archive input", "error", err)
		return ""
	}
	return archived
}

// fail records the failure, logs it and writes the file's error log.
func (c *Converter) fail(result Result, logger *slog.Logger, errType string, err error) Result {
	result.Success = false
	result.Error = err
	result.ErrorType = errType

	if errType == ErrorTypeSkipped {
		logger.Debug("skipped", "error", err)
		return result
	}
	logger.Error("export failed", "type", errType, "error", err)

	if c.opts.DryRun {
		return result
	}
	logPath, logErr := utils.WriteErrorLog(errorLogEntries(result), c.files.OutputDir)
	if logErr != nil {
		logger.Warn("failed to write error log", "error", logErr)
	}
	result.ErrorLog = logPath
	return result
}

// errorLogEntries converts a failed result into error log entries: the
// failure itself followed by every validation issue.
func errorLogEntries(result Result) []utils.ErrorLogEntry {
	now := time.Now()
	fileName := filepath.Base(result.FilePath)

	entries := []utils.ErrorLogEntry{{
		Timestamp:    now,
		FileName:     fileName,
		ErrorType:    result.ErrorType,
		ErrorMessage: result.Error.Error(),
	}}

	if result.Validation != nil {
		for _, issue := range result.Validation.Errors {
			entries = append(entries, utils.ErrorLogEntry{
				Timestamp:     now,
				FileName:      fileName,
				ErrorType:     ErrorTypeValidation + "/" + issue.Severity,
				ErrorMessage:  issue.Message,
				InvoiceNumber: issue.InvoiceNumber,
				LineItem:      issue.LineItem,
				FieldName:     issue.Field,
				FieldValue:    issue.Value,
			})
		}
	}
	return entries
}

// =============================================================================
// CONCURRENT PROCESSING
// =============================================================================

// ProcessFiles exports the files concurrently, at most MaxConcurrency at a
// time. onResult, if set, is called from the calling goroutine as each file
// finishes. Without ContinueOnError the first failure cancels the files
// that have not started yet.
//
// RETURNS:
//   - One Result per path, in the order of paths.
func (c *Converter) ProcessFiles(ctx context.Context, paths []string, onResult func(Result)) []Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type indexed struct {
		index  int
		result Result
	}

	var wg sync.WaitGroup
	results := make(chan indexed, len(paths))
	slots := make(chan struct{}, c.opts.MaxConcurrency)

	for i, path := range paths {
		wg.Add(1)

		go func(i int, path string) {
			defer wg.Done()

			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				results <- indexed{i, c.fail(Result{FilePath: path}, c.logger, ErrorTypeSkipped, ctx.Err())}
				return
			}
			defer func() { <-slots }()

			r := c.ProcessFile(ctx, path)
			if !r.Success && r.ErrorType != ErrorTypeSkipped && !c.opts.ContinueOnError {
				cancel()
			}
			results <- indexed{i, r}
		}(i, path)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]Result, len(paths))
	for r := range results {
		ordered[r.index] = r.result
		if onResult != nil {
			onResult(r.result)
		}
	}
	return ordered
}

// =============================================================================
// BATCH PROCESSING
// =============================================================================

// ProcessBatch encodes the invoices of all files into one output named after
// name. The profile is the forced one or the one of the first file; its
// format and TAKS options apply to the whole batch.
//
// Files failing to parse or validate are left out and stay in the input
// directory. Without ContinueOnError any such failure aborts the batch.
func (c *Converter) ProcessBatch(ctx context.Context, paths []string, name string) BatchResult {
	batch := BatchResult{}
	logger := c.logger.With("batch", name)

	var (
		profile  *config.ExportProfile
		invoices []*types.Invoice
		included []string
	)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			batch.Error = err
			return batch
		}

		result := Result{FilePath: path}
		fileLogger := logger.With("file", filepath.Base(path))
		p, parsed, errType, err := c.load(path, &result, fileLogger)
		if err != nil {
			result = c.fail(result, fileLogger, errType, err)
			batch.Files = append(batch.Files, result)
			if !c.opts.ContinueOnError {
				batch.Error = fmt.Errorf("%s: %w", filepath.Base(path), err)
				return batch
			}
			continue
		}

		if profile == nil {
			profile = p
		}
		result.Success = true
		result.Profile = profile.ProfileCode
		result.Format = profile.Format
		result.Stats.Invoices = len(parsed)
		for _, inv := range parsed {
			result.Stats.LineItems += len(inv.LineItems)
		}
		batch.Files = append(batch.Files, result)

		invoices = append(invoices, parsed...)
		included = append(included, path)
	}

	if len(invoices) == 0 {
		batch.Error = fmt.Errorf("%w: no exportable invoices in batch", types.ErrMalformedInput)
		return batch
	}

	exporter, err := c.exporter(profile, logger)
	if err != nil {
		batch.Error = err
		return batch
	}
	out, err := exporter.Export(invoices)
	if err != nil {
		batch.Error = fmt.Errorf("failed to export batch: %w", err)
		return batch
	}

	batch.Invoices = out.Invoices
	batch.LineItems = out.LineItems
	batch.Warnings = out.Warnings

	fileName := utils.GenerateOutputFileName(c.opts.FileNameFormat, utils.NameParams{
		Name:    name,
		Invoice: invoices[0].InvoiceNumber,
		Ext:     exporter.Extension(),
		Time:    c.opts.Clock(),
	})

	if c.opts.DryRun {
		batch.OutputFile = fileName
		batch.Success = true
		logger.Info("dry run, batch not written", "output", fileName, "invoices", batch.Invoices)
		return batch
	}

	outputPath, err := c.files.WriteOutputFile(fileName, out.Data)
	if err != nil {
		batch.Error = err
		return batch
	}
	batch.OutputFile = outputPath

	if _, err := c.files.ArchiveOutputFile(outputPath); err != nil {
		logger.Warn("failed to archive output", "error", err)
	}
	for i, path := range included {
		archived, err := c.files.ArchiveInputFile(path)
		if err != nil {
			logger.Warn("failed to archive input", "file", filepath.Base(path), "error", err)
			continue
		}
		for j := range batch.Files {
			if batch.Files[j].FilePath == included[i] {
				batch.Files[j].ArchivePath = archived
				batch.Files[j].OutputFile = outputPath
			}
		}
	}

	batch.Success = true
	logger.Info("exported batch",
		"output", filepath.Base(outputPath),
		"files", len(included),
		"invoices", batch.Invoices,
		"line_items", batch.LineItems,
	)
	return batch
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summarize turns results into a processing summary for the summary log.
func Summarize(results []Result, start, end time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime:  start,
		EndTime:    end,
		TotalFiles: len(results),
	}

	for _, r := range results {
		if r.Success {
			summary.SuccessfulFiles++
			summary.TotalInvoices += r.Stats.Invoices
			summary.TotalLineItems += r.Stats.LineItems
			summary.Warnings += r.Stats.ValidationIssues + r.Stats.DefaultedFields
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   r.FilePath,
				OutputFile:  r.OutputFile,
				ArchivePath: r.ArchivePath,
				Format:      r.Format,
				Invoices:    r.Stats.Invoices,
				LineItems:   r.Stats.LineItems,
				ProcessTime: r.Stats.ProcessingTime,
			})
			continue
		}

		summary.FailedFiles++
		message := ""
		if r.Error != nil {
			message = r.Error.Error()
		}
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    r.FilePath,
			ErrorMessage: message,
			ErrorType:    r.ErrorType,
		})
	}

	return summary
}

// fileStem returns the base name of path without its extension.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
