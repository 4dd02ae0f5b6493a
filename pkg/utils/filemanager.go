// =============================================================================
// Invoice Export - File Manager Utility
// =============================================================================
//
// This module provides the file handling around an export run:
//   - Input discovery
//   - Output writing and naming
//   - Archival of processed inputs and produced outputs
//   - Error and summary logs
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive after successful export
//   - Output files are copied to output_archive and stay in output
//   - Failed files remain in the input directory for a retry
//   - Error logs are written next to the outputs
//   - Existing files are never replaced: a taken name gets a -2, -3, ...
//     suffix before the extension
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the exporter.
type FileManager struct {
	// InputDir is where invoice files are picked up.
	InputDir string

	// OutputDir receives the exported files and logs.
	OutputDir string

	// InputArchiveDir receives inputs after a successful export.
	InputArchiveDir string

	// OutputArchiveDir receives copies of the exported files.
	OutputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in archives.
	// Example: input_archive/2025/02/20/invoice.json
	UseTimestampSubdirs bool

	// ArchiveOnSuccess enables archival. Dry runs switch it off.
	ArchiveOnSuccess bool
}

// NewFileManager creates a FileManager for the given directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
		ArchiveOnSuccess: true,
	}
}

// EnsureDirectories creates all managed directories.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir, fm.OutputArchiveDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the regular files of the input directory that
// accept reports as importable, sorted by name. A nil accept takes every
// file. Hidden files are skipped.
func (fm *FileManager) DiscoverInputFiles(accept func(path string) bool) ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(fm.InputDir, entry.Name())
		if accept == nil || accept(path) {
			files = append(files, path)
		}
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// WriteOutputFile writes data to OutputDir/name. The content goes to a
// temporary file first and is renamed onto a name reserved with
// reserveFile, so an existing export is never overwritten.
//
// RETURNS:
//   - The path of the written file. It differs from OutputDir/name when
//     that name was already taken.
func (fm *FileManager) WriteOutputFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(fm.OutputDir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close output file: %w", err)
	}

	path, err := reserveFile(fm.OutputDir, name)
	if err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to reserve output file name: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		os.Remove(path)
		return "", fmt.Errorf("failed to move output file into place: %w", err)
	}

	return path, nil
}

// maxNameAttempts bounds the suffixes tried by reserveFile.
const maxNameAttempts = 1000

// reserveFile creates an empty file dir/name with O_EXCL. When the name is
// taken it tries name-2, name-3, ... (suffix before the extension).
//
// RETURNS:
//   - The path of the reserved file.
func reserveFile(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 1; n <= maxNameAttempts; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			f.Close()
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", name, maxNameAttempts)
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the input archive.
//
// RETURNS:
//   - The path of the archived file, or filePath when archival is off.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath, err := fm.reserveArchivePath(fm.InputArchiveDir, filePath)
	if err != nil {
		return "", err
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			os.Remove(archivePath)
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// ArchiveOutputFile copies an output file to the output archive.
//
// RETURNS:
//   - The path of the archived copy, or filePath when archival is off.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath, err := fm.reserveArchivePath(fm.OutputArchiveDir, filePath)
	if err != nil {
		return "", err
	}

	if err := copyFile(filePath, archivePath); err != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

// reserveArchivePath creates the archive directory for filePath and
// reserves a free name in it.
func (fm *FileManager) reserveArchivePath(archiveDir, filePath string) (string, error) {
	target := fm.getArchivePath(archiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	path, err := reserveFile(filepath.Dir(target), filepath.Base(target))
	if err != nil {
		return "", fmt.Errorf("failed to reserve archive file name: %w", err)
	}
	return path, nil
}

func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := time.Now()
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(archiveDir, fileName)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// DefaultBaseName is the {name} of an export without a source file.
const DefaultBaseName = "invoice-data"

// DefaultFileNameFormat names exports invoice-data-<ISO8601>.<ext>.
const DefaultFileNameFormat = "{name}-{timestamp}.{ext}"

// NameParams are the values substituted into a file name format.
type NameParams struct {
	// Name is the base name, usually the input file without extension.
	// Empty means DefaultBaseName.
	Name string

	// Invoice is the (first) exported invoice number.
	Invoice string

	// Ext is the file extension, with or without the dot.
	Ext string

	// Time is the export time. Zero means now.
	Time time.Time
}

// FileTimestamp renders t as an ISO 8601 UTC timestamp with the colons
// replaced by '-', e.g. 2025-02-20T20-33-15.486Z.
func FileTimestamp(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"), ":", "-")
}

// GenerateOutputFileName builds an output file name.
//
// PARAMETERS:
//   - format: The name template. Empty means DefaultFileNameFormat.
//             Placeholders:
//               {name}      - base name (input file without extension)
//               {timestamp} - FileTimestamp of the export time
//               {uuid}      - a random UUID
//               {invoice}   - the invoice number
//               {ext}       - the extension without dot
//   - params: The placeholder values.
//
// RETURNS:
//   - The file name. The extension is appended when the template does not
//     produce it.
//
// EXAMPLE:
//   format: "{name}-{timestamp}.{ext}"
//   params: {Ext: ".txt"}
//   output: "invoice-data-2025-02-20T20-33-15.486Z.txt"
func GenerateOutputFileName(format string, params NameParams) string {
	if format == "" {
		format = DefaultFileNameFormat
	}
	if params.Name == "" {
		params.Name = DefaultBaseName
	}
	if params.Time.IsZero() {
		params.Time = time.Now()
	}
	ext := strings.TrimPrefix(params.Ext, ".")

	replacer := strings.NewReplacer(
		"{name}", safeNamePart(params.Name),
		"{timestamp}", FileTimestamp(params.Time),
		"{uuid}", uuid.New().String(),
		"{invoice}", safeNamePart(params.Invoice),
		"{ext}", ext,
	)
	result := replacer.Replace(format)

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), "."+strings.ToLower(ext)) {
		result += "." + ext
	}

	return result
}

// safeNamePart replaces path separators and characters Windows rejects.
func safeNamePart(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry is one problem found while exporting a file.
type ErrorLogEntry struct {
	Timestamp     time.Time
	FileName      string
	ErrorType     string
	ErrorMessage  string
	InvoiceNumber string
	LineItem      int
	FieldName     string
	FieldValue    string
}

// WriteErrorLog writes error entries to a log file in outputDir.
//
// RETURNS:
//   - The path to the log file, or "" when there is nothing to write.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	now := time.Now()
	logPath := filepath.Join(outputDir, fmt.Sprintf("error_log_%s.txt", now.Format("20060102_150405.000")))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Invoice Export - Error Log\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		now.Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Timestamp:      %s\n"+
			"  File:           %s\n"+
			"  Error Type:     %s\n"+
			"  Message:        %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.FileName,
			entry.ErrorType,
			entry.ErrorMessage)

		if entry.InvoiceNumber != "" {
			fmt.Fprintf(writer, "  Invoice:        %s\n", entry.InvoiceNumber)
		}
		if entry.LineItem > 0 {
			fmt.Fprintf(writer, "  Line Item:      %d\n", entry.LineItem)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(writer, "  Field:          %s\n", entry.FieldName)
		}
		if entry.FieldValue != "" {
			fmt.Fprintf(writer, "  Value:          %s\n", entry.FieldValue)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary describes one export run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalInvoices   int
	TotalLineItems  int
	Warnings        int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo describes a successfully exported file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFile  string
	ArchivePath string
	Format      string
	Invoices    int
	LineItems   int
	ProcessTime time.Duration
}

// FailedFileInfo describes a file that could not be exported.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
}

// WriteSummaryLog writes a processing summary to a file in outputDir.
//
// RETURNS:
//   - The path to the summary file.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir,
		fmt.Sprintf("processing_summary_%s.txt", summary.EndTime.Format("20060102_150405.000")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Invoice Export - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Successful:         %d\n"+
		"  Failed:             %d\n"+
		"  Total Invoices:     %d\n"+
		"  Total Line Items:   %d\n"+
		"  Warnings:           %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalInvoices,
		summary.TotalLineItems,
		summary.Warnings)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Output:       %s\n", pf.OutputFile)
			fmt.Fprintf(writer, "  Format:       %s\n", pf.Format)
			fmt.Fprintf(writer, "  Invoices:     %d\n", pf.Invoices)
			fmt.Fprintf(writer, "  Line Items:   %d\n", pf.LineItems)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Type:  %s\n", ff.ErrorType)
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
