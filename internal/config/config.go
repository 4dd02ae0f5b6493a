// =============================================================================
// Invoice Export - Configuration Module
// =============================================================================
//
// This module loads the main application configuration and the export
// profiles.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): directories, logging, naming, concurrency
//   2. Export Profiles (profiles/*.yaml): per-customer export rules
//   3. Optional .env next to config.yaml: INVOICE_EXPORT_* overrides
//
// PRECEDENCE (highest first):
//   process environment > .env file > config.yaml > built-in defaults
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ginjaninja78/invoice-export/internal/taks"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INVOICE_EXPORT_"

// Supported export formats.
const (
	FormatTAKS        = "taks"
	FormatJSON        = "json"
	FormatCustomsJSON = "customs-json"
	FormatXML         = "xml"
	FormatCSV         = "csv"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for invoice files (.json, .yaml, .yml, .xlsx).
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the exported files.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives input files after a successful export.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// OutputArchiveDir receives a copy of every exported file.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// ProfilesDir contains the export profiles.
	// Default: "./profiles"
	ProfilesDir string `yaml:"profiles_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// FileNameFormat defines output file names.
	// Placeholders:
	//   {name}      - base name, "invoice-data"
	//   {timestamp} - ISO 8601 time with ':' replaced by '-'
	//   {uuid}      - a random UUID
	//   {invoice}   - invoice number of the (first) invoice
	//   {ext}       - format extension without the dot
	// Default: "{name}-{timestamp}.{ext}"
	FileNameFormat string `yaml:"file_name_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the number of files exported at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps exporting other files after a failure.
	// Default: true
	ContinueOnError *bool `yaml:"continue_on_error"`

	// =========================================================================
	// SERVER SETTINGS
	// =========================================================================

	// ListenAddr is the address of the HTTP export endpoint.
	// Default: ":8080"
	ListenAddr string `yaml:"listen_addr"`
}

// ShouldContinueOnError reports the effective ContinueOnError setting.
func (c *MainConfig) ShouldContinueOnError() bool {
	return c.ContinueOnError == nil || *c.ContinueOnError
}

// =============================================================================
// EXPORT PROFILE STRUCTURE
// =============================================================================

// ExportProfile holds the export rules for one group of input files.
type ExportProfile struct {
	// ProfileName is used in logs and reports.
	ProfileName string `yaml:"profile_name"`

	// ProfileCode is the profile key. Falls back to the file name.
	ProfileCode string `yaml:"profile_code"`

	// FileMatchingPatterns are glob patterns matched against input file
	// names, e.g. "toll_*.json".
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Format is one of taks, json, customs-json, xml, csv.
	// Default: "taks"
	Format string `yaml:"format"`

	// StrictValidation rejects files with validation issues instead of
	// exporting them with warnings.
	StrictValidation bool `yaml:"strict_validation"`

	// TAKS overrides the record constants and field defaults.
	TAKS taks.Options `yaml:"taks"`

	// Transformations rewrite invoice fields after parsing, before
	// validation and export.
	Transformations []TransformationRule `yaml:"transformations"`
}

// TransformationRule defines the actions applied to one field.
type TransformationRule struct {
	// Field is the invoice or line item field, by its JSON name
	// (e.g. "hsCode", "countryOfOrigin", "invoiceNumber").
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation.
type TransformationAction struct {
	// Type is the transformation, e.g. "uppercase", "strip_dots",
	// "pad_zeros_to_length", "lookup". See converter.ApplyTransformation.
	Type string `yaml:"type"`

	// Value is the parameter of the transformation:
	//   - "prepend_string"      : The string to prepend
	//   - "pad_zeros_to_length" : The target length (e.g. "8")
	//   - "replace"             : The replacement string
	//   - "format_date"         : "input_layout|output_layout"
	//   - "if_empty_use_field"  : The other field's name
	Value string `yaml:"value"`

	// Find is the substring or pattern of "replace" and "regex_replace".
	Find string `yaml:"find,omitempty"`

	// LookupTable maps input values to output values for "lookup".
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// Matches reports whether fileName matches one of the profile's patterns.
func (p *ExportProfile) Matches(fileName string) bool {
	base := filepath.Base(fileName)
	for _, pattern := range p.FileMatchingPatterns {
		matched, err := filepath.Match(pattern, base)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// DefaultProfile is used when no profile file matches.
func DefaultProfile() *ExportProfile {
	p := &ExportProfile{ProfileName: "Default", ProfileCode: "default"}
	applyProfileDefaults(p)
	return p
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file and applies
// environment overrides.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read or parsed, or a value is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(configPath), ".env")
	if err := applyEnvOverrides(&config, envFile); err != nil {
		return nil, err
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// EnsureDirectories creates every configured directory that does not exist.
func (c *MainConfig) EnsureDirectories() error {
	dirs := []string{
		c.InputDir,
		c.OutputDir,
		c.InputArchiveDir,
		c.OutputArchiveDir,
		c.ProfilesDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// applyEnvOverrides reads INVOICE_EXPORT_* values from the process
// environment, falling back to the optional .env file.
func applyEnvOverrides(config *MainConfig, envFile string) error {
	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", envFile, err)
		}
		dotenv = map[string]string{}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			return v, true
		}
		v, ok := dotenv[EnvPrefix+key]
		return v, ok
	}

	if v, ok := lookup("INPUT_DIR"); ok {
		config.InputDir = v
	}
	if v, ok := lookup("OUTPUT_DIR"); ok {
		config.OutputDir = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		config.LogLevel = v
	}
	if v, ok := lookup("LISTEN_ADDR"); ok {
		config.ListenAddr = v
	}
	if v, ok := lookup("MAX_CONCURRENCY"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sMAX_CONCURRENCY %q: %w", EnvPrefix, v, err)
		}
		config.MaxConcurrency = n
	}

	return nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = "./output_archive"
	}
	if config.ProfilesDir == "" {
		config.ProfilesDir = "./profiles"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.FileNameFormat == "" {
		config.FileNameFormat = "{name}-{timestamp}.{ext}"
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
}

// validateMainConfig checks enumerated values.
func validateMainConfig(config *MainConfig) error {
	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", config.LogFormat)
	}

	return nil
}

// LoadProfiles loads all export profiles from a directory. A missing
// directory yields no profiles.
//
// PARAMETERS:
//   - profilesDir: The directory containing profile YAML files.
//
// RETURNS:
//   - Profiles keyed by profile code.
//   - An error if any file cannot be parsed or is invalid.
func LoadProfiles(profilesDir string) (map[string]*ExportProfile, error) {
	profiles := make(map[string]*ExportProfile)

	files, err := filepath.Glob(filepath.Join(profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		profile, err := LoadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		key := profile.ProfileCode
		if key == "" {
			key = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			profile.ProfileCode = key
		}
		if profile.ProfileName == "" {
			profile.ProfileName = key
		}
		if _, dup := profiles[key]; dup {
			return nil, fmt.Errorf("duplicate profile code %q in %s", key, file)
		}

		profiles[key] = profile
	}

	return profiles, nil
}

// LoadProfile loads a single export profile file.
func LoadProfile(filePath string) (*ExportProfile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile ExportProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	applyProfileDefaults(&profile)

	if !IsKnownFormat(profile.Format) {
		return nil, fmt.Errorf("unknown format %q", profile.Format)
	}
	for _, pattern := range profile.FileMatchingPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
		}
	}

	return &profile, nil
}

// applyProfileDefaults sets default values for a profile.
func applyProfileDefaults(profile *ExportProfile) {
	profile.Format = strings.ToLower(strings.TrimSpace(profile.Format))
	if profile.Format == "" {
		profile.Format = FormatTAKS
	}
	if profile.ProfileName == "" {
		profile.ProfileName = profile.ProfileCode
	}
	profile.TAKS = profile.TAKS.WithDefaults()
}

// IsKnownFormat reports whether format names a supported export format.
func IsKnownFormat(format string) bool {
	switch format {
	case FormatTAKS, FormatJSON, FormatCustomsJSON, FormatXML, FormatCSV:
		return true
	}
	return false
}

// FindProfile returns the profile matching fileName. Profiles are tried in
// code order so the choice is stable. It returns nil if none matches.
func FindProfile(fileName string, profiles map[string]*ExportProfile) *ExportProfile {
	codes := make([]string, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if profiles[code].Matches(fileName) {
			return profiles[code]
		}
	}
	return nil
}
