package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/webdrive/internal/util"
	"gopkg.in/yaml.v3"
)

// Bytes per MiB
const MiB = 1024 * 1024

// CLI verbosity levels, most quiet first
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Archive compression methods
const (
	ArchiveStore   = "store"
	ArchiveDeflate = "deflate"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultBucket           = "webdrive"
	DefaultNamespacePattern = "user-%d-files/"

	// DefaultUploadConcurrency bounds the files of one upload batch written at once
	DefaultUploadConcurrency = 4

	// DefaultDirConcurrency bounds the sibling markers created at once
	DefaultDirConcurrency = 8

	// DefaultDeleteBatchSize matches the S3 DeleteObjects limit
	DefaultDeleteBatchSize = 1000

	DefaultListPageSize = 1000

	// DefaultUploadPartSize is the multipart part size for streaming puts
	DefaultUploadPartSize ByteSize = 8 * MiB

	DefaultArchiveMethod     = ArchiveStore
	DefaultArchiveLevel      = 5
	DefaultArchiveDirEntries = true

	DefaultLogLvl = util.InfoLevel

	DefaultAttrTimeout  = 1.0
	DefaultEntryTimeout = 1.0
	DefaultDirectIO     = true
)

// Config contains runtime configuration values for the drive.
type Config struct {
	Bucket           string         // Bucket holding every user namespace
	NamespacePattern string         // fmt pattern with one %d for the user id, ending in "/"
	Storage          map[string]any // Backend section handed to the adapter registry; "type" selects the backend

	UploadConcurrency int      // Files of one upload batch written concurrently (Default 4)
	DirConcurrency    int      // Markers on one directory level created concurrently (Default 8)
	DeleteBatchSize   int      // Keys per DeleteMany call (Default 1000)
	ListPageSize      int      // Keys per listing page (Default 1000)
	UploadPartSize    ByteSize // Multipart part size for streaming puts (Default 8MiB)

	ArchiveMethod     string // "store" or "deflate" (Default store)
	ArchiveLevel      int    // flate level for "deflate" (Default 5)
	ArchiveDirEntries bool   // Emit zip entries for sub-directory markers (Default true)

	LogLvl  util.LogLevel
	LogJSON bool // one JSON object per log line instead of console output

	MountOptions
	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
	DirectIO     bool    // Whether to bypass page cache for object reads (Default true)

	MetricsAddr string // listen address for /metrics, empty disables it
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	Bucket           *string        `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	NamespacePattern *string        `yaml:"namespace_pattern,omitempty" json:"namespace_pattern,omitempty"`
	Storage          map[string]any `yaml:"storage,omitempty" json:"storage,omitempty"`

	UploadConcurrency *int      `yaml:"upload_concurrency,omitempty" json:"upload_concurrency,omitempty"`
	DirConcurrency    *int      `yaml:"dir_concurrency,omitempty" json:"dir_concurrency,omitempty"`
	DeleteBatchSize   *int      `yaml:"delete_batch_size,omitempty" json:"delete_batch_size,omitempty"`
	ListPageSize      *int      `yaml:"list_page_size,omitempty" json:"list_page_size,omitempty"`
	UploadPartSize    *ByteSize `yaml:"upload_part_size,omitempty" json:"upload_part_size,omitempty"`

	ArchiveMethod     *string `yaml:"archive_method,omitempty" json:"archive_method,omitempty"`
	ArchiveLevel      *int    `yaml:"archive_level,omitempty" json:"archive_level,omitempty"`
	ArchiveDirEntries *bool   `yaml:"archive_dir_entries,omitempty" json:"archive_dir_entries,omitempty"`

	LogLvl  *int  `yaml:"verbose,omitempty" json:"verbose,omitempty"` // CLI verbosity 1..5
	LogJSON *bool `yaml:"log_json,omitempty" json:"log_json,omitempty"`

	Debug        *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	FsName       *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name         *string  `yaml:"name,omitempty" json:"name,omitempty"`
	AttrTimeout  *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	DirectIO     *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`

	MetricsAddr *string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		Bucket:            DefaultBucket,
		NamespacePattern:  DefaultNamespacePattern,
		Storage:           map[string]any{"type": "memory"},
		UploadConcurrency: DefaultUploadConcurrency,
		DirConcurrency:    DefaultDirConcurrency,
		DeleteBatchSize:   DefaultDeleteBatchSize,
		ListPageSize:      DefaultListPageSize,
		UploadPartSize:    DefaultUploadPartSize,
		ArchiveMethod:     DefaultArchiveMethod,
		ArchiveLevel:      DefaultArchiveLevel,
		ArchiveDirEntries: DefaultArchiveDirEntries,
		LogLvl:            DefaultLogLvl,
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		AttrTimeout:  DefaultAttrTimeout,
		EntryTimeout: DefaultEntryTimeout,
		DirectIO:     DefaultDirectIO,
	}
}

// NewConfig returns the defaults with override applied. A nil override
// yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.Bucket != nil {
		c.Bucket = *override.Bucket
	}
	if override.NamespacePattern != nil {
		c.NamespacePattern = *override.NamespacePattern
	}
	if override.Storage != nil {
		c.Storage = override.Storage
	}
	if override.UploadConcurrency != nil {
		c.UploadConcurrency = *override.UploadConcurrency
	}
	if override.DirConcurrency != nil {
		c.DirConcurrency = *override.DirConcurrency
	}
	if override.DeleteBatchSize != nil {
		c.DeleteBatchSize = *override.DeleteBatchSize
	}
	if override.ListPageSize != nil {
		c.ListPageSize = *override.ListPageSize
	}
	if override.UploadPartSize != nil {
		c.UploadPartSize = *override.UploadPartSize
	}
	if override.ArchiveMethod != nil {
		c.ArchiveMethod = *override.ArchiveMethod
	}
	if override.ArchiveLevel != nil {
		c.ArchiveLevel = *override.ArchiveLevel
	}
	if override.ArchiveDirEntries != nil {
		c.ArchiveDirEntries = *override.ArchiveDirEntries
	}
	if override.LogLvl != nil {
		c.LogLvl = verbosityToLevel(*override.LogLvl)
	}
	if override.LogJSON != nil {
		c.LogJSON = *override.LogJSON
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.DirectIO != nil {
		c.DirectIO = *override.DirectIO
	}
	if override.MetricsAddr != nil {
		c.MetricsAddr = *override.MetricsAddr
	}
}

// verbosityToLevel maps CLI verbosity (1 quiet .. 5 chatty) onto a LogLevel,
// clamping out of range values.
func verbosityToLevel(v int) util.LogLevel {
	v = max(ErrorVerbose, min(TraceVerbose, v))
	return util.ErrorLevel - (v - ErrorVerbose)
}

// Validate reports settings the drive cannot run with
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Bucket) == "" {
		problems = append(problems, "bucket is empty")
	}
	if strings.Count(c.NamespacePattern, "%d") != 1 || !strings.HasSuffix(c.NamespacePattern, "/") {
		problems = append(problems, fmt.Sprintf("namespace_pattern %q needs one %%d and a trailing /", c.NamespacePattern))
	}
	if c.UploadConcurrency < 1 || c.DirConcurrency < 1 {
		problems = append(problems, "concurrency limits must be at least 1")
	}
	if c.DeleteBatchSize < 1 || c.DeleteBatchSize > DefaultDeleteBatchSize {
		problems = append(problems, fmt.Sprintf("delete_batch_size must be in 1..%d", DefaultDeleteBatchSize))
	}
	if c.ListPageSize < 1 {
		problems = append(problems, "list_page_size must be at least 1")
	}
	if c.ArchiveMethod != ArchiveStore && c.ArchiveMethod != ArchiveDeflate {
		problems = append(problems, fmt.Sprintf("archive_method %q is not %q or %q", c.ArchiveMethod, ArchiveStore, ArchiveDeflate))
	}
	if c.ArchiveLevel < -2 || c.ArchiveLevel > 9 {
		problems = append(problems, "archive_level must be in -2..9")
	}
	if _, ok := c.Storage["type"].(string); !ok {
		problems = append(problems, "storage.type is missing")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// StorageJSON encodes the storage section for the adapter registry. Tuning
// keys the section leaves out are filled from the top-level settings.
func (c *Config) StorageJSON() ([]byte, error) {
	section := make(map[string]any, len(c.Storage)+2)
	maps.Copy(section, c.Storage)
	if _, ok := section["part_size"]; !ok {
		section["part_size"] = int64(c.UploadPartSize)
	}
	if _, ok := section["page_size"]; !ok {
		section["page_size"] = c.ListPageSize
	}
	return json.Marshal(section)
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
