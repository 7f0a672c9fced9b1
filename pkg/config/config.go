// Package config loads the enumerated configuration of §6 from YAML, the
// way the teacher's connector config does (pkg/connector/config.go), and
// exposes an immutable Config value. The core reads it once at startup;
// runtime changes require a restart (§6).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DataBackend selects the persistence backend (§6).
type DataBackend string

const (
	BackendDocument DataBackend = "document"
	BackendFile     DataBackend = "file"
)

// MongoDBConfig configures the document-store backend.
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// S3Config names the external blob-storage collaborator (§1: out of scope
// to implement, but the core's Config still carries the connection
// parameters an outer layer wires into it).
type S3Config struct {
	Endpoint    string `yaml:"endpoint"`
	Region      string `yaml:"region"`
	Bucket      string `yaml:"bucket"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
}

// RateLimitConfig names the rate-limit classes the HTTP layer enforces; the
// core only threads the numbers through (§6: "the core is not responsible
// for enforcement but must tolerate request abandonment").
type RateLimitConfig struct {
	GeneralPerMinute   int `yaml:"general_per_minute"`
	AuthPerMinute      int `yaml:"auth_per_minute"`
	StreamingPerMinute int `yaml:"streaming_per_minute"`
}

// ProviderDefaults holds a per-provider base URL override and default
// timeouts, layered under a connection profile's own ProfileParameters.
type ProviderDefaults struct {
	BaseURL           string        `yaml:"base_url"`
	ChatTimeout       time.Duration `yaml:"chat_timeout"`
	NoProgressTimeout time.Duration `yaml:"no_progress_timeout"`
}

// MemoryHousekeepingDefaults seeds the default policy used when a
// housekeeping run (§4.7) does not specify its own.
type MemoryHousekeepingDefaults struct {
	MergeThreshold float64 `yaml:"merge_threshold"`
}

// PostTurnConfig tunes the asynchronous jobs C12 schedules after a turn
// finalizes: the cron cadence for the sweep-wide housekeeping pass, and the
// history-drop threshold that triggers context summarization.
type PostTurnConfig struct {
	HousekeepingCron        string `yaml:"housekeeping_cron"`
	SummarizeDroppedMessages int   `yaml:"summarize_dropped_messages"`
	CheapConnectionProfileID string `yaml:"cheap_connection_profile_id"`
}

// Config is the full, immutable process configuration (§6).
type Config struct {
	DataBackend          DataBackend                  `yaml:"data_backend"`
	MongoDB              MongoDBConfig                `yaml:"mongodb"`
	S3                   S3Config                     `yaml:"s3"`
	EncryptionMasterPepper string                      `yaml:"encryption_master_pepper"`
	LogLevel             string                       `yaml:"log_level"`
	AuthDisabled         bool                         `yaml:"auth_disabled"`
	RateLimit            RateLimitConfig              `yaml:"rate_limit"`
	Providers            map[string]ProviderDefaults  `yaml:"providers"`
	Memory               MemoryHousekeepingDefaults    `yaml:"memory"`
	FileBackedRoot       string                       `yaml:"file_backed_root"`
	MaxToolLoops         int                          `yaml:"max_tool_loops"`
	ReservedResponseTokens int                        `yaml:"reserved_response_tokens"`
	PostTurn             PostTurnConfig               `yaml:"post_turn"`
}

// Default returns a Config with the spec's documented defaults (§4.3, §4.10,
// §4.11) applied.
func Default() Config {
	return Config{
		DataBackend:            BackendFile,
		LogLevel:               "info",
		FileBackedRoot:         "./data",
		MaxToolLoops:           5,
		ReservedResponseTokens: 1000,
		Memory: MemoryHousekeepingDefaults{
			MergeThreshold: 0.95,
		},
		PostTurn: PostTurnConfig{
			HousekeepingCron:         "0 */6 * * *",
			SummarizeDroppedMessages: 10,
		},
	}
}

// Load reads and parses a YAML config file at path, applying Default() for
// anything the file leaves zero-valued.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.MaxToolLoops <= 0 {
		cfg.MaxToolLoops = 5
	}
	if cfg.ReservedResponseTokens <= 0 {
		cfg.ReservedResponseTokens = 1000
	}
	if cfg.Memory.MergeThreshold == 0 {
		cfg.Memory.MergeThreshold = 0.95
	}
	if cfg.PostTurn.HousekeepingCron == "" {
		cfg.PostTurn.HousekeepingCron = "0 */6 * * *"
	}
	if cfg.PostTurn.SummarizeDroppedMessages <= 0 {
		cfg.PostTurn.SummarizeDroppedMessages = 10
	}
	return cfg, nil
}
