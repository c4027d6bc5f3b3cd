package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. EMLPROMPT_WORKERS
const EnvPrefix = "EMLPROMPT"

// Config holds application configuration
type Config struct {
	// Batch settings
	InputDir    string        `mapstructure:"input"`
	OutputDir   string        `mapstructure:"output"`
	Recursive   bool          `mapstructure:"recursive"`
	Workers     int           `mapstructure:"workers"`
	FileTimeout time.Duration `mapstructure:"file-timeout"`

	// Output settings
	SummaryPath   string `mapstructure:"summary"`
	SchemaVersion string `mapstructure:"schema-version"`

	// Database settings
	DBPath string `mapstructure:"db"`
	Save   bool   `mapstructure:"save"`

	// Server settings
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Open bool   `mapstructure:"open"`

	LogLevel string `mapstructure:"log-level"`
}

// Default returns default configuration
func Default() *Config {
	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	// Use ~/.cargo-eml-prompts for data directory
	dataDir := filepath.Join(homeDir, ".cargo-eml-prompts")

	return &Config{
		InputDir:      "./emails",
		Workers:       runtime.NumCPU() * 2,
		SchemaVersion: "bedrock-conversation-2024",
		DBPath:        filepath.Join(dataDir, "records.db"),
		Host:          "localhost",
		Port:          "8080",
		LogLevel:      "info",
	}
}

// RegisterFlags adds every setting as a persistent flag of cmd, defaulting
// to Default()
func RegisterFlags(cmd *cobra.Command) {
	d := Default()
	f := cmd.PersistentFlags()
	f.String("config", "", "YAML config file")
	f.StringP("input", "i", d.InputDir, "directory containing .eml files")
	f.StringP("output", "o", d.OutputDir, "directory for output files (default: the input directory)")
	f.BoolP("recursive", "r", d.Recursive, "descend into subdirectories")
	f.IntP("workers", "w", d.Workers, "number of concurrent workers")
	f.Duration("file-timeout", d.FileTimeout, "time limit per message, 0 for none")
	f.String("summary", d.SummaryPath, "write a YAML run summary to this file")
	f.String("schema-version", d.SchemaVersion, "schemaVersion written to each JSONL line")
	f.String("db", d.DBPath, "SQLite database path")
	f.Bool("save", d.Save, "store the run in the database")
	f.String("host", d.Host, "server host")
	f.String("port", d.Port, "server port")
	f.Bool("open", d.Open, "open the browser when serving")
	f.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
}

// Load resolves the configuration for cmd. Precedence is flags, then
// EMLPROMPT_* environment variables, then the --config file, then defaults.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("input", d.InputDir)
	v.SetDefault("output", d.OutputDir)
	v.SetDefault("recursive", d.Recursive)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("file-timeout", d.FileTimeout)
	v.SetDefault("summary", d.SummaryPath)
	v.SetDefault("schema-version", d.SchemaVersion)
	v.SetDefault("db", d.DBPath)
	v.SetDefault("save", d.Save)
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("open", d.Open)
	v.SetDefault("log-level", d.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no command can run with
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.FileTimeout < 0 {
		return fmt.Errorf("file-timeout must not be negative, got %s", c.FileTimeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	return nil
}

// ParseLevel maps a level name to its slog level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Level returns the configured slog level
func (c *Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// ResolvedOutputDir is the output directory, falling back to the input directory
func (c *Config) ResolvedOutputDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return c.InputDir
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// URL returns the full server URL
func (c *Config) URL() string {
	return "http://" + c.Address()
}
