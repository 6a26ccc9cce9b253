// Package config reads ~/.config/ccdash.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultResumePrompt = `Resuming session from {{last_updated}}.{{#different_directory}} Session launched from {{project_path}}, but you were last working in: {{last_cwd}}{{/different_directory}}

IMPORTANT: This session has been inactive for {{time_since}}. Before proceeding: check git status, look around to understand what changed, and be careful not to overwrite any work in progress.`

const (
	DefaultRefreshInterval = 60 * time.Second
	DefaultSearchDebounce  = 400 * time.Millisecond
)

type Config struct {
	ClaudeDir            string        // root of the CLI's data, usually ~/.claude
	DBPath               string        // search index and settings store
	RefreshInterval      time.Duration // default usage polling interval
	Notifications        bool
	SearchDebounce       time.Duration
	LogLevel             slog.Level
	ResumePromptTemplate string
	TerminalCommand      string   // Custom command to spawn terminal (optional)
	RefreshCommand       string   // command that makes the CLI renew its token
	ClaudeFlags          []string // Additional flags to pass to claude --resume
}

type tomlConfig struct {
	ClaudeDir       string   `toml:"claude_dir"`
	DBPath          string   `toml:"db_path"`
	RefreshInterval string   `toml:"refresh_interval"`
	Notifications   *bool    `toml:"notifications"`
	SearchDebounce  string   `toml:"search_debounce"`
	LogLevel        string   `toml:"log_level"`
	TerminalCommand string   `toml:"terminal_command"`
	RefreshCommand  string   `toml:"refresh_command"`
	ClaudeFlags     []string `toml:"claude_flags"`
}

// Dir returns ~/.config/ccdash
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ccdash"), nil
}

// Defaults returns the configuration used when no file exists
func Defaults() *Config {
	cfg := &Config{
		RefreshInterval:      DefaultRefreshInterval,
		Notifications:        true,
		SearchDebounce:       DefaultSearchDebounce,
		LogLevel:             slog.LevelWarn,
		ResumePromptTemplate: DefaultResumePrompt,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.ClaudeDir = filepath.Join(home, ".claude")
	}
	if dir, err := Dir(); err == nil {
		cfg.DBPath = filepath.Join(dir, "ccdash.db")
	}
	return cfg
}

// Load reads config from ~/.config/ccdash/
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return Defaults(), nil // Use defaults
	}
	return LoadFrom(dir)
}

// LoadFrom reads config.toml, resume_prompt.txt and terminal_command.txt
// from dir. Missing files keep the defaults; a malformed config.toml is an
// error.
func LoadFrom(dir string) (*Config, error) {
	cfg := Defaults()

	promptPath := filepath.Join(dir, "resume_prompt.txt")
	terminalPath := filepath.Join(dir, "terminal_command.txt")
	tomlPath := filepath.Join(dir, "config.toml")

	if _, err := os.Stat(tomlPath); err == nil {
		var tc tomlConfig
		if _, err := toml.DecodeFile(tomlPath, &tc); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", tomlPath, err)
		}
		if err := cfg.apply(tc); err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", tomlPath, err)
		}
	}

	// If custom template exists, use it
	if data, err := os.ReadFile(promptPath); err == nil {
		cfg.ResumePromptTemplate = string(data)
	}

	// If custom terminal command exists, use it
	if data, err := os.ReadFile(terminalPath); err == nil && cfg.TerminalCommand == "" {
		cfg.TerminalCommand = strings.TrimSpace(string(data))
	}

	return cfg, nil
}

func (c *Config) apply(tc tomlConfig) error {
	if tc.ClaudeDir != "" {
		c.ClaudeDir = expandHome(tc.ClaudeDir)
	}
	if tc.DBPath != "" {
		c.DBPath = expandHome(tc.DBPath)
	}
	if tc.RefreshInterval != "" {
		d, err := time.ParseDuration(tc.RefreshInterval)
		if err != nil {
			return fmt.Errorf("refresh_interval: %w", err)
		}
		c.RefreshInterval = d
	}
	if tc.Notifications != nil {
		c.Notifications = *tc.Notifications
	}
	if tc.SearchDebounce != "" {
		d, err := time.ParseDuration(tc.SearchDebounce)
		if err != nil {
			return fmt.Errorf("search_debounce: %w", err)
		}
		c.SearchDebounce = d
	}
	if tc.LogLevel != "" {
		if err := c.LogLevel.UnmarshalText([]byte(tc.LogLevel)); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	c.TerminalCommand = strings.TrimSpace(tc.TerminalCommand)
	c.RefreshCommand = strings.TrimSpace(tc.RefreshCommand)
	c.ClaudeFlags = tc.ClaudeFlags
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
