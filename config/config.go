package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. GHSYNC_RECORDS_DIR
	EnvPrefix = "GHSYNC"

	// EnvGithubToken is the environment variable name for the GitHub API token
	EnvGithubToken = EnvPrefix + "_GITHUB_TOKEN"

	DefaultDatabasePath = "ghsync.db"
	DefaultRecordsDir   = "records"
	DefaultIssueState   = "all"
)

// Config represents the application configuration
type Config struct {
	// GitHub API token (optional; GHSYNC_GITHUB_TOKEN, gh auth token and
	// GITHUB_TOKEN are tried in that order when unset)
	GitHubToken string `mapstructure:"github_token" json:"github_token,omitempty"`

	// Path to the SQLite sync history database
	DatabasePath string `mapstructure:"database_path" json:"database_path,omitempty"`

	// Directory holding the YAML records
	RecordsDir string `mapstructure:"records_dir" json:"records_dir,omitempty"`

	// Issue state filter for pull: open, closed or all
	IssueState string `mapstructure:"issue_state" json:"issue_state,omitempty"`

	// Resolve title/body conflicts to the local side on push
	PreferLocal bool `mapstructure:"prefer_local" json:"prefer_local"`

	// Leave discussions alone, for repositories without them enabled
	SkipDiscussions bool `mapstructure:"skip_discussions" json:"skip_discussions,omitempty"`

	// List of repositories in the format "owner/name"
	Repositories []string `mapstructure:"repositories" json:"repositories"`
}

// LoadConfig loads the configuration from a JSON file, applies GHSYNC_*
// environment overrides and defaults, and resolves relative paths against
// the config file's directory.
func LoadConfig(path string) (*Config, error) {
	v := newViper(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("github_token", "")
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("records_dir", DefaultRecordsDir)
	v.SetDefault("issue_state", DefaultIssueState)
	v.SetDefault("prefer_local", false)
	v.SetDefault("skip_discussions", false)
	v.SetDefault("repositories", []string{})

	config, err := read(v)
	if err != nil {
		return nil, err
	}

	// An explicit empty value in the file still falls back to the default
	if config.DatabasePath == "" {
		config.DatabasePath = DefaultDatabasePath
	}
	if config.RecordsDir == "" {
		config.RecordsDir = DefaultRecordsDir
	}
	if config.IssueState == "" {
		config.IssueState = DefaultIssueState
	}
	switch config.IssueState {
	case "open", "closed", "all":
	default:
		return nil, fmt.Errorf("invalid issue_state %q: expected open, closed or all", config.IssueState)
	}

	configDir := filepath.Dir(path)
	config.DatabasePath = resolve(configDir, config.DatabasePath)
	config.RecordsDir = resolve(configDir, config.RecordsDir)

	return config, nil
}

// RecordsPath returns the record directory for a repository: dir when set,
// otherwise <records_dir>/<owner>/<name>.
func (c *Config) RecordsPath(dir, owner, name string) string {
	if dir != "" {
		return dir
	}
	return filepath.Join(c.RecordsDir, owner, name)
}

// HasRepository reports whether repo is already configured
func (c *Config) HasRepository(repo string) bool {
	for _, r := range c.Repositories {
		if strings.EqualFold(r, repo) {
			return true
		}
	}
	return false
}

// AddRepository appends repo to the config file at path. The file is read
// without environment overrides or defaults so neither ends up on disk. It
// reports whether the repository was added.
func AddRepository(path, repo string) (bool, error) {
	config, err := read(newViper(path))
	if err != nil {
		return false, err
	}
	if config.HasRepository(repo) {
		return false, nil
	}
	config.Repositories = append(config.Repositories, repo)
	if err := SaveConfig(config, path); err != nil {
		return false, err
	}
	return true, nil
}

// SaveConfig saves the configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	if config.Repositories == nil {
		config.Repositories = []string{}
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't
// exist. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	// Check if the file already exists
	if _, err := os.Stat(path); err == nil {
		return false, nil // File exists, don't overwrite
	}

	config := &Config{
		DatabasePath: DefaultDatabasePath,
		RecordsDir:   DefaultRecordsDir,
		IssueState:   DefaultIssueState,
		Repositories: []string{},
	}

	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := SaveConfig(config, path); err != nil {
		return false, err
	}
	return true, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	return v
}

func read(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
