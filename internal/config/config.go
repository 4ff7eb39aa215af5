package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed sample_config.json
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir    string `json:"output_dir"`
	TempDir      string `json:"temp_dir"`
	LogDir       string `json:"log_dir"`
	DatabasePath string `json:"database_path"`
}

// Encoding contains settings for the ffmpeg/opusenc conversion step.
type Encoding struct {
	Bitrate     int    `json:"bitrate"`
	CBR         bool   `json:"cbr"`
	FFmpegPath  string `json:"ffmpeg_path"`
	OpusencPath string `json:"opusenc_path"`
	KeepTemp    bool   `json:"keep_temp"`
}

// Naming controls how output filenames are derived from input metadata.
type Naming struct {
	UseMediaTags bool   `json:"use_media_tags"`
	Template     string `json:"template"`
	AppendID     bool   `json:"append_id"`
}

// TeddyCloud contains connection settings for a TeddyCloud server.
type TeddyCloud struct {
	URL               string `json:"url"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientCertPath    string `json:"client_cert_path"`
	ClientKeyPath     string `json:"client_key_path"`
	IgnoreSSLVerify   bool   `json:"ignore_ssl_verify"`
	ConnectionTimeout int    `json:"connection_timeout"`
	ReadTimeout       int    `json:"read_timeout"`
	MaxRetries        int    `json:"max_retries"`
	RetryDelay        int    `json:"retry_delay"`
	SpecialFolder     string `json:"special_folder"`
	Path              string `json:"path"`
	IncludeArtwork    bool   `json:"include_artwork"`
}

// Workflow contains conversion pipeline settings.
type Workflow struct {
	Workers           int `json:"workers"`
	QueuePollInterval int `json:"queue_poll_interval"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `json:"format"`
	Level  string `json:"level"`
	Path   string `json:"path"`
}

// Config encapsulates all configuration values for tonietool.
type Config struct {
	Paths      Paths      `json:"paths"`
	Encoding   Encoding   `json:"encoding"`
	Naming     Naming     `json:"naming"`
	TeddyCloud TeddyCloud `json:"teddycloud"`
	Workflow   Workflow   `json:"workflow"`
	Logging    Logging    `json:"logging"`
}

// DefaultConfigPath returns the absolute path of the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.tonietool/config.json")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was actually found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = os.Getenv("TONIETOOL_CONFIG")
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories conversion needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.Paths.TempDir, c.Paths.LogDir, filepath.Dir(c.Paths.DatabasePath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the configured ffmpeg executable.
func (c *Config) FFmpegBinary() string {
	if c.Encoding.FFmpegPath != "" {
		return c.Encoding.FFmpegPath
	}
	return "ffmpeg"
}

// OpusencBinary returns the configured opusenc executable.
func (c *Config) OpusencBinary() string {
	if c.Encoding.OpusencPath != "" {
		return c.Encoding.OpusencPath
	}
	return "opusenc"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified
// location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
