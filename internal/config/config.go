package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Yumeka433/igdl/internal/progress"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "IGDL_"

// Config defines configuration for the igdl CLI.
type Config struct {
	APIBase         string         `yaml:"api_base"`
	Output          string         `yaml:"output"`
	Store           string         `yaml:"store"`
	Method          string         `yaml:"method"`
	Username        string         `yaml:"username"`
	Password        string         `yaml:"password"`
	Cookies         string         `yaml:"cookies"`
	ReadSize        int64          `yaml:"read_size"`
	Buffered        bool           `yaml:"buffered"`
	HeaderTimeout   time.Duration  `yaml:"header_timeout"`
	DefaultFilename string         `yaml:"default_filename"`
	Progress        ProgressConfig `yaml:"progress"`
	LogLevel        string         `yaml:"log_level"`
	LogJSON         bool           `yaml:"log_json"`
	MetricsAddr     string         `yaml:"metrics_addr"`
}

// ProgressConfig controls progress estimation and display.
type ProgressConfig struct {
	Show bool `yaml:"show"`
	Step int  `yaml:"step"`
	Cap  int  `yaml:"cap"`
}

// Policy returns the estimator policy described by p.
func (p ProgressConfig) Policy() progress.Policy {
	return progress.Policy{Step: p.Step, Cap: p.Cap}
}

// Default returns a Config with sensible defaults.
func Default() Config {
	policy := progress.DefaultPolicy()
	return Config{
		Output:          ".",
		Store:           "mem://",
		Method:          "GET",
		ReadSize:        32 * 1024, // 32KiB
		DefaultFilename: "reel.mp4",
		Progress: ProgressConfig{
			Show: true,
			Step: policy.Step,
			Cap:  policy.Cap,
		},
		LogLevel: "info",
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	APIBase         string             `yaml:"api_base"`
	Output          string             `yaml:"output"`
	Store           string             `yaml:"store"`
	Method          string             `yaml:"method"`
	Username        string             `yaml:"username"`
	Password        string             `yaml:"password"`
	Cookies         string             `yaml:"cookies"`
	ReadSize        string             `yaml:"read_size"`
	Buffered        bool               `yaml:"buffered"`
	HeaderTimeout   string             `yaml:"header_timeout"`
	DefaultFilename string             `yaml:"default_filename"`
	Progress        yamlProgressConfig `yaml:"progress"`
	LogLevel        string             `yaml:"log_level"`
	LogJSON         bool               `yaml:"log_json"`
	MetricsAddr     string             `yaml:"metrics_addr"`
}

type yamlProgressConfig struct {
	Show *bool `yaml:"show"`
	Step int   `yaml:"step"`
	Cap  int   `yaml:"cap"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	setString(&cfg.APIBase, yc.APIBase)
	setString(&cfg.Output, yc.Output)
	setString(&cfg.Store, yc.Store)
	setString(&cfg.Method, yc.Method)
	setString(&cfg.Username, yc.Username)
	setString(&cfg.Password, yc.Password)
	setString(&cfg.Cookies, yc.Cookies)
	setString(&cfg.DefaultFilename, yc.DefaultFilename)
	setString(&cfg.LogLevel, yc.LogLevel)
	setString(&cfg.MetricsAddr, yc.MetricsAddr)

	if yc.ReadSize != "" {
		size, err := progress.ParseBytes(yc.ReadSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse read_size: %w", err)
		}
		cfg.ReadSize = size
	}
	if yc.HeaderTimeout != "" {
		d, err := time.ParseDuration(yc.HeaderTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse header_timeout: %w", err)
		}
		cfg.HeaderTimeout = d
	}
	cfg.Buffered = yc.Buffered
	cfg.LogJSON = yc.LogJSON

	if yc.Progress.Show != nil {
		cfg.Progress.Show = *yc.Progress.Show
	}
	if yc.Progress.Step != 0 {
		cfg.Progress.Step = yc.Progress.Step
	}
	if yc.Progress.Cap != 0 {
		cfg.Progress.Cap = yc.Progress.Cap
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files, or from .env in the
// working directory when none are given. Missing files are ignored and
// variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the IGDL_ prefix.
func (c *Config) LoadFromEnv() error {
	str := map[string]*string{
		"API_BASE":         &c.APIBase,
		"OUTPUT":           &c.Output,
		"STORE":            &c.Store,
		"METHOD":           &c.Method,
		"USERNAME":         &c.Username,
		"PASSWORD":         &c.Password,
		"COOKIES":          &c.Cookies,
		"DEFAULT_FILENAME": &c.DefaultFilename,
		"LOG_LEVEL":        &c.LogLevel,
		"METRICS_ADDR":     &c.MetricsAddr,
	}
	for key, dst := range str {
		setString(dst, os.Getenv(EnvPrefix+key))
	}

	if v := os.Getenv(EnvPrefix + "READ_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse %sREAD_SIZE: %w", EnvPrefix, err)
		}
		c.ReadSize = size
	}
	if v := os.Getenv(EnvPrefix + "HEADER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sHEADER_TIMEOUT: %w", EnvPrefix, err)
		}
		c.HeaderTimeout = d
	}
	if v := os.Getenv(EnvPrefix + "BUFFERED"); v != "" {
		c.Buffered = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "LOG_JSON"); v != "" {
		c.LogJSON = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "PROGRESS"); v != "" {
		c.Progress.Show = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "PROGRESS_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sPROGRESS_STEP: %w", EnvPrefix, err)
		}
		c.Progress.Step = n
	}
	if v := os.Getenv(EnvPrefix + "PROGRESS_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sPROGRESS_CAP: %w", EnvPrefix, err)
		}
		c.Progress.Cap = n
	}

	return nil
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.APIBase == "" {
		return errors.New("config: api_base is required")
	}
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api_base must be an http(s) URL, got %q", c.APIBase)
	}
	switch strings.ToUpper(c.Method) {
	case "GET", "POST":
	default:
		return fmt.Errorf("config: method must be GET or POST, got %q", c.Method)
	}
	if c.ReadSize <= 0 {
		return errors.New("config: read_size must be positive")
	}
	if c.HeaderTimeout < 0 {
		return errors.New("config: header_timeout must not be negative")
	}
	if c.Progress.Step <= 0 {
		return errors.New("config: progress.step must be positive")
	}
	if c.Progress.Cap < 1 || c.Progress.Cap > 99 {
		return errors.New("config: progress.cap must be between 1 and 99")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	setString(&c.APIBase, override.APIBase)
	setString(&c.Output, override.Output)
	setString(&c.Store, override.Store)
	setString(&c.Method, override.Method)
	setString(&c.Username, override.Username)
	setString(&c.Password, override.Password)
	setString(&c.Cookies, override.Cookies)
	setString(&c.DefaultFilename, override.DefaultFilename)
	setString(&c.LogLevel, override.LogLevel)
	setString(&c.MetricsAddr, override.MetricsAddr)

	if override.ReadSize != 0 {
		c.ReadSize = override.ReadSize
	}
	if override.HeaderTimeout != 0 {
		c.HeaderTimeout = override.HeaderTimeout
	}
	if override.Buffered {
		c.Buffered = override.Buffered
	}
	if override.LogJSON {
		c.LogJSON = override.LogJSON
	}
	if override.Progress.Step != 0 {
		c.Progress.Step = override.Progress.Step
	}
	if override.Progress.Cap != 0 {
		c.Progress.Cap = override.Progress.Cap
	}
	return c
}
