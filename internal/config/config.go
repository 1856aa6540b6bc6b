package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen      = "127.0.0.1:9669"
	DefaultAnswer      = "0.6.7.0"
	DefaultMod         = "DumbRequestManager"
	DefaultMetricsPath = "/metrics"

	VersionPatternStrict = "strict"
	VersionPatternSuffix = "suffix"

	defaultAccessLogRotateMaxSizeMB  = 100
	defaultAccessLogRotateMaxBackups = 14
	defaultAccessLogRotateMaxAgeDays = 14
)

type AccessLogRotateConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

type LoggingConfig struct {
	Level                 string                `yaml:"level"`
	AccessLog             bool                  `yaml:"access_log"`
	AccessLogPath         string                `yaml:"access_log_path"`
	AccessLogFormat       string                `yaml:"access_log_format"`
	AccessLogFormatPreset string                `yaml:"access_log_format_preset"`
	AccessLogRotate       AccessLogRotateConfig `yaml:"access_log_rotate"`

	accessLogSet bool `yaml:"-"`
}

// UnmarshalYAML records whether access_log was given so that an explicit
// false survives applyDefaults.
func (c *LoggingConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawLogging LoggingConfig
	raw := rawLogging{AccessLogRotate: AccessLogRotateConfig{
		MaxSizeMB:  defaultAccessLogRotateMaxSizeMB,
		MaxBackups: defaultAccessLogRotateMaxBackups,
		MaxAgeDays: defaultAccessLogRotateMaxAgeDays,
	}}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = LoggingConfig(raw)
	c.accessLogSet = false
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if strings.TrimSpace(value.Content[i].Value) == "access_log" {
			c.accessLogSet = true
		}
	}
	return nil
}

type Config struct {
	Server struct {
		Listen            string `yaml:"listen"`
		ReadTimeoutMs     int    `yaml:"read_timeout_ms"`
		WriteTimeoutMs    int    `yaml:"write_timeout_ms"`
		IdleTimeoutMs     int    `yaml:"idle_timeout_ms"`
		ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
		// PidFile is written on start and removed on exit. Empty disables it.
		PidFile string `yaml:"pid_file"`
		// H2C serves HTTP/2 over cleartext next to HTTP/1.1.
		H2C bool `yaml:"h2c"`
	} `yaml:"server"`

	Mods struct {
		// Allow lists accepted mod names. Matching is case-insensitive.
		Allow []string `yaml:"allow"`
		// File is an optional YAML list merged into Allow and reloaded on SIGHUP.
		File       string `yaml:"file"`
		AutoReload struct {
			Enabled    bool `yaml:"enabled"`
			DebounceMs int  `yaml:"debounce_ms"`
		} `yaml:"auto_reload"`
	} `yaml:"mods"`

	Versions struct {
		// Answer is returned for every accepted query.
		Answer string `yaml:"answer"`
		// Pattern is "strict" (anchored both ends) or "suffix" (end only).
		Pattern string `yaml:"pattern"`
	} `yaml:"versions"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load reads path (skipped when blank), then applies defaults, env overrides
// and validation.
func Load(path string) (*Config, error) {
	var cfg Config
	cfg.Logging.AccessLogRotate = AccessLogRotateConfig{
		MaxSizeMB:  defaultAccessLogRotateMaxSizeMB,
		MaxBackups: defaultAccessLogRotateMaxBackups,
		MaxAgeDays: defaultAccessLogRotateMaxAgeDays,
	}
	if p := strings.TrimSpace(path); p != "" {
		// #nosec G304 -- path is provided by trusted config/flag.
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = 10000
	}
	if cfg.Server.WriteTimeoutMs <= 0 {
		cfg.Server.WriteTimeoutMs = 10000
	}
	if cfg.Server.IdleTimeoutMs <= 0 {
		cfg.Server.IdleTimeoutMs = 120000
	}
	if cfg.Server.ShutdownTimeoutMs <= 0 {
		cfg.Server.ShutdownTimeoutMs = 5000
	}
	if cfg.Mods.Allow == nil {
		cfg.Mods.Allow = []string{DefaultMod}
	}
	if cfg.Mods.AutoReload.DebounceMs <= 0 {
		cfg.Mods.AutoReload.DebounceMs = 300
	}
	if strings.TrimSpace(cfg.Versions.Answer) == "" {
		cfg.Versions.Answer = DefaultAnswer
	}
	if strings.TrimSpace(cfg.Versions.Pattern) == "" {
		cfg.Versions.Pattern = VersionPatternStrict
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if !cfg.Logging.accessLogSet {
		cfg.Logging.AccessLog = true
	}
	if strings.TrimSpace(cfg.Metrics.Path) == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

func applyEnvOverrides(cfg *Config) {
	applyEnvServerOverrides(cfg)
	applyEnvModsOverrides(cfg)
	applyEnvLoggingOverrides(cfg)
	cfg.Metrics.Enabled = envBool("POCHAMOE_METRICS_ENABLED", cfg.Metrics.Enabled)
	if v := strings.TrimSpace(os.Getenv("POCHAMOE_METRICS_PATH")); v != "" {
		cfg.Metrics.Path = v
	}
}

func applyEnvServerOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("POCHAMOE_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	if n, ok := envInt("POCHAMOE_READ_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.ReadTimeoutMs = n
	}
	if n, ok := envInt("POCHAMOE_WRITE_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.WriteTimeoutMs = n
	}
	if n, ok := envInt("POCHAMOE_IDLE_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.IdleTimeoutMs = n
	}
	if n, ok := envInt("POCHAMOE_SHUTDOWN_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.ShutdownTimeoutMs = n
	}
	if v := strings.TrimSpace(os.Getenv("POCHAMOE_PID_FILE")); v != "" {
		cfg.Server.PidFile = v
	}
	cfg.Server.H2C = envBool("POCHAMOE_H2C", cfg.Server.H2C)
}

func applyEnvModsOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("POCHAMOE_MODS_ALLOW"); ok {
		cfg.Mods.Allow = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("POCHAMOE_MODS_FILE")); v != "" {
		cfg.Mods.File = v
	}
	cfg.Mods.AutoReload.Enabled = envBool("POCHAMOE_MODS_AUTO_RELOAD_ENABLED", cfg.Mods.AutoReload.Enabled)
	if n, ok := envInt("POCHAMOE_MODS_AUTO_RELOAD_DEBOUNCE_MS"); ok {
		cfg.Mods.AutoReload.DebounceMs = n
	}
	if v := strings.TrimSpace(os.Getenv("POCHAMOE_VERSION_ANSWER")); v != "" {
		cfg.Versions.Answer = v
	}
	if v := strings.TrimSpace(os.Getenv("POCHAMOE_VERSION_PATTERN")); v != "" {
		cfg.Versions.Pattern = v
	}
}

func applyEnvLoggingOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("POCHAMOE_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	cfg.Logging.AccessLog = envBool("POCHAMOE_ACCESS_LOG", cfg.Logging.AccessLog)
	if v := strings.TrimSpace(os.Getenv("POCHAMOE_ACCESS_LOG_PATH")); v != "" {
		cfg.Logging.AccessLogPath = v
	}
	if v := os.Getenv("POCHAMOE_ACCESS_LOG_FORMAT"); strings.TrimSpace(v) != "" {
		cfg.Logging.AccessLogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("POCHAMOE_ACCESS_LOG_FORMAT_PRESET")); v != "" {
		cfg.Logging.AccessLogFormatPreset = v
	}
	rot := &cfg.Logging.AccessLogRotate
	rot.Enabled = envBool("POCHAMOE_ACCESS_LOG_ROTATE_ENABLED", rot.Enabled)
	if n, ok := envInt("POCHAMOE_ACCESS_LOG_ROTATE_MAX_SIZE_MB"); ok {
		rot.MaxSizeMB = n
	}
	if n, ok := envInt("POCHAMOE_ACCESS_LOG_ROTATE_MAX_BACKUPS"); ok {
		rot.MaxBackups = n
	}
	if n, ok := envInt("POCHAMOE_ACCESS_LOG_ROTATE_MAX_AGE_DAYS"); ok {
		rot.MaxAgeDays = n
	}
	rot.Compress = envBool("POCHAMOE_ACCESS_LOG_ROTATE_COMPRESS", rot.Compress)
}

func validate(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Versions.Pattern)) {
	case VersionPatternStrict, VersionPatternSuffix:
		cfg.Versions.Pattern = strings.ToLower(strings.TrimSpace(cfg.Versions.Pattern))
	default:
		return fmt.Errorf("versions.pattern must be one of strict|suffix, got %q", cfg.Versions.Pattern)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug|info|warn|error, got %q", cfg.Logging.Level)
	}
	if cfg.Mods.AutoReload.Enabled {
		if strings.TrimSpace(cfg.Mods.File) == "" {
			return errors.New("mods.file is required when mods.auto_reload.enabled=true")
		}
		if cfg.Mods.AutoReload.DebounceMs <= 0 {
			return errors.New("mods.auto_reload.debounce_ms must be > 0 when mods.auto_reload.enabled=true")
		}
	}
	if cfg.Metrics.Enabled {
		p := strings.TrimSpace(cfg.Metrics.Path)
		if !strings.HasPrefix(p, "/") || p == "/" {
			return fmt.Errorf("metrics.path must be an absolute sub path, got %q", cfg.Metrics.Path)
		}
		if p == "/health" || strings.HasPrefix(p, "/v1/") {
			return fmt.Errorf("metrics.path %q collides with an api route", p)
		}
	}
	rot := cfg.Logging.AccessLogRotate
	if rot.Enabled {
		if !cfg.Logging.AccessLog {
			return errors.New("logging.access_log must be true when logging.access_log_rotate.enabled=true")
		}
		if strings.TrimSpace(cfg.Logging.AccessLogPath) == "" {
			return errors.New("logging.access_log_path is required when logging.access_log_rotate.enabled=true")
		}
	}
	if rot.MaxSizeMB <= 0 {
		return errors.New("logging.access_log_rotate.max_size_mb must be > 0")
	}
	if rot.MaxBackups <= 0 {
		return errors.New("logging.access_log_rotate.max_backups must be > 0")
	}
	if rot.MaxAgeDays < 0 {
		return errors.New("logging.access_log_rotate.max_age_days must be >= 0")
	}
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
