package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when no --config is given.
const DefaultConfigFile = ".confcheck.yaml"

type Config struct {
	Rules struct {
		Packs             []string `yaml:"packs"`              // extra YAML rule packs
		NoDefaults        bool     `yaml:"no_defaults"`        // skip the built-in pack
		WithDefaults      bool     `yaml:"with_defaults"`      // keep the built-in pack alongside packs
		SeverityThreshold string   `yaml:"severity_threshold"` // "info"|"warning"|"error"
		Disabled          []string `yaml:"disabled"`           // rule IDs
	} `yaml:"rules"`

	Check struct {
		Workers      int           `yaml:"workers"`        // 0 = GOMAXPROCS
		FileTimeout  time.Duration `yaml:"file_timeout"`   // 0 = no budget
		Include      []string      `yaml:"include"`        // globs applied while walking dirs
		Exclude      []string      `yaml:"exclude"`        // globs applied while walking dirs
		MaxFileBytes int64         `yaml:"max_file_bytes"` // 0 = unlimited
	} `yaml:"check"`

	Database struct {
		DSN string `yaml:"dsn"` // "" disables run history
	} `yaml:"database"`

	Reporting struct {
		Format string `yaml:"format"`  // "text"|"json"|"html"
		OutDir string `yaml:"out_dir"` // "./reports"
		Color  string `yaml:"color"`   // "auto"|"always"|"never"
	} `yaml:"reporting"`

	Server struct {
		Addr           string        `yaml:"addr"`            // "127.0.0.1:8080"
		AllowedOrigins []string      `yaml:"allowed_origins"` // CORS; "*" = any
		SessionTTL     time.Duration `yaml:"session_ttl"`
	} `yaml:"server"`

	Logging struct {
		Format string `yaml:"format"` // "json"|"text"
		Level  string `yaml:"level"`  // "info"|"debug"|"warn"|"error"
	} `yaml:"logging"`
}

func DefaultConfig() Config {
	var c Config
	c.Rules.SeverityThreshold = "info"
	c.Check.MaxFileBytes = 4 << 20
	c.Reporting.Format = "text"
	c.Reporting.OutDir = "./reports"
	c.Reporting.Color = "auto"
	c.Server.Addr = "127.0.0.1:8080"
	c.Server.SessionTTL = 12 * time.Hour
	c.Logging.Format = "text"
	c.Logging.Level = "warn"
	return c
}

// LoadConfig layers defaults, the YAML file and CONFCHECK_* env overrides.
// An empty path falls back to DefaultConfigFile when it exists.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return c, fmt.Errorf("read config: %w", err)
	}

	// Env overrides (simple, explicit)
	if v := os.Getenv("CONFCHECK_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("CONFCHECK_SEVERITY_THRESHOLD"); v != "" {
		c.Rules.SeverityThreshold = v
	}
	if v := os.Getenv("CONFCHECK_DISABLED_RULES"); v != "" {
		c.Rules.Disabled = splitList(v)
	}
	if v := os.Getenv("CONFCHECK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Check.Workers = n
		}
	}
	if v := os.Getenv("CONFCHECK_FILE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Check.FileTimeout = d
		}
	}
	if v := os.Getenv("CONFCHECK_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CONFCHECK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CONFCHECK_OUT_DIR"); v != "" {
		c.Reporting.OutDir = v
	}
	if v := os.Getenv("CONFCHECK_COLOR"); v != "" {
		c.Reporting.Color = v
	}
	if v := os.Getenv("CONFCHECK_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CONFCHECK_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
