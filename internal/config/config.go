package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBrokerURL   = "https://api.bgpkit.com/v3/broker"
	DefaultChannelSize = 8192
	DefaultPageSize    = 1000
)

// ScanConfig holds the parameters of a single scan run.
type ScanConfig struct {
	// Timestamp of the RIB snapshot, RFC 3339 or unix seconds.
	Timestamp   string `yaml:"timestamp"`
	NumWorkers  int    `yaml:"num_workers"`
	ChannelSize int    `yaml:"channel_size"`
}

// BrokerConfig configures the archive index lookup.
type BrokerConfig struct {
	URL        string   `yaml:"url"`
	Timeout    string   `yaml:"timeout"`
	PageSize   int      `yaml:"page_size"`
	Collectors []string `yaml:"collectors"`
	Project    string   `yaml:"project"`
}

// SourceDef is a statically configured data source. When any are present the broker is not queried.
type SourceDef struct {
	Collector string `yaml:"collector"`
	Project   string `yaml:"project"`
	URL       string `yaml:"url"`
	RoughSize int64  `yaml:"rough_size"`
}

// S3Config configures access to s3:// source locators.
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// RouteServerDef is one entry of the monitored route server table.
type RouteServerDef struct {
	ASN  uint32 `yaml:"asn"`
	Name string `yaml:"name"`
}

// ClickHouseConfig holds connection settings for the ClickHouse writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig holds connection settings for the NATS writer.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SMTPConfig holds the mail relay and recipients for the email writer.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	// To is a comma-separated list of recipients.
	To string `yaml:"to"`
	// OnlyOnFailure suppresses the mail when every source completed.
	OnlyOnFailure bool `yaml:"only_on_failure"`
}

// WriterDef defines a report writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Path       string           `yaml:"path"`
	RootPath   string           `yaml:"root_path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
	SMTP       SMTPConfig       `yaml:"smtp"`
}

// MetricsConfig configures the run metrics.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Scan         ScanConfig       `yaml:"scan"`
	Broker       BrokerConfig     `yaml:"broker"`
	Sources      []SourceDef      `yaml:"sources"`
	S3           S3Config         `yaml:"s3"`
	RouteServers []RouteServerDef `yaml:"route_servers"`
	Writers      []WriterDef      `yaml:"writers"`
	Metrics      MetricsConfig    `yaml:"metrics"`
	Log          LogConfig        `yaml:"log"`
}

// LoadConfig reads the configuration from a YAML file and returns a validated Config struct.
// ${VAR} references in the file are expanded from the environment.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills in defaults and rejects values the scan cannot run with.
func (c *Config) Validate() error {
	if c.Scan.NumWorkers == 0 {
		c.Scan.NumWorkers = 20
	}
	if c.Scan.NumWorkers < 0 {
		return fmt.Errorf("scan.num_workers must be positive, got %d", c.Scan.NumWorkers)
	}
	if c.Scan.ChannelSize == 0 {
		c.Scan.ChannelSize = DefaultChannelSize
	}
	if c.Scan.ChannelSize < 0 {
		return fmt.Errorf("scan.channel_size must be positive, got %d", c.Scan.ChannelSize)
	}
	if c.Scan.Timestamp != "" {
		if _, err := ParseTimestamp(c.Scan.Timestamp); err != nil {
			return err
		}
	}

	if c.Broker.URL == "" {
		c.Broker.URL = DefaultBrokerURL
	}
	if c.Broker.Timeout == "" {
		c.Broker.Timeout = "30s"
	}
	if _, err := time.ParseDuration(c.Broker.Timeout); err != nil {
		return fmt.Errorf("invalid broker timeout: %w", err)
	}
	if c.Broker.PageSize <= 0 {
		c.Broker.PageSize = DefaultPageSize
	}

	for i, src := range c.Sources {
		if src.URL == "" {
			return fmt.Errorf("sources[%d]: url is required", i)
		}
		if src.Collector == "" {
			c.Sources[i].Collector = fmt.Sprintf("source-%d", i)
		}
	}

	for i, w := range c.Writers {
		if w.Type == "" {
			return fmt.Errorf("writers[%d]: type is required", i)
		}
	}

	if c.Metrics.Job == "" {
		c.Metrics.Job = "ix_scan"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}

// BrokerTimeout returns the parsed broker request timeout.
func (c *Config) BrokerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Broker.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ParseTimestamp accepts RFC 3339 or unix seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}
