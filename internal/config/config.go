// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/netSkope/console-export-tool/internal/console"
	"github.com/netSkope/console-export-tool/internal/tabular"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "S1_EXPORT_"
	// DefaultConfigFile is read when present.
	DefaultConfigFile = "s1-export.yaml"
)

// Config holds all configuration for the export tool.
type Config struct {
	// Console
	ConsoleURL     string
	APIToken       string
	APITokenSecret string // AWS Secrets Manager secret holding the API token
	Proxy          string
	VerifyTLS      bool
	APIVersion     string
	PageSize       int

	// Output
	OutputDir    string
	CSVDelimiter string
	Consolidate  bool
	HeaderPolicy string

	// Logging
	LogDir    string
	LogName   string
	LogDebug  bool
	LogStdout bool

	// S3 delivery (optional)
	S3Bucket           string
	S3Prefix           string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string

	// Job history (optional)
	HistoryHost     string
	HistoryPort     int
	HistoryUser     string
	HistoryPassword string
	HistoryDatabase string

	// Metrics
	MetricsTextfile string
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		VerifyTLS:       true,
		APIVersion:      console.DefaultAPIVersion,
		PageSize:        console.DefaultPageSize,
		OutputDir:       ".",
		CSVDelimiter:    ",",
		Consolidate:     true,
		HeaderPolicy:    string(tabular.HeaderOnce),
		LogDir:          "/tmp",
		LogName:         "s1export",
		S3Prefix:        "s1-export",
		HistoryPort:     3306,
		HistoryDatabase: "s1export",
	}
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String("config-file", DefaultConfigFile, "Config file path")
	fs.String("console-url", "", "Management console base URL (https://...)")
	fs.String("api-token", "", "Console API token")
	fs.String("api-token-secret", "", "AWS Secrets Manager secret holding the API token")
	fs.String("proxy", "", "HTTP(S) proxy URL")
	fs.Bool("verify-tls", d.VerifyTLS, "Verify the console TLS certificate")
	fs.String("api-version", d.APIVersion, "Console API version")
	fs.Int("page-size", d.PageSize, "Records per page (1-1000)")

	fs.String("output-dir", d.OutputDir, "Directory for exported files")
	fs.String("csv-delimiter", d.CSVDelimiter, "Delimiter of intermediate CSV files")
	fs.Bool("consolidate", d.Consolidate, "Assemble one xlsx workbook per job")
	fs.String("header-policy", d.HeaderPolicy, "Header policy: once or per-stream")

	fs.String("log-dir", d.LogDir, "Log directory")
	fs.String("log-name", d.LogName, "Log file name without extension")
	fs.Bool("debug", false, "Enable debug logging")
	fs.Bool("stdout", false, "Log to stdout instead of a file")

	fs.String("s3-bucket", "", "Upload artifacts to this S3 bucket")
	fs.String("s3-prefix", d.S3Prefix, "S3 key prefix")
	fs.String("aws-region", "", "AWS region")
	fs.String("aws-access-key-id", "", "Static AWS access key id")
	fs.String("aws-secret-access-key", "", "Static AWS secret access key")
	fs.String("aws-session-token", "", "Static AWS session token")

	fs.String("history-host", "", "MySQL/MariaDB host for job history")
	fs.Int("history-port", d.HistoryPort, "Job history database port")
	fs.String("history-user", "", "Job history database user")
	fs.String("history-password", "", "Job history database password")
	fs.String("history-auth", "", "Job history auth file (JSON with user and password)")
	fs.String("history-database", d.HistoryDatabase, "Job history database name")

	fs.String("metrics-textfile", "", "Write Prometheus metrics to this file at job end")
}

// Load builds the configuration from flags registered with RegisterFlags.
// Priority: CLI flags > environment variables > YAML file > defaults
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	configFile := DefaultConfigFile
	if val := os.Getenv(EnvPrefix + "CONFIG_FILE"); val != "" {
		configFile = val
	}
	if f := fs.Lookup("config-file"); f != nil && f.Changed {
		configFile = f.Value.String()
	}
	if configFile != "" {
		if err := loadFromYAML(cfg, configFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := loadFromFlags(cfg, fs); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.ConsoleURL == "" {
		return fmt.Errorf("console-url is required")
	}
	u, err := url.Parse(c.ConsoleURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("console-url must be an http(s) URL, got %q", c.ConsoleURL)
	}
	if c.APIToken == "" && c.APITokenSecret == "" {
		return fmt.Errorf("api-token or api-token-secret is required")
	}
	if c.PageSize < 1 || c.PageSize > console.DefaultPageSize {
		return fmt.Errorf("page-size must be between 1 and %d, got %d", console.DefaultPageSize, c.PageSize)
	}
	if _, err := c.Delimiter(); err != nil {
		return err
	}
	if _, err := tabular.ParseHeaderPolicy(c.HeaderPolicy); err != nil {
		return err
	}
	if c.S3Bucket != "" && c.AWSRegion == "" {
		return fmt.Errorf("aws-region is required when s3-bucket is set")
	}
	if c.HistoryHost != "" && c.HistoryUser == "" {
		return fmt.Errorf("history-user is required when history-host is set")
	}
	return nil
}

// Delimiter returns CSVDelimiter as a single rune.
func (c *Config) Delimiter() (rune, error) {
	if utf8.RuneCountInString(c.CSVDelimiter) != 1 {
		return 0, fmt.Errorf("csv-delimiter must be a single character, got %q", c.CSVDelimiter)
	}
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	return r, nil
}

// Policy returns the parsed header policy.
func (c *Config) Policy() tabular.HeaderPolicy {
	p, err := tabular.ParseHeaderPolicy(c.HeaderPolicy)
	if err != nil {
		return tabular.HeaderOnce
	}
	return p
}

// ClientConfig returns the console client settings.
func (c *Config) ClientConfig() console.ClientConfig {
	return console.ClientConfig{
		BaseURL:    c.ConsoleURL,
		APIVersion: c.APIVersion,
		Proxy:      c.Proxy,
		VerifyTLS:  c.VerifyTLS,
	}
}

// loadFromYAML loads configuration from a YAML file.
func loadFromYAML(cfg *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return err
	}

	var yamlCfg struct {
		ConsoleURL         string `yaml:"console_url"`
		APIToken           string `yaml:"api_token"`
		APITokenSecret     string `yaml:"api_token_secret"`
		Proxy              string `yaml:"proxy"`
		VerifyTLS          *bool  `yaml:"verify_tls"`
		APIVersion         string `yaml:"api_version"`
		PageSize           int    `yaml:"page_size"`
		OutputDir          string `yaml:"output_dir"`
		CSVDelimiter       string `yaml:"csv_delimiter"`
		Consolidate        *bool  `yaml:"consolidate"`
		HeaderPolicy       string `yaml:"header_policy"`
		LogDir             string `yaml:"log_dir"`
		LogName            string `yaml:"log_name"`
		LogDebug           bool   `yaml:"debug"`
		LogStdout          bool   `yaml:"stdout"`
		S3Bucket           string `yaml:"s3_bucket"`
		S3Prefix           string `yaml:"s3_prefix"`
		AWSRegion          string `yaml:"aws_region"`
		AWSAccessKeyID     string `yaml:"aws_access_key_id"`
		AWSSecretAccessKey string `yaml:"aws_secret_access_key"`
		AWSSessionToken    string `yaml:"aws_session_token"`
		HistoryHost        string `yaml:"history_host"`
		HistoryPort        int    `yaml:"history_port"`
		HistoryUser        string `yaml:"history_user"`
		HistoryPassword    string `yaml:"history_password"`
		HistoryDatabase    string `yaml:"history_database"`
		MetricsTextfile    string `yaml:"metrics_textfile"`
	}

	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return err
	}

	setString(&cfg.ConsoleURL, yamlCfg.ConsoleURL)
	setString(&cfg.APIToken, yamlCfg.APIToken)
	setString(&cfg.APITokenSecret, yamlCfg.APITokenSecret)
	setString(&cfg.Proxy, yamlCfg.Proxy)
	if yamlCfg.VerifyTLS != nil {
		cfg.VerifyTLS = *yamlCfg.VerifyTLS
	}
	setString(&cfg.APIVersion, yamlCfg.APIVersion)
	if yamlCfg.PageSize != 0 {
		cfg.PageSize = yamlCfg.PageSize
	}
	setString(&cfg.OutputDir, yamlCfg.OutputDir)
	setString(&cfg.CSVDelimiter, yamlCfg.CSVDelimiter)
	if yamlCfg.Consolidate != nil {
		cfg.Consolidate = *yamlCfg.Consolidate
	}
	setString(&cfg.HeaderPolicy, yamlCfg.HeaderPolicy)
	setString(&cfg.LogDir, yamlCfg.LogDir)
	setString(&cfg.LogName, yamlCfg.LogName)
	cfg.LogDebug = cfg.LogDebug || yamlCfg.LogDebug
	cfg.LogStdout = cfg.LogStdout || yamlCfg.LogStdout
	setString(&cfg.S3Bucket, yamlCfg.S3Bucket)
	setString(&cfg.S3Prefix, yamlCfg.S3Prefix)
	setString(&cfg.AWSRegion, yamlCfg.AWSRegion)
	setString(&cfg.AWSAccessKeyID, yamlCfg.AWSAccessKeyID)
	setString(&cfg.AWSSecretAccessKey, yamlCfg.AWSSecretAccessKey)
	setString(&cfg.AWSSessionToken, yamlCfg.AWSSessionToken)
	setString(&cfg.HistoryHost, yamlCfg.HistoryHost)
	if yamlCfg.HistoryPort > 0 {
		cfg.HistoryPort = yamlCfg.HistoryPort
	}
	setString(&cfg.HistoryUser, yamlCfg.HistoryUser)
	setString(&cfg.HistoryPassword, yamlCfg.HistoryPassword)
	setString(&cfg.HistoryDatabase, yamlCfg.HistoryDatabase)
	setString(&cfg.MetricsTextfile, yamlCfg.MetricsTextfile)

	return nil
}

// loadFromEnv loads configuration from environment variables.
func loadFromEnv(cfg *Config) error {
	setString(&cfg.ConsoleURL, os.Getenv(EnvPrefix+"CONSOLE_URL"))
	setString(&cfg.APIToken, os.Getenv(EnvPrefix+"API_TOKEN"))
	setString(&cfg.APITokenSecret, os.Getenv(EnvPrefix+"API_TOKEN_SECRET"))
	setString(&cfg.Proxy, os.Getenv(EnvPrefix+"PROXY"))
	setString(&cfg.APIVersion, os.Getenv(EnvPrefix+"API_VERSION"))
	setString(&cfg.OutputDir, os.Getenv(EnvPrefix+"OUTPUT_DIR"))
	setString(&cfg.CSVDelimiter, os.Getenv(EnvPrefix+"CSV_DELIMITER"))
	setString(&cfg.HeaderPolicy, os.Getenv(EnvPrefix+"HEADER_POLICY"))
	setString(&cfg.LogDir, os.Getenv(EnvPrefix+"LOG_DIR"))
	setString(&cfg.LogName, os.Getenv(EnvPrefix+"LOG_NAME"))
	setString(&cfg.S3Bucket, os.Getenv(EnvPrefix+"S3_BUCKET"))
	setString(&cfg.S3Prefix, os.Getenv(EnvPrefix+"S3_PREFIX"))
	setString(&cfg.AWSRegion, os.Getenv(EnvPrefix+"AWS_REGION"))
	setString(&cfg.AWSAccessKeyID, os.Getenv(EnvPrefix+"AWS_ACCESS_KEY_ID"))
	setString(&cfg.AWSSecretAccessKey, os.Getenv(EnvPrefix+"AWS_SECRET_ACCESS_KEY"))
	setString(&cfg.AWSSessionToken, os.Getenv(EnvPrefix+"AWS_SESSION_TOKEN"))
	setString(&cfg.HistoryHost, os.Getenv(EnvPrefix+"HISTORY_HOST"))
	setString(&cfg.HistoryUser, os.Getenv(EnvPrefix+"HISTORY_USER"))
	setString(&cfg.HistoryPassword, os.Getenv(EnvPrefix+"HISTORY_PASSWORD"))
	setString(&cfg.HistoryDatabase, os.Getenv(EnvPrefix+"HISTORY_DATABASE"))
	setString(&cfg.MetricsTextfile, os.Getenv(EnvPrefix+"METRICS_TEXTFILE"))

	ints := map[string]*int{
		"PAGE_SIZE":    &cfg.PageSize,
		"HISTORY_PORT": &cfg.HistoryPort,
	}
	for name, dst := range ints {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, val, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"VERIFY_TLS":  &cfg.VerifyTLS,
		"CONSOLIDATE": &cfg.Consolidate,
		"DEBUG":       &cfg.LogDebug,
		"STDOUT":      &cfg.LogStdout,
	}
	for name, dst := range bools {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, val, err)
			}
			*dst = b
		}
	}
	return nil
}

// loadFromFlags applies only the flags the user set.
func loadFromFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "console-url":
			cfg.ConsoleURL = f.Value.String()
		case "api-token":
			cfg.APIToken = f.Value.String()
		case "api-token-secret":
			cfg.APITokenSecret = f.Value.String()
		case "proxy":
			cfg.Proxy = f.Value.String()
		case "verify-tls":
			cfg.VerifyTLS, err = fs.GetBool(f.Name)
		case "api-version":
			cfg.APIVersion = f.Value.String()
		case "page-size":
			cfg.PageSize, err = fs.GetInt(f.Name)
		case "output-dir":
			cfg.OutputDir = f.Value.String()
		case "csv-delimiter":
			cfg.CSVDelimiter = f.Value.String()
		case "consolidate":
			cfg.Consolidate, err = fs.GetBool(f.Name)
		case "header-policy":
			cfg.HeaderPolicy = f.Value.String()
		case "log-dir":
			cfg.LogDir = f.Value.String()
		case "log-name":
			cfg.LogName = f.Value.String()
		case "debug":
			cfg.LogDebug, err = fs.GetBool(f.Name)
		case "stdout":
			cfg.LogStdout, err = fs.GetBool(f.Name)
		case "s3-bucket":
			cfg.S3Bucket = f.Value.String()
		case "s3-prefix":
			cfg.S3Prefix = f.Value.String()
		case "aws-region":
			cfg.AWSRegion = f.Value.String()
		case "aws-access-key-id":
			cfg.AWSAccessKeyID = f.Value.String()
		case "aws-secret-access-key":
			cfg.AWSSecretAccessKey = f.Value.String()
		case "aws-session-token":
			cfg.AWSSessionToken = f.Value.String()
		case "history-host":
			cfg.HistoryHost = f.Value.String()
		case "history-port":
			cfg.HistoryPort, err = fs.GetInt(f.Name)
		case "history-user":
			cfg.HistoryUser = f.Value.String()
		case "history-password":
			cfg.HistoryPassword = f.Value.String()
		case "history-database":
			cfg.HistoryDatabase = f.Value.String()
		case "metrics-textfile":
			cfg.MetricsTextfile = f.Value.String()
		}
	})
	if err != nil {
		return err
	}

	if f := fs.Lookup("history-auth"); f != nil && f.Changed {
		if err := cfg.ReadHistoryAuth(f.Value.String()); err != nil {
			return fmt.Errorf("failed to read history auth file: %w", err)
		}
	}
	return nil
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// HistoryDSN returns the job history connection string.
func (c *Config) HistoryDSN() string {
	host := c.HistoryHost
	if c.HistoryPort > 0 && c.HistoryPort != 3306 {
		host = fmt.Sprintf("%s:%d", c.HistoryHost, c.HistoryPort)
	}

	dsn := fmt.Sprintf("tcp(%s)/%s?parseTime=true", host, c.HistoryDatabase)
	if c.HistoryUser != "" {
		if c.HistoryPassword != "" {
			dsn = fmt.Sprintf("%s:%s@%s", c.HistoryUser, c.HistoryPassword, dsn)
		} else {
			dsn = fmt.Sprintf("%s@%s", c.HistoryUser, dsn)
		}
	}
	return dsn
}

// ReadHistoryAuth reads history database credentials from an auth file (JSON format).
func (c *Config) ReadHistoryAuth(authFile string) error {
	if authFile == "" {
		return nil
	}

	data, err := os.ReadFile(authFile)
	if err != nil {
		return fmt.Errorf("failed to read auth file: %w", err)
	}

	var auth struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}

	if err := json.Unmarshal(data, &auth); err != nil {
		return fmt.Errorf("failed to parse auth file: %w", err)
	}

	c.HistoryUser = auth.User
	c.HistoryPassword = auth.Password
	return nil
}
