// Package config loads the registers service configuration.
//
// Configuration comes from, in increasing precedence: built-in defaults, a
// YAML file, and REGISTERS_* environment variables. Without an explicit
// path the file registers.yaml is searched for from the working directory
// up to the filesystem root.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/acksell/registers/representation"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file searched for by Load.
const FileName = "registers.yaml"

const (
	BackendBadger   = "badger"
	BackendDynamoDB = "dynamodb"
)

// Config is the service configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// Domain is the parent domain registers are served under, e.g.
	// country.<domain>.
	Domain string `yaml:"domain"`
	// ArchiveTemplate locates a register's archive. "{register}" is
	// replaced by the register name.
	ArchiveTemplate string `yaml:"archiveUrl"`
	// FetchTimeout bounds an archive download. Zero means no timeout.
	FetchTimeout time.Duration `yaml:"fetchTimeout"`

	PageSize  int `yaml:"pageSize"`
	BatchSize int `yaml:"batchSize"`

	// Backend is "badger" or "dynamodb".
	Backend  string   `yaml:"backend"`
	DataDir  string   `yaml:"dataDir"`
	InMemory bool     `yaml:"inMemory"`
	DynamoDB DynamoDB `yaml:"dynamodb"`

	// Links overrides the rendering strategy of fields, e.g.
	// "addressCountry: register:country/addressCountry".
	Links map[string]string `yaml:"links"`
	// Fields, when set, is the set of known field names Links is checked
	// against.
	Fields []string `yaml:"fields"`

	LogLevel string `yaml:"logLevel"`
}

// DynamoDB configures the DynamoDB backend.
type DynamoDB struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	// AssumeRoleARN, when set, is assumed through STS for all calls.
	AssumeRoleARN string `yaml:"assumeRoleArn"`
	// Static credentials, for local DynamoDB only.
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Listen:          ":8080",
		Domain:          "openregister.org",
		ArchiveTemplate: "https://github.com/openregister/{register}.register/archive/master.zip",
		PageSize:        100,
		BatchSize:       500,
		Backend:         BackendBadger,
		DataDir:         "./data",
		LogLevel:        "info",
	}
}

// Load reads the configuration. An empty path searches for FileName; if
// none is found the defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = FindFile(FileName)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// FindFile searches for name walking up from the current directory.
// Returns "" if not found.
func FindFile(name string) string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"REGISTERS_LISTEN":            &c.Listen,
		"REGISTERS_DOMAIN":            &c.Domain,
		"REGISTERS_ARCHIVE_URL":       &c.ArchiveTemplate,
		"REGISTERS_BACKEND":           &c.Backend,
		"REGISTERS_DATA_DIR":          &c.DataDir,
		"REGISTERS_LOG_LEVEL":         &c.LogLevel,
		"REGISTERS_DYNAMODB_TABLE":    &c.DynamoDB.Table,
		"REGISTERS_DYNAMODB_REGION":   &c.DynamoDB.Region,
		"REGISTERS_DYNAMODB_ENDPOINT": &c.DynamoDB.Endpoint,
		"REGISTERS_DYNAMODB_ROLE_ARN": &c.DynamoDB.AssumeRoleARN,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"REGISTERS_PAGE_SIZE":  &c.PageSize,
		"REGISTERS_BATCH_SIZE": &c.BatchSize,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("REGISTERS_IN_MEMORY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REGISTERS_IN_MEMORY: %w", err)
		}
		c.InMemory = b
	}
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendBadger:
		if c.DataDir == "" && !c.InMemory {
			errs = append(errs, errors.New("badger backend needs dataDir or inMemory"))
		}
	case BackendDynamoDB:
		if c.DynamoDB.Table == "" {
			errs = append(errs, errors.New("dynamodb backend needs dynamodb.table"))
		}
		if (c.DynamoDB.AccessKeyID == "") != (c.DynamoDB.SecretAccessKey == "") {
			errs = append(errs, errors.New("dynamodb.accessKeyId and dynamodb.secretAccessKey must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Domain == "" {
		errs = append(errs, errors.New("domain is required"))
	}
	if !strings.Contains(c.ArchiveTemplate, "{register}") {
		errs = append(errs, fmt.Errorf("archiveUrl %q must contain {register}", c.ArchiveTemplate))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("pageSize must be positive, got %d", c.PageSize))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batchSize must be positive, got %d", c.BatchSize))
	}
	if c.FetchTimeout < 0 {
		errs = append(errs, errors.New("fetchTimeout must not be negative"))
	}
	if _, err := c.ParseLogLevel(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LinkTable(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ArchiveURL returns the archive location of a register.
func (c Config) ArchiveURL(register string) string {
	return strings.ReplaceAll(c.ArchiveTemplate, "{register}", register)
}

// LinkTable returns the default link table with the configured overrides
// applied. Overrides are checked against Fields when it is set; every
// strategy of the merged table is checked always.
func (c Config) LinkTable() (representation.Links, error) {
	overrides, err := representation.ParseLinks(c.Domain, c.Links)
	if err != nil {
		return representation.Links{}, fmt.Errorf("links: %w", err)
	}
	if len(c.Fields) > 0 {
		if err := overrides.Validate(c.Fields); err != nil {
			return representation.Links{}, fmt.Errorf("links: %w", err)
		}
	}
	table := representation.DefaultLinks(c.Domain).With(overrides)
	if err := table.Validate(nil); err != nil {
		return representation.Links{}, fmt.Errorf("links: %w", err)
	}
	return table, nil
}

// ParseLogLevel returns the slog level named by LogLevel.
func (c Config) ParseLogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("logLevel: %w", err)
	}
	return l, nil
}
