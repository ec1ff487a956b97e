// Package config loads process configuration. Sources are layered, later
// ones winning: built-in defaults, an optional YAML file named by
// PL_CONFIG_FILE, then PL_* environment variables (a .env file in the working
// directory is loaded into the environment first).
package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	LedgerLevelDB = "leveldb"
	LedgerGRPC    = "grpc"
	LedgerMemory  = "memory"
)

type Config struct {
	ListenAddr    string        `yaml:"listenAddr" env:"PL_LISTEN_ADDR"`
	Ledger        string        `yaml:"ledger" env:"PL_LEDGER"`
	LedgerPath    string        `yaml:"ledgerPath" env:"PL_LEDGER_PATH"`
	LedgerAddr    string        `yaml:"ledgerAddr" env:"PL_LEDGER_ADDR"`
	LedgerTimeout time.Duration `yaml:"ledgerTimeout" env:"PL_LEDGER_TIMEOUT"`

	// DataKey is the base64 master key for payload encryption. It is never
	// logged or persisted.
	DataKey   string `yaml:"dataKey" env:"PL_DATA_KEY"`
	JWTSecret string `yaml:"jwtSecret" env:"PL_JWT_SECRET"`
	JWTIssuer string `yaml:"jwtIssuer" env:"PL_JWT_ISSUER"`

	MongoURI string `yaml:"mongoUri" env:"PL_MONGO_URI"`
	MongoDB  string `yaml:"mongoDb" env:"PL_MONGO_DB"`
	AuditDB  string `yaml:"auditDb" env:"PL_AUDIT_DB"`

	LogLevel  string `yaml:"logLevel" env:"PL_LOG_LEVEL"`
	LogPretty bool   `yaml:"logPretty" env:"PL_LOG_PRETTY"`
}

func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		Ledger:        LedgerLevelDB,
		LedgerPath:    "./ledger_db",
		LedgerAddr:    "127.0.0.1:7051",
		LedgerTimeout: 5 * time.Second,
		JWTIssuer:     "patientledger",
		MongoDB:       "patient_records",
		AuditDB:       "./audit.db",
		LogLevel:      "info",
	}
}

// Load builds the configuration and validates it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv("PL_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks required settings. The data key must decode to exactly 32
// bytes.
func (c Config) Validate() error {
	var problems []string
	if _, err := c.MasterKey(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.JWTSecret == "" {
		problems = append(problems, "PL_JWT_SECRET is required")
	}
	switch c.Ledger {
	case LedgerLevelDB:
		if c.LedgerPath == "" {
			problems = append(problems, "PL_LEDGER_PATH is required for the leveldb ledger")
		}
	case LedgerGRPC:
		if c.LedgerAddr == "" {
			problems = append(problems, "PL_LEDGER_ADDR is required for the grpc ledger")
		}
	case LedgerMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown ledger %q", c.Ledger))
	}
	if c.LedgerTimeout < 0 {
		problems = append(problems, "PL_LEDGER_TIMEOUT must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MasterKey decodes DataKey.
func (c Config) MasterKey() ([]byte, error) {
	if c.DataKey == "" {
		return nil, errors.New("PL_DATA_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.DataKey)
	if err != nil {
		return nil, errors.New("PL_DATA_KEY is not valid base64")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("PL_DATA_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
