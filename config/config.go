// Package config loads the indexer's startup configuration (spec.md §1: out
// of scope for the core, carried here as the ambient stack). Grounded on the
// teacher's cmd/server/main.go getRPCURL() env-override pattern and on
// blinklabs-io-shai/internal/config's YAML-file-plus-env-override shape,
// adapted to gopkg.in/yaml.v3 and plain os.Getenv overrides rather than a
// struct-tag env library, since nothing else in the domain stack needs one.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full set of values the core components need at startup.
type Config struct {
	DataDir   string `yaml:"dataDir"`
	ChainRPC  ChainRPCConfig `yaml:"chainRpc"`
	HTTPAddr  string `yaml:"httpAddr"`
	Addresses AddressConfig `yaml:"addresses"`
	Workers   int    `yaml:"workers"`
}

// ChainRPCConfig names the upstream node endpoint and credentials. The RPC
// client itself lives outside this module (spec.md §1).
type ChainRPCConfig struct {
	Endpoint string `yaml:"endpoint"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// AddressConfig carries the human-readable prefixes used by the cash-address
// and token-address encodings (spec.md §6).
type AddressConfig struct {
	CashAddrPrefix  string `yaml:"cashAddrPrefix"`
	TokenAddrPrefix string `yaml:"tokenAddrPrefix"`
}

func defaults() Config {
	return Config{
		DataDir:  "./data",
		HTTPAddr: ":8080",
		Workers:  64,
		Addresses: AddressConfig{
			CashAddrPrefix:  "ecash",
			TokenAddrPrefix: "etoken",
		},
	}
}

// Load reads a YAML config file (if path is non-empty and exists), loads a
// .env file from the working directory if present, then applies environment
// overrides on top. Missing file is not an error: every field has a default.
func Load(path string) (Config, error) {
	godotenv.Load()

	cfg := defaults()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CHAIN_RPC_ENDPOINT"); v != "" {
		cfg.ChainRPC.Endpoint = v
	}
	if v := os.Getenv("CHAIN_RPC_USER"); v != "" {
		cfg.ChainRPC.User = v
	}
	if v := os.Getenv("CHAIN_RPC_PASSWORD"); v != "" {
		cfg.ChainRPC.Password = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("CASHADDR_PREFIX"); v != "" {
		cfg.Addresses.CashAddrPrefix = v
	}
	if v := os.Getenv("TOKENADDR_PREFIX"); v != "" {
		cfg.Addresses.TokenAddrPrefix = v
	}
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
}
