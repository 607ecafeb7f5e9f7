package config

import (
	"fmt"
	"os"
	"strconv"
)

// Contracts holds the on-chain addresses the core embeds into
// transaction-intent payloads. The core never signs or submits anything; an
// external signer consumes these.
type Contracts struct {
	VaultManager   string
	MilestoneNft   string
	StableFxRouter string
	USDC           string
	EURC           string
}

// Config is the process configuration, read once at boot and passed down by
// injection.
type Config struct {
	HTTPAddr      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	AdminAPIToken string
	ChainID       int64
	Contracts     Contracts
	LogDir        string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	chainID := int64(9124)
	if raw := os.Getenv("ARC_CHAIN_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ARC_CHAIN_ID %q: %w", raw, err)
		}
		chainID = parsed
	}

	cfg := &Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        getenv("DB_PORT", "5432"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		AdminAPIToken: os.Getenv("ADMIN_API_TOKEN"),
		ChainID:       chainID,
		Contracts: Contracts{
			VaultManager:   os.Getenv("VAULT_MANAGER_ADDRESS"),
			MilestoneNft:   os.Getenv("MILESTONE_NFT_ADDRESS"),
			StableFxRouter: os.Getenv("STABLEFX_ROUTER_ADDRESS"),
			USDC:           os.Getenv("USDC_ADDRESS"),
			EURC:           os.Getenv("EURC_ADDRESS"),
		},
		LogDir: getenv("LOG_DIR", "./logs"),
	}
	return cfg, nil
}

// DatabaseConfigured reports whether a durable store is configured; without
// it the service runs on the in-memory store.
func (c *Config) DatabaseConfigured() bool {
	return c.DBHost != "" && c.DBUser != "" && c.DBName != ""
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
