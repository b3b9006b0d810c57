package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultContractAddress = "0x0C179c4Ef979364b28F4A9d6531a00FD3aAEFb03"
	defaultOfficerAddress  = "0x1F926A6cBf8a77C3faA98ef7C82c503d5349d985"
	defaultExplorerURL     = "https://sepolia.etherscan.io"
)

// Config is a struct representing the application's configuration.
type Config struct {
	url             string
	contractAddress string
	officerAddress  string
	privateKey      string
	keystorePath    string
	keystorePass    string
	sidecarBackend  string
	sidecarPath     string
	redisAddr       string
	explorerURL     string
	pollInterval    time.Duration
	addr            string
	logLevel        string
}

var cfg Config

// LoadConfig loads configuration settings from environment variables.
func LoadConfig() error {
	url := os.Getenv("RPC_URL")
	if url == "" {
		network := os.Getenv("NETWORK")
		infuraKey := os.Getenv("INFURA_PROJECT_ID")
		if network == "" || infuraKey == "" {
			return errors.New("RPC_URL or NETWORK and INFURA_PROJECT_ID must be set")
		}
		url = fmt.Sprintf("https://%s.infura.io/v3/%s", network, infuraKey)
	}

	contractAddress := getEnv("CONTRACT_ADDRESS", defaultContractAddress)
	if !common.IsHexAddress(contractAddress) {
		return fmt.Errorf("CONTRACT_ADDRESS is not a valid address: %q", contractAddress)
	}

	officerAddress := getEnv("OFFICER_ADDRESS", defaultOfficerAddress)
	if !common.IsHexAddress(officerAddress) {
		return fmt.Errorf("OFFICER_ADDRESS is not a valid address: %q", officerAddress)
	}

	keystorePath := os.Getenv("WALLET_KEYSTORE")
	privateKey := os.Getenv("WALLET_PRIVATE_KEY")
	if keystorePath != "" && privateKey != "" {
		return errors.New("only one of WALLET_PRIVATE_KEY and WALLET_KEYSTORE can be set")
	}

	backend := getEnv("SIDECAR_BACKEND", "file")
	var defaultPath string
	switch backend {
	case "file":
		defaultPath = "localstorage.json"
	case "sqlite":
		defaultPath = "sidecar.db"
	case "redis":
	default:
		return fmt.Errorf("unsupported SIDECAR_BACKEND %q", backend)
	}

	pollInterval, err := time.ParseDuration(getEnv("NETWORK_POLL_INTERVAL", "15s"))
	if err != nil || pollInterval <= 0 {
		return fmt.Errorf("invalid NETWORK_POLL_INTERVAL: %q", os.Getenv("NETWORK_POLL_INTERVAL"))
	}

	host := getEnv("HOST", "localhost")
	port := getEnv("PORT", "8080")

	cfg = Config{
		url:             url,
		contractAddress: common.HexToAddress(contractAddress).Hex(),
		officerAddress:  common.HexToAddress(officerAddress).Hex(),
		privateKey:      privateKey,
		keystorePath:    keystorePath,
		keystorePass:    os.Getenv("WALLET_PASSPHRASE"),
		sidecarBackend:  backend,
		sidecarPath:     getEnv("SIDECAR_PATH", defaultPath),
		redisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		explorerURL:     getEnv("EXPLORER_URL", defaultExplorerURL),
		pollInterval:    pollInterval,
		addr:            fmt.Sprintf("%s:%s", host, port),
		logLevel:        getEnv("LOG_LEVEL", "INFO"),
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetConfig returns the loaded Config instance.
func GetConfig() Config {
	return cfg
}

// URL returns the Ethereum node URL for the configuration.
func (c Config) URL() string {
	return c.url
}

// ContractAddress returns the checksummed address of the service contract.
func (c Config) ContractAddress() string {
	return c.contractAddress
}

// OfficerAddress returns the checksummed address allowed on the officer dashboard.
func (c Config) OfficerAddress() string {
	return c.officerAddress
}

// PrivateKey returns the hex encoded signing key, empty for a read-only server.
func (c Config) PrivateKey() string {
	return c.privateKey
}

// Keystore returns the encrypted key file path and its passphrase.
func (c Config) Keystore() (string, string) {
	return c.keystorePath, c.keystorePass
}

// SidecarBackend returns which store keeps rejection reasons: file, redis or sqlite.
func (c Config) SidecarBackend() string {
	return c.sidecarBackend
}

// SidecarPath returns the file used by the file and sqlite sidecar backends.
func (c Config) SidecarPath() string {
	return c.sidecarPath
}

// RedisAddr returns the address of the redis sidecar backend.
func (c Config) RedisAddr() string {
	return c.redisAddr
}

// ExplorerURL returns the block explorer used for transaction links.
func (c Config) ExplorerURL() string {
	return c.explorerURL
}

// PollInterval returns how often the session checks the provider's network.
func (c Config) PollInterval() time.Duration {
	return c.pollInterval
}

// Addr returns the application's server address for the configuration.
func (c Config) Addr() string {
	return c.addr
}

// LogLevel returns the logging level for the configuration.
func (c Config) LogLevel() string {
	return c.logLevel
}
