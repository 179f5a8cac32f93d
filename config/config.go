package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stellavault/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the node operator's TOML configuration. Platform policy
// (fees, feature flags) lives on-ledger in the global config record; this
// file only carries wiring the process needs before state exists.
type Config struct {
	RPCAddress         string `toml:"RPCAddress"`
	DataDir            string `toml:"DataDir"`
	Env                string `toml:"Env"`
	NetworkName        string `toml:"NetworkName"`
	AdminAddress       string `toml:"AdminAddress"`
	LegacyFeeCollector string `toml:"LegacyFeeCollector,omitempty"`
	KeystorePath       string `toml:"KeystorePath"`
}

// Load reads the configuration at path, creating a default file when none
// exists yet so a fresh checkout boots without manual setup.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "stellavault-local"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "local"
	}
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	operator, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	admin := operator.PubKey().Address()

	cfg := &Config{
		RPCAddress:   "127.0.0.1:8645",
		DataDir:      filepath.Join(dir, "data"),
		Env:          "local",
		NetworkName:  "stellavault-local",
		AdminAddress: admin.String(),
		KeystorePath: defaultKeystorePath(path),
	}
	if err := crypto.SaveToKeystore(cfg.KeystorePath, operator, ""); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ensureKeystore generates an operator key when the configured keystore is
// missing. The admin address defaults to the operator key when unset.
func ensureKeystore(configPath string, cfg *Config) error {
	if cfg.KeystorePath == "" {
		cfg.KeystorePath = defaultKeystorePath(configPath)
	}
	if _, err := os.Stat(cfg.KeystorePath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(cfg.KeystorePath, key, ""); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.AdminAddress) == "" {
		cfg.AdminAddress = key.PubKey().Address().String()
	}
	return nil
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "operator.keystore")
}

// Admin returns the configured admin address as raw bytes.
func (c *Config) Admin() ([20]byte, error) {
	return decodeVaultAddress("AdminAddress", c.AdminAddress)
}

// Collector returns the legacy fee collector address, reporting whether
// one is configured at all.
func (c *Config) Collector() ([20]byte, bool, error) {
	if strings.TrimSpace(c.LegacyFeeCollector) == "" {
		return [20]byte{}, false, nil
	}
	addr, err := decodeVaultAddress("LegacyFeeCollector", c.LegacyFeeCollector)
	if err != nil {
		return [20]byte{}, false, err
	}
	return addr, true, nil
}

func decodeVaultAddress(field, value string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("config: invalid %s: %w", field, err)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}
