package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ProvidersConfig holds settings for the external payment and extraction
// providers. Loaded from an optional TOML file so keys stay out of the
// environment in local setups.
type ProvidersConfig struct {
	Payment    PaymentProvider    `toml:"payment"`
	Extraction ExtractionProvider `toml:"extraction"`
}

type PaymentProvider struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type ExtractionProvider struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// LoadProvidersConfig loads provider configuration from a TOML file.
func LoadProvidersConfig(filename string) (*ProvidersConfig, error) {
	config := &ProvidersConfig{}
	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("failed to load providers config: %w", err)
	}
	return config, nil
}
