package config

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/openhedge/arbitrage/pkg/exchange/aevo"
	"github.com/openhedge/arbitrage/pkg/exchange/dydx"
	"github.com/openhedge/arbitrage/pkg/transport"
)

type VenueConfig struct {
	Transport  *transport.WSConfig `yaml:"transport"`
	Instrument string              `yaml:"instrument"`
}

type AppConfig struct {
	ServiceName string       `yaml:"service_name"`
	Dydx        *VenueConfig `yaml:"dydx"`
	Aevo        *VenueConfig `yaml:"aevo"`
	Policy      string       `yaml:"policy"`
	MetricsAddr string       `yaml:"metrics_addr"`
}

// Default is the configuration used when no file is given: production
// endpoints, BTC books, continue-on-error.
func Default() *AppConfig {
	return &AppConfig{
		ServiceName: "arbitrage",
		Dydx: &VenueConfig{
			Transport: &transport.WSConfig{
				URL:                     dydx.DefaultURL,
				HandshakeTimeoutSeconds: 15,
				DialMaxElapsedSeconds:   60,
			},
			Instrument: "BTC-USD",
		},
		Aevo: &VenueConfig{
			Transport: &transport.WSConfig{
				URL:                     aevo.DefaultURL,
				HandshakeTimeoutSeconds: 15,
				DialMaxElapsedSeconds:   60,
			},
			Instrument: "BTC-PERP",
		},
		Policy: "continue",
	}
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}
	if len(filePath) == 0 {
		return Default(), nil
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := Default()

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}
