package trader

import (
	"github.com/hazyhaar/traderig/trader/internal/config"
)

// Config is the top-level engine configuration. Re-exported from internal.
type Config = config.Config

// OrderConfig holds the ticket parameters for placed orders.
type OrderConfig = config.OrderConfig

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// TimeoutsConfig bounds the engine's waits.
type TimeoutsConfig = config.TimeoutsConfig

// AttemptsConfig sets the retry budgets.
type AttemptsConfig = config.AttemptsConfig

// DiagConfig controls the diagnostics sink and viewer.
type DiagConfig = config.DiagConfig

// Close modes for the end-of-run position cleanup.
const (
	CloseIndividual = config.CloseIndividual
	CloseBulk       = config.CloseBulk
)

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return config.Default()
}
