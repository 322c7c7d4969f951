package backend

import (
	"fmt"

	"playbox/internal/config"
	"playbox/internal/metrics"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config, collector *metrics.Collector) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:            backendType,
		BaseURL:         appConfig.PlayBoxAPIURL,
		Timeout:         appConfig.PlayBoxTimeout,
		BreakerFailures: appConfig.BreakerFailures,
		Metrics:         collector,
		SeedFile:        appConfig.MemorySeedFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case RESTBackend:
		if c.BaseURL == "" {
			return fmt.Errorf("PlayBox API URL is required for rest backend")
		}
	case MemoryBackend:
		// An empty seed file means the built-in demo users.
	}
	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{RESTBackend.String(), MemoryBackend.String()}
}
