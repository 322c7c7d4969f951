package backend

import (
	"context"
	"fmt"

	"playbox/internal/log"
	"playbox/internal/playbox"
	"playbox/internal/ports/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case RESTBackend:
		return f.createRESTBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createRESTBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := playbox.New(playbox.Config{
		BaseURL:         config.BaseURL,
		Timeout:         config.Timeout,
		BreakerFailures: config.BreakerFailures,
		Metrics:         config.Metrics,
		Logger:          f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PlayBox client: %w", err)
	}

	// An unreachable backend is not fatal at startup; requests report it.
	if err := client.Ping(ctx); err != nil {
		f.logger.Warn("PlayBox backend not reachable at startup", "url", config.BaseURL, log.FieldError, err.Error())
	}

	f.logger.Info("Initialized REST backend", "url", config.BaseURL, "timeout", config.Timeout.String())

	return &BackendResult{Backend: client}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{Backend: store}, nil
}
