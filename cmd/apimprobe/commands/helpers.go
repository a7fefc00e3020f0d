package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/systmms/apimprobe/internal/config"
	"github.com/systmms/apimprobe/internal/credentials"
	"github.com/systmms/apimprobe/internal/gateway"
	"github.com/systmms/apimprobe/internal/logging"
	"github.com/systmms/apimprobe/internal/vault"
)

// newVault builds the rotation secret service. Tests replace it.
var newVault = func(rc config.RotationConfig, logger *logging.Logger) (vault.Vault, error) {
	return vault.New(rc, logger)
}

// newKeyReader returns the OS keyring reader used to seed tenant keys.
var newKeyReader = func() credentials.KeyReader {
	return vault.NewKeyring()
}

// probe bundles the components one command invocation needs.
type probe struct {
	cfg         *config.Config
	vault       vault.Vault
	store       *credentials.Store
	executor    *gateway.Executor
	coordinator *gateway.Coordinator
	poller      *gateway.Poller
}

// newProbe loads configuration and wires the gateway client.
func newProbe(cfg *config.Config) (*probe, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	def := cfg.Definition
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(false, true)
		cfg.Logger = logger
	}

	var v vault.Vault
	if def.Rotation.FallbackEnabled {
		var err error
		v, err = newVault(def.Rotation, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create secret service client: %w", err)
		}
	}

	store := credentials.NewStore(credentials.Options{
		Vault:           v,
		FallbackEnabled: def.Rotation.FallbackEnabled,
		Logger:          logger,
	})
	store.Seed(def, cfg.Getenv, newKeyReader())

	metrics := gateway.NewMetrics()
	executor := gateway.NewExecutor(store, gateway.ExecutorConfig{
		BaseURL: def.Gateway.BaseURL,
		Scheme:  gateway.Scheme(def.Gateway.Header),
		Logger:  logger,
		Metrics: metrics,
	})

	retryCfg := gateway.RetryConfig{MaxRetries: config.DefaultMaxRetries, Delay: def.Retry.Delay}
	if def.Retry.MaxRetries != nil {
		retryCfg.MaxRetries = *def.Retry.MaxRetries
	}

	return &probe{
		cfg:         cfg,
		vault:       v,
		store:       store,
		executor:    executor,
		coordinator: gateway.NewCoordinator(executor, store, retryCfg, gateway.WithLogger(logger), gateway.WithMetrics(metrics)),
		poller:      gateway.NewPoller(executor, def.Gateway.BaseURL, def.Poll.Interval, gateway.WithLogger(logger), gateway.WithMetrics(metrics)),
	}, nil
}

// checkTenant rejects tenants missing from the configuration.
func (p *probe) checkTenant(tenant string) error {
	_, err := p.cfg.GetTenant(tenant)
	return err
}

// readData interprets --data: a literal JSON document, "@path" for a file,
// or "@-" for stdin.
func readData(data string) ([]byte, error) {
	if !strings.HasPrefix(data, "@") {
		return []byte(data), nil
	}
	path := strings.TrimPrefix(data, "@")
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return content, nil
}
