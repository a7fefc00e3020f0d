// Package vault reads tenant keys and rotation metadata from the secret
// service that backs credential rotation. All backends are read-only.
package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/systmms/apimprobe/internal/config"
	aperrors "github.com/systmms/apimprobe/internal/errors"
	"github.com/systmms/apimprobe/internal/logging"
)

// ErrSecretNotFound is wrapped by GetSecret when the named secret does not exist.
var ErrSecretNotFound = errors.New("secret not found")

// Vault is the read-only view of a secret service.
type Vault interface {
	// Name identifies the backend, e.g. "azure-keyvault".
	Name() string
	// Instance is the configured vault name / region / project. Empty means
	// the backend has nowhere to read from.
	Instance() string
	// CheckSession verifies the administrative identity can obtain a token.
	CheckSession(ctx context.Context) error
	// GetSecret returns the current value of the named secret.
	GetSecret(ctx context.Context, name string) (string, error)
}

// New builds the backend selected by rotation.backend.
func New(rc config.RotationConfig, logger *logging.Logger) (Vault, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	switch rc.Backend {
	case "", config.BackendAzureKeyVault:
		return NewAzureKeyVault(AzureKeyVaultConfig{
			VaultName:          rc.VaultName,
			TenantID:           rc.TenantID,
			ClientID:           rc.ClientID,
			ClientSecret:       rc.ClientSecret,
			UseManagedIdentity: rc.UseManagedIdentity,
			UserAssignedID:     rc.UserAssignedID,
		}, logger)
	case config.BackendAWSSecretsManager:
		return NewAWSSecretsManager(AWSSecretsManagerConfig{
			Region:          rc.VaultName,
			Endpoint:        rc.Endpoint,
			AccessKeyID:     rc.AccessKeyID,
			SecretAccessKey: rc.SecretAccessKey,
		}, logger)
	case config.BackendGCPSecretManager:
		return NewGCPSecretManager(GCPSecretManagerConfig{
			ProjectID:       rc.VaultName,
			CredentialsFile: rc.CredentialsFile,
		}, logger)
	default:
		return nil, aperrors.ConfigError{
			Field:   "rotation.backend",
			Value:   rc.Backend,
			Message: "unsupported secret service backend",
		}
	}
}

func notFound(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrSecretNotFound, name, err)
}
