package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/systmms/apimprobe/internal/config"
	"github.com/systmms/apimprobe/internal/logging"
)

// keyVaultScope is the token audience for Key Vault data-plane calls.
const keyVaultScope = "https://vault.azure.net/.default"

// AzureKeyVaultClientAPI defines the interface for Azure Key Vault operations
// This allows for mocking in tests
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureKeyVaultConfig holds Azure Key Vault-specific configuration
type AzureKeyVaultConfig struct {
	// VaultName is either a bare vault name or a full vault URL.
	VaultName          string
	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	UserAssignedID     string
}

// AzureKeyVault reads secrets from Azure Key Vault.
type AzureKeyVault struct {
	config AzureKeyVaultConfig
	logger *logging.Logger

	cred    azcore.TokenCredential
	credErr error

	mu     sync.Mutex
	client AzureKeyVaultClientAPI
}

// AzureOption is a functional option for configuring the Azure backend
type AzureOption func(*AzureKeyVault)

// WithAzureKeyVaultClient sets a custom Azure Key Vault client (for testing)
func WithAzureKeyVaultClient(client AzureKeyVaultClientAPI) AzureOption {
	return func(v *AzureKeyVault) {
		v.client = client
	}
}

// WithAzureCredential sets the token credential used for the session check
// and for the real client.
func WithAzureCredential(cred azcore.TokenCredential) AzureOption {
	return func(v *AzureKeyVault) {
		v.cred = cred
	}
}

// NewAzureKeyVault creates the Key Vault backend. A failure to build the
// Azure credential is deferred to CheckSession so callers see it as a
// missing session, not a construction error.
func NewAzureKeyVault(cfg AzureKeyVaultConfig, logger *logging.Logger, opts ...AzureOption) (*AzureKeyVault, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	v := &AzureKeyVault{
		config: cfg,
		logger: logger,
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.cred == nil {
		v.cred, v.credErr = createAzureCredential(cfg)
	}

	return v, nil
}

// createAzureCredential picks managed identity, service principal or the
// default chain (environment, workload identity, Azure CLI).
func createAzureCredential(cfg AzureKeyVaultConfig) (azcore.TokenCredential, error) {
	switch {
	case cfg.UseManagedIdentity && cfg.UserAssignedID != "":
		return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.UserAssignedID),
		})
	case cfg.UseManagedIdentity:
		return azidentity.NewManagedIdentityCredential(nil)
	case cfg.ClientSecret != "":
		return azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	default:
		return azidentity.NewDefaultAzureCredential(nil)
	}
}

// Name returns the backend name
func (v *AzureKeyVault) Name() string {
	return config.BackendAzureKeyVault
}

// Instance returns the configured vault name.
func (v *AzureKeyVault) Instance() string {
	return v.config.VaultName
}

// VaultURL expands a bare vault name into its data-plane URL.
func (v *AzureKeyVault) VaultURL() string {
	name := v.config.VaultName
	if name == "" {
		return ""
	}
	if strings.Contains(name, "://") {
		return name
	}
	return fmt.Sprintf("https://%s.vault.azure.net/", name)
}

// CheckSession acquires a Key Vault token.
func (v *AzureKeyVault) CheckSession(ctx context.Context) error {
	if v.credErr != nil {
		return fmt.Errorf("create Azure credential: %w", v.credErr)
	}
	if v.cred == nil {
		return errors.New("no Azure credential available")
	}
	if _, err := v.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{keyVaultScope}}); err != nil {
		return fmt.Errorf("acquire Key Vault token: %w", err)
	}
	return nil
}

func (v *AzureKeyVault) getClient() (AzureKeyVaultClientAPI, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.client != nil {
		return v.client, nil
	}
	vaultURL := v.VaultURL()
	if vaultURL == "" {
		return nil, errors.New("vault name is not configured")
	}
	if v.cred == nil {
		return nil, fmt.Errorf("create Azure credential: %w", v.credErr)
	}

	client, err := azsecrets.NewClient(vaultURL, v.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	v.client = client
	return client, nil
}

// GetSecret fetches the latest version of a secret
func (v *AzureKeyVault) GetSecret(ctx context.Context, name string) (string, error) {
	client, err := v.getClient()
	if err != nil {
		return "", err
	}

	v.logger.Debug("Reading Key Vault secret %s from %s", name, v.config.VaultName)

	resp, err := client.GetSecret(ctx, name, "", nil)
	if err != nil {
		if isAzureNotFoundError(err) {
			return "", notFound(name, err)
		}
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	if resp.Value == nil {
		return "", nil
	}
	return *resp.Value, nil
}

// isAzureNotFoundError checks if the error indicates a secret was not found
func isAzureNotFoundError(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound || respErr.ErrorCode == "SecretNotFound"
	}
	return strings.Contains(err.Error(), "SecretNotFound")
}
