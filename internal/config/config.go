package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	aperrors "github.com/systmms/apimprobe/internal/errors"
	"github.com/systmms/apimprobe/internal/logging"
	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 5 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultPollMaxWait  = 5 * time.Minute
	DefaultBackend      = BackendAzureKeyVault
)

// Secret service backends for rotation fallback.
const (
	BackendAzureKeyVault     = "azure-keyvault"
	BackendAWSSecretsManager = "aws-secretsmanager"
	BackendGCPSecretManager  = "gcp-secretmanager"
)

// Header schemes accepted in gateway.header.
const (
	HeaderAPIKey          = "api-key"
	HeaderSubscriptionKey = "subscription-key"
)

// Environment variables that override the file.
const (
	EnvGatewayURL       = "APIM_GATEWAY_URL"
	EnvMaxRetries       = "APIM_MAX_RETRIES"
	EnvRetryDelay       = "APIM_RETRY_DELAY"
	EnvRotationFallback = "ENABLE_ROTATION_FALLBACK"
	EnvKeyVaultName     = "KEY_VAULT_NAME"
	EnvTenants          = "APIM_TENANTS"
)

// Config holds the runtime configuration
type Config struct {
	Path        string
	Logger      *logging.Logger
	MetricsFile string
	Definition  *Definition

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Definition represents the apimprobe.yaml structure
type Definition struct {
	Version  int                     `yaml:"version"`
	Gateway  GatewayConfig           `yaml:"gateway"`
	Retry    RetryConfig             `yaml:"retry"`
	Poll     PollConfig              `yaml:"poll"`
	Rotation RotationConfig          `yaml:"rotation"`
	Tenants  map[string]TenantConfig `yaml:"tenants"`
}

// GatewayConfig describes the gateway front door.
type GatewayConfig struct {
	BaseURL string `yaml:"base_url"`
	Header  string `yaml:"header,omitempty"`
}

// RetryConfig bounds retries for transport failures and 429s.
type RetryConfig struct {
	MaxRetries *int          `yaml:"max_retries,omitempty"`
	Delay      time.Duration `yaml:"delay,omitempty"`
}

// PollConfig controls long-running operation polling.
type PollConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	MaxWait  time.Duration `yaml:"max_wait,omitempty"`
}

// RotationConfig controls the credential rotation fallback.
type RotationConfig struct {
	FallbackEnabled bool   `yaml:"fallback_enabled"`
	Backend         string `yaml:"backend,omitempty"`
	// VaultName is the Key Vault name, the AWS region or the GCP project,
	// depending on Backend.
	VaultName       string `yaml:"vault_name,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`

	// Azure identity. With none of these set the default credential chain
	// (environment, workload identity, Azure CLI) is used.
	TenantID           string `yaml:"tenant_id,omitempty"`
	ClientID           string `yaml:"client_id,omitempty"`
	ClientSecretEnv    string `yaml:"client_secret_env,omitempty"`
	UseManagedIdentity bool   `yaml:"use_managed_identity,omitempty"`
	UserAssignedID     string `yaml:"user_assigned_id,omitempty"`

	// AWS static credentials, read from the named environment variables.
	AccessKeyIDEnv     string `yaml:"access_key_id_env,omitempty"`
	SecretAccessKeyEnv string `yaml:"secret_access_key_env,omitempty"`

	// Resolved from the *_env fields by Load; never read from the file.
	ClientSecret    string `yaml:"-"`
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

// TenantConfig says where a tenant's starting key comes from.
type TenantConfig struct {
	KeyEnv  string `yaml:"key_env,omitempty"`
	Keyring bool   `yaml:"keyring,omitempty"`
}

// Load reads apimprobe.yaml (if present), applies environment overrides
// and defaults, and validates the result.
func (c *Config) Load() error {
	def := &Definition{}

	data, err := os.ReadFile(c.Path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, def); err != nil {
			return aperrors.ConfigError{
				Message:    "invalid YAML syntax in configuration file",
				Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
			}
		}
	case os.IsNotExist(err):
		// The environment alone may be enough (CI jobs).
	default:
		return aperrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if def.Version > 1 {
		return aperrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 1' at the top of your apimprobe.yaml file",
		}
	}

	if err := c.applyEnv(def); err != nil {
		return err
	}
	applyDefaults(def)

	if err := def.Validate(); err != nil {
		return err
	}

	c.Definition = def
	return nil
}

func (c *Config) lookup(key string) (string, bool) {
	if c.LookupEnv != nil {
		return c.LookupEnv(key)
	}
	return os.LookupEnv(key)
}

// Getenv returns an environment value through the same lookup Load uses.
func (c *Config) Getenv(key string) string {
	v, _ := c.lookup(key)
	return v
}

func (c *Config) applyEnv(def *Definition) error {
	if v, ok := c.lookup(EnvGatewayURL); ok && v != "" {
		def.Gateway.BaseURL = v
	}
	if v, ok := c.lookup(EnvMaxRetries); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return aperrors.ConfigError{
				Field:      EnvMaxRetries,
				Value:      v,
				Message:    "must be a non-negative integer",
				Suggestion: "Use e.g. APIM_MAX_RETRIES=3",
			}
		}
		def.Retry.MaxRetries = &n
	}
	if v, ok := c.lookup(EnvRetryDelay); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return aperrors.ConfigError{
				Field:      EnvRetryDelay,
				Value:      v,
				Message:    "must be a non-negative number of seconds",
				Suggestion: "Use e.g. APIM_RETRY_DELAY=5",
			}
		}
		def.Retry.Delay = time.Duration(secs) * time.Second
	}
	if v, ok := c.lookup(EnvRotationFallback); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return aperrors.ConfigError{
				Field:   EnvRotationFallback,
				Value:   v,
				Message: "must be true or false",
			}
		}
		def.Rotation.FallbackEnabled = enabled
	}
	if v, ok := c.lookup(EnvKeyVaultName); ok && v != "" {
		def.Rotation.VaultName = v
	}
	if name := def.Rotation.ClientSecretEnv; name != "" {
		def.Rotation.ClientSecret = c.Getenv(name)
	}
	if name := def.Rotation.AccessKeyIDEnv; name != "" {
		def.Rotation.AccessKeyID = c.Getenv(name)
	}
	if name := def.Rotation.SecretAccessKeyEnv; name != "" {
		def.Rotation.SecretAccessKey = c.Getenv(name)
	}
	if v, ok := c.lookup(EnvTenants); ok && v != "" {
		if def.Tenants == nil {
			def.Tenants = make(map[string]TenantConfig)
		}
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, exists := def.Tenants[name]; !exists {
				def.Tenants[name] = TenantConfig{}
			}
		}
	}
	return nil
}

func applyDefaults(def *Definition) {
	def.Gateway.BaseURL = strings.TrimRight(def.Gateway.BaseURL, "/")
	if def.Gateway.Header == "" {
		def.Gateway.Header = HeaderAPIKey
	}
	if def.Retry.MaxRetries == nil {
		n := DefaultMaxRetries
		def.Retry.MaxRetries = &n
	}
	if def.Retry.Delay == 0 {
		def.Retry.Delay = DefaultRetryDelay
	}
	if def.Poll.Interval == 0 {
		def.Poll.Interval = DefaultPollInterval
	}
	if def.Poll.MaxWait == 0 {
		def.Poll.MaxWait = DefaultPollMaxWait
	}
	if def.Rotation.Backend == "" {
		def.Rotation.Backend = DefaultBackend
	}
	for name, tc := range def.Tenants {
		if tc.KeyEnv == "" {
			tc.KeyEnv = KeyEnvFor(name)
			def.Tenants[name] = tc
		}
	}
}

// Validate checks the merged definition.
func (d *Definition) Validate() error {
	if d.Gateway.BaseURL == "" {
		return aperrors.ConfigError{
			Field:      "gateway.base_url",
			Message:    "gateway base URL is required",
			Suggestion: fmt.Sprintf("Set gateway.base_url in apimprobe.yaml or export %s", EnvGatewayURL),
		}
	}
	u, err := url.Parse(d.Gateway.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return aperrors.ConfigError{
			Field:      "gateway.base_url",
			Value:      d.Gateway.BaseURL,
			Message:    "invalid URL format",
			Suggestion: "Use format: https://apim-name.azure-api.net",
		}
	}

	switch d.Gateway.Header {
	case HeaderAPIKey, HeaderSubscriptionKey:
	default:
		return aperrors.ConfigError{
			Field:      "gateway.header",
			Value:      d.Gateway.Header,
			Message:    "unsupported header scheme",
			Suggestion: fmt.Sprintf("Use %q or %q", HeaderAPIKey, HeaderSubscriptionKey),
		}
	}

	switch d.Rotation.Backend {
	case BackendAzureKeyVault, BackendAWSSecretsManager, BackendGCPSecretManager:
	default:
		return aperrors.ConfigError{
			Field:      "rotation.backend",
			Value:      d.Rotation.Backend,
			Message:    "unsupported secret service backend",
			Suggestion: fmt.Sprintf("Use one of: %s, %s, %s", BackendAzureKeyVault, BackendAWSSecretsManager, BackendGCPSecretManager),
		}
	}

	if d.Rotation.ClientSecretEnv != "" && (d.Rotation.TenantID == "" || d.Rotation.ClientID == "") {
		return aperrors.ConfigError{
			Field:      "rotation.client_secret_env",
			Message:    "service principal login needs tenant_id and client_id",
			Suggestion: "Set rotation.tenant_id and rotation.client_id alongside rotation.client_secret_env",
		}
	}
	if (d.Rotation.AccessKeyIDEnv == "") != (d.Rotation.SecretAccessKeyEnv == "") {
		return aperrors.ConfigError{
			Field:      "rotation.access_key_id_env",
			Message:    "static AWS credentials need both access_key_id_env and secret_access_key_env",
			Suggestion: "Set both fields or neither to use the default AWS credential chain",
		}
	}

	if d.Poll.Interval < 0 || d.Poll.MaxWait < 0 || d.Retry.Delay < 0 {
		return aperrors.ConfigError{
			Message: "durations must not be negative",
		}
	}
	return nil
}

// TenantNames returns the configured tenants in sorted order.
func (d *Definition) TenantNames() []string {
	names := make([]string, 0, len(d.Tenants))
	for name := range d.Tenants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTenant returns a tenant's configuration.
func (c *Config) GetTenant(name string) (TenantConfig, error) {
	if c.Definition == nil {
		return TenantConfig{}, aperrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	tc, ok := c.Definition.Tenants[name]
	if !ok {
		suggestion := "Add the tenant under 'tenants:' in apimprobe.yaml"
		if available := c.Definition.TenantNames(); len(available) > 0 {
			suggestion = fmt.Sprintf("Available tenants: %s", strings.Join(available, ", "))
		}
		return TenantConfig{}, aperrors.ConfigError{
			Field:      "tenant",
			Value:      name,
			Message:    "tenant not found in configuration",
			Suggestion: suggestion,
		}
	}
	return tc, nil
}

// KeyEnvFor is the default environment variable holding a tenant's key,
// e.g. "wlrs" -> "WLRS_SUBSCRIPTION_KEY".
func KeyEnvFor(tenant string) string {
	upper := strings.ToUpper(tenant)
	upper = strings.NewReplacer("-", "_", ".", "_").Replace(upper)
	return upper + "_SUBSCRIPTION_KEY"
}
