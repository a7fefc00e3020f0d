package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/systmms/apimprobe/internal/config"
	"github.com/systmms/apimprobe/internal/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const gcpScope = "https://www.googleapis.com/auth/cloud-platform"

// GCPSecretManagerClientAPI is the subset of the Secret Manager client we call.
type GCPSecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPSecretManagerConfig holds GCP-specific configuration
type GCPSecretManagerConfig struct {
	ProjectID       string
	CredentialsFile string
}

// GCPSecretManager reads secrets from Google Cloud Secret Manager.
type GCPSecretManager struct {
	config GCPSecretManagerConfig
	logger *logging.Logger

	mu          sync.Mutex
	client      GCPSecretManagerClientAPI
	tokenSource oauth2.TokenSource
}

// GCPOption is a functional option for configuring the GCP backend
type GCPOption func(*GCPSecretManager)

// WithGCPClient sets a custom Secret Manager client (for testing)
func WithGCPClient(client GCPSecretManagerClientAPI) GCPOption {
	return func(v *GCPSecretManager) {
		v.client = client
	}
}

// WithGCPTokenSource sets the token source used by CheckSession.
func WithGCPTokenSource(ts oauth2.TokenSource) GCPOption {
	return func(v *GCPSecretManager) {
		v.tokenSource = ts
	}
}

// NewGCPSecretManager creates the Secret Manager backend.
func NewGCPSecretManager(cfg GCPSecretManagerConfig, logger *logging.Logger, opts ...GCPOption) (*GCPSecretManager, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	v := &GCPSecretManager{config: cfg, logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Name returns the backend name
func (v *GCPSecretManager) Name() string {
	return config.BackendGCPSecretManager
}

// Instance returns the configured project.
func (v *GCPSecretManager) Instance() string {
	return v.config.ProjectID
}

func (v *GCPSecretManager) getTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.tokenSource != nil {
		return v.tokenSource, nil
	}

	var creds *google.Credentials
	var err error
	if v.config.CredentialsFile != "" {
		data, readErr := os.ReadFile(v.config.CredentialsFile)
		if readErr != nil {
			return nil, fmt.Errorf("read credentials file: %w", readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, gcpScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, gcpScope)
	}
	if err != nil {
		return nil, err
	}
	v.tokenSource = creds.TokenSource
	return v.tokenSource, nil
}

// CheckSession fetches an access token from the application default
// credentials (or the configured credentials file).
func (v *GCPSecretManager) CheckSession(ctx context.Context) error {
	ts, err := v.getTokenSource(ctx)
	if err != nil {
		return fmt.Errorf("find Google credentials: %w", err)
	}
	if _, err := ts.Token(); err != nil {
		return fmt.Errorf("fetch Google access token: %w", err)
	}
	return nil
}

func (v *GCPSecretManager) getClient(ctx context.Context) (GCPSecretManagerClientAPI, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.client != nil {
		return v.client, nil
	}

	var clientOptions []option.ClientOption
	if v.config.CredentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(v.config.CredentialsFile))
	}
	client, err := secretmanager.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}
	v.client = client
	return client, nil
}

// GetSecret accesses the latest version of a secret.
func (v *GCPSecretManager) GetSecret(ctx context.Context, name string) (string, error) {
	if v.config.ProjectID == "" {
		return "", errors.New("project is not configured")
	}
	client, err := v.getClient(ctx)
	if err != nil {
		return "", err
	}

	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", v.config.ProjectID, name)
	v.logger.Debug("Reading Secret Manager secret %s", resource)

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return "", notFound(name, err)
		}
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	if resp.GetPayload() == nil {
		return "", nil
	}
	return string(resp.GetPayload().GetData()), nil
}
