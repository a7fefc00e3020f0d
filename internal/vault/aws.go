package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/systmms/apimprobe/internal/config"
	"github.com/systmms/apimprobe/internal/logging"
)

// SecretsManagerClientAPI is the subset of the Secrets Manager client we call.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// STSClientAPI is used for the session check.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSSecretsManagerConfig holds AWS-specific configuration
type AWSSecretsManagerConfig struct {
	Region string
	// Endpoint overrides the service endpoint (LocalStack).
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// AWSSecretsManager reads secrets from AWS Secrets Manager.
type AWSSecretsManager struct {
	config AWSSecretsManagerConfig
	logger *logging.Logger

	mu     sync.Mutex
	client SecretsManagerClientAPI
	sts    STSClientAPI
}

// AWSOption is a functional option for configuring the AWS backend
type AWSOption func(*AWSSecretsManager)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(v *AWSSecretsManager) {
		v.client = client
	}
}

// WithSTSClient sets a custom STS client (for testing)
func WithSTSClient(client STSClientAPI) AWSOption {
	return func(v *AWSSecretsManager) {
		v.sts = client
	}
}

// NewAWSSecretsManager creates the Secrets Manager backend. SDK clients are
// built on first use.
func NewAWSSecretsManager(cfg AWSSecretsManagerConfig, logger *logging.Logger, opts ...AWSOption) (*AWSSecretsManager, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	v := &AWSSecretsManager{config: cfg, logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Name returns the backend name
func (v *AWSSecretsManager) Name() string {
	return config.BackendAWSSecretsManager
}

// Instance returns the configured region.
func (v *AWSSecretsManager) Instance() string {
	return v.config.Region
}

// staticCredentials returns a provider for configured access keys, or nil to
// use the default credential chain.
func (v *AWSSecretsManager) staticCredentials() aws.CredentialsProvider {
	if v.config.AccessKeyID == "" || v.config.SecretAccessKey == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(v.config.AccessKeyID, v.config.SecretAccessKey, "")
}

func (v *AWSSecretsManager) ensureClients(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.client != nil && v.sts != nil {
		return nil
	}

	var configOpts []func(*awsconfig.LoadOptions) error
	if v.config.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(v.config.Region))
	}
	if provider := v.staticCredentials(); provider != nil {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(provider))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	if v.client == nil {
		var clientOpts []func(*secretsmanager.Options)
		if v.config.Endpoint != "" {
			endpoint := v.config.Endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		v.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}
	if v.sts == nil {
		var stsOpts []func(*sts.Options)
		if v.config.Endpoint != "" {
			endpoint := v.config.Endpoint
			stsOpts = append(stsOpts, func(o *sts.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		v.sts = sts.NewFromConfig(awsCfg, stsOpts...)
	}
	return nil
}

// CheckSession calls sts:GetCallerIdentity.
func (v *AWSSecretsManager) CheckSession(ctx context.Context) error {
	if err := v.ensureClients(ctx); err != nil {
		return err
	}
	out, err := v.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("sts:GetCallerIdentity: %w", err)
	}
	v.logger.Debug("AWS session is %s", aws.ToString(out.Arn))
	return nil
}

// GetSecret returns SecretString, or SecretBinary as text.
func (v *AWSSecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	if err := v.ensureClients(ctx); err != nil {
		return "", err
	}

	v.logger.Debug("Reading Secrets Manager secret %s", name)

	out, err := v.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var resourceNotFound *types.ResourceNotFoundException
		if errors.As(err, &resourceNotFound) {
			return "", notFound(name, err)
		}
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}

	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return string(out.SecretBinary), nil
}
