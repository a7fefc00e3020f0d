package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager.
type FakeSecretsManagerClient struct {
	mu sync.Mutex
	// Secrets maps secret names to SecretString values
	Secrets map[string]string
	// Binary maps secret names to SecretBinary values
	Binary map[string][]byte
	// Errors maps secret names to errors to return
	Errors map[string]error
}

// NewFakeSecretsManagerClient creates a new mock Secrets Manager client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Binary:  make(map[string][]byte),
		Errors:  make(map[string]error),
	}
}

// AddSecretString adds a string secret to the mock client
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// AddSecretBinary adds a binary secret to the mock client
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Binary[name] = value
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	if value, exists := f.Secrets[name]; exists {
		return &secretsmanager.GetSecretValueOutput{
			Name:         aws.String(name),
			SecretString: aws.String(value),
		}, nil
	}
	if value, exists := f.Binary[name]; exists {
		return &secretsmanager.GetSecretValueOutput{
			Name:         aws.String(name),
			SecretBinary: value,
		}, nil
	}
	return nil, &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

// FakeSTSClient returns a fixed caller identity or Err.
type FakeSTSClient struct {
	Err error
	Arn string
}

// GetCallerIdentity mocks sts:GetCallerIdentity.
func (f *FakeSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	arn := f.Arn
	if arn == "" {
		arn = "arn:aws:iam::123456789012:user/ci"
	}
	return &sts.GetCallerIdentityOutput{Arn: aws.String(arn)}, nil
}
