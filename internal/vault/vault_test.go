package vault_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/apimprobe/internal/config"
	"github.com/systmms/apimprobe/internal/vault"
	"github.com/systmms/apimprobe/tests/fakes"
	"github.com/zalando/go-keyring"
)

func TestAzureKeyVaultGetSecret(t *testing.T) {
	t.Parallel()

	kv := fakes.NewFakeAzureKeyVaultClient()
	kv.AddSecretString("wlrs-apim-primary-key", "K2")
	kv.AddError("wlrs-apim-secondary-key", fakes.AzureForbiddenError())

	v, err := vault.NewAzureKeyVault(vault.AzureKeyVaultConfig{VaultName: "kv-test"}, nil,
		vault.WithAzureKeyVaultClient(kv),
		vault.WithAzureCredential(&fakes.FakeTokenCredential{}))
	require.NoError(t, err)

	ctx := context.Background()

	value, err := v.GetSecret(ctx, "wlrs-apim-primary-key")
	require.NoError(t, err)
	assert.Equal(t, "K2", value)

	_, err = v.GetSecret(ctx, "wlrs-apim-rotation-metadata")
	assert.ErrorIs(t, err, vault.ErrSecretNotFound)

	_, err = v.GetSecret(ctx, "wlrs-apim-secondary-key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, vault.ErrSecretNotFound)

	assert.Equal(t, 3, kv.CallCount())
}

func TestAzureKeyVaultSession(t *testing.T) {
	t.Parallel()

	cred := &fakes.FakeTokenCredential{}
	v, err := vault.NewAzureKeyVault(vault.AzureKeyVaultConfig{VaultName: "kv-test"}, nil,
		vault.WithAzureCredential(cred))
	require.NoError(t, err)

	require.NoError(t, v.CheckSession(context.Background()))
	assert.Equal(t, []string{"https://vault.azure.net/.default"}, cred.Scopes)

	cred.Err = errors.New("AzureCLICredential: please run 'az login'")
	err = v.CheckSession(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "az login")
}

func TestAzureKeyVaultURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		instance string
		want     string
	}{
		{name: "bare name", instance: "kv-apim-test", want: "https://kv-apim-test.vault.azure.net/"},
		{name: "full url", instance: "https://custom.vault.azure.cn/", want: "https://custom.vault.azure.cn/"},
		{name: "unset", instance: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := vault.NewAzureKeyVault(vault.AzureKeyVaultConfig{VaultName: tt.instance}, nil,
				vault.WithAzureCredential(&fakes.FakeTokenCredential{}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.VaultURL())
			assert.Equal(t, tt.instance, v.Instance())
		})
	}
}

func TestAzureKeyVaultUnconfiguredClient(t *testing.T) {
	t.Parallel()

	v, err := vault.NewAzureKeyVault(vault.AzureKeyVaultConfig{}, nil,
		vault.WithAzureCredential(&fakes.FakeTokenCredential{}))
	require.NoError(t, err)

	_, err = v.GetSecret(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestAWSSecretsManager(t *testing.T) {
	t.Parallel()

	sm := fakes.NewFakeSecretsManagerClient()
	sm.AddSecretString("wlrs-apim-secondary-key", "S2")
	sm.AddSecretBinary("wlrs-apim-primary-key", []byte("P2"))
	stsClient := &fakes.FakeSTSClient{}

	v, err := vault.NewAWSSecretsManager(vault.AWSSecretsManagerConfig{Region: "ca-central-1"}, nil,
		vault.WithSecretsManagerClient(sm),
		vault.WithSTSClient(stsClient))
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, config.BackendAWSSecretsManager, v.Name())
	assert.Equal(t, "ca-central-1", v.Instance())
	require.NoError(t, v.CheckSession(ctx))

	value, err := v.GetSecret(ctx, "wlrs-apim-secondary-key")
	require.NoError(t, err)
	assert.Equal(t, "S2", value)

	value, err = v.GetSecret(ctx, "wlrs-apim-primary-key")
	require.NoError(t, err)
	assert.Equal(t, "P2", value)

	_, err = v.GetSecret(ctx, "missing")
	assert.ErrorIs(t, err, vault.ErrSecretNotFound)

	stsClient.Err = errors.New("ExpiredToken")
	assert.Error(t, v.CheckSession(ctx))
}

func TestGCPSecretManager(t *testing.T) {
	t.Parallel()

	sm := fakes.NewFakeGCPSecretManagerClient()
	sm.AddLatest("apim-proj", "wlrs-apim-primary-key", []byte("G2"))
	ts := &fakes.FakeTokenSource{}

	v, err := vault.NewGCPSecretManager(vault.GCPSecretManagerConfig{ProjectID: "apim-proj"}, nil,
		vault.WithGCPClient(sm),
		vault.WithGCPTokenSource(ts))
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, "apim-proj", v.Instance())
	require.NoError(t, v.CheckSession(ctx))

	value, err := v.GetSecret(ctx, "wlrs-apim-primary-key")
	require.NoError(t, err)
	assert.Equal(t, "G2", value)

	_, err = v.GetSecret(ctx, "wlrs-apim-secondary-key")
	assert.ErrorIs(t, err, vault.ErrSecretNotFound)

	ts.Err = errors.New("could not find default credentials")
	assert.Error(t, v.CheckSession(ctx))
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend string
		want    string
	}{
		{backend: "", want: config.BackendAzureKeyVault},
		{backend: config.BackendAzureKeyVault, want: config.BackendAzureKeyVault},
		{backend: config.BackendAWSSecretsManager, want: config.BackendAWSSecretsManager},
		{backend: config.BackendGCPSecretManager, want: config.BackendGCPSecretManager},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			v, err := vault.New(config.RotationConfig{Backend: tt.backend, VaultName: "x"}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Name())
			assert.Equal(t, "x", v.Instance())
		})
	}

	_, err := vault.New(config.RotationConfig{Backend: "hashicorp"}, nil)
	assert.Error(t, err)
}

func TestKeyring(t *testing.T) {
	keyring.MockInit()

	k := vault.NewKeyring()
	_, err := k.Get("wlrs")
	assert.ErrorIs(t, err, vault.ErrSecretNotFound)

	require.NoError(t, k.Set("wlrs", "K1"))
	value, err := k.Get("wlrs")
	require.NoError(t, err)
	assert.Equal(t, "K1", value)
}
