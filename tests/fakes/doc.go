// Package fakes provides test doubles for the secret-service SDK clients and
// the vault.Vault interface.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior.
//
// Usage:
//
//	kv := fakes.NewFakeAzureKeyVaultClient()
//	kv.AddSecretString("wlrs-apim-primary-key", "K2")
//	v, _ := vault.NewAzureKeyVault(vault.AzureKeyVaultConfig{VaultName: "kv-test"}, nil,
//	    vault.WithAzureKeyVaultClient(kv),
//	    vault.WithAzureCredential(&fakes.FakeTokenCredential{}))
package fakes
