package keystore

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"
)

// VaultStore stores a havenserver instance's Ed25519 server identity key
// in HashiCorp Vault's KV v2 engine, for deployments where the key must
// survive a node being replaced.
type VaultStore struct {
	client     *api.Client
	mountPath  string
	secretPath string
}

// NewVaultStore builds a VaultStore against an already-authenticated
// Vault client (see internal/config.InitializeVaultClient).
func NewVaultStore(addr, token, mountPath, secretPath string) (*VaultStore, error) {
	cfg := &api.Config{Address: addr}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultStore{client: client, mountPath: mountPath, secretPath: secretPath}, nil
}

// Store writes the private key to Vault, base64-encoded.
func (v *VaultStore) Store(priv ed25519.PrivateKey) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := v.client.KVv2(v.mountPath).Put(ctx, v.secretPath, map[string]interface{}{
		"identity_private_key": base64.StdEncoding.EncodeToString(priv),
	})
	if err != nil {
		return fmt.Errorf("store identity key in vault: %w", err)
	}
	return nil
}

// Load retrieves and decodes the private key from Vault.
func (v *VaultStore) Load() (ed25519.PrivateKey, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	secret, err := v.client.KVv2(v.mountPath).Get(ctx, v.secretPath)
	if err != nil {
		return nil, fmt.Errorf("load identity key from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no identity key found at %s/%s", v.mountPath, v.secretPath)
	}

	encoded, ok := secret.Data["identity_private_key"].(string)
	if !ok {
		return nil, fmt.Errorf("identity_private_key missing or not a string")
	}

	priv, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode identity key: %w", err)
	}
	return ed25519.PrivateKey(priv), nil
}
