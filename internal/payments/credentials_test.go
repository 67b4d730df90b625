package payments

import (
	"testing"

	"github.com/craftline/storefront-backend/pkg/config"
	"github.com/craftline/storefront-backend/pkg/db/models"
)

func TestResolverDefaultsToPlatformCredentials(t *testing.T) {
	resolver := newTestResolver(t)

	creds, err := resolver.ForStore(&models.Store{Name: "Plain Store"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds.KeyID != testKeyID || creds.KeySecret != testKeySecret {
		t.Fatalf("expected platform credentials got %+v", creds)
	}
}

func TestResolverUsesStoreOverride(t *testing.T) {
	resolver := newTestResolver(t)

	sealed, err := resolver.Seal("secret_store")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	keyID := "key_store"
	store := &models.Store{
		Name:             "Custom Store",
		GatewayKeyID:     &keyID,
		GatewayKeySecret: &sealed,
	}

	creds, err := resolver.ForStore(store)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds.KeyID != "key_store" || creds.KeySecret != "secret_store" {
		t.Fatalf("expected store credentials got %+v", creds)
	}
}

func TestResolverRejectsTamperedSecret(t *testing.T) {
	resolver := newTestResolver(t)

	keyID := "key_store"
	garbage := "not-a-sealed-secret"
	_, err := resolver.ForStore(&models.Store{
		GatewayKeyID:     &keyID,
		GatewayKeySecret: &garbage,
	})
	if err == nil {
		t.Fatal("expected decryption failure")
	}
}

func TestNewCredentialResolverRequiresPlatformPair(t *testing.T) {
	_, err := NewCredentialResolver(config.GatewayConfig{CredentialKey: "pass"})
	if err == nil {
		t.Fatal("expected error without platform credentials")
	}
}
