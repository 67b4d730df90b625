package payments

import (
	"fmt"
	"strings"

	"github.com/craftline/storefront-backend/pkg/config"
	"github.com/craftline/storefront-backend/pkg/db/models"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/security"
)

// CredentialResolver picks the gateway key pair for a store. Stores may
// carry their own credentials with the secret encrypted at rest; the
// platform pair is the default.
type CredentialResolver struct {
	platform Credentials
	sealer   *security.CredentialSealer
}

// NewCredentialResolver builds a resolver from gateway configuration.
func NewCredentialResolver(cfg config.GatewayConfig) (*CredentialResolver, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, fmt.Errorf("platform gateway credentials are required")
	}
	sealer, err := security.NewCredentialSealer(cfg.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("building credential sealer: %w", err)
	}
	return &CredentialResolver{
		platform: Credentials{KeyID: cfg.KeyID, KeySecret: cfg.KeySecret},
		sealer:   sealer,
	}, nil
}

// ForStore returns the store's own credentials when present, otherwise the
// platform pair.
func (r *CredentialResolver) ForStore(store *models.Store) (Credentials, error) {
	if store == nil || store.GatewayKeyID == nil || store.GatewayKeySecret == nil {
		return r.platform, nil
	}
	secret, err := r.sealer.Open(*store.GatewayKeySecret)
	if err != nil {
		return Credentials{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrypt store gateway secret")
	}
	return Credentials{KeyID: *store.GatewayKeyID, KeySecret: secret}, nil
}

// Seal encrypts a store gateway secret for storage.
func (r *CredentialResolver) Seal(secret string) (string, error) {
	return r.sealer.Seal(secret)
}
