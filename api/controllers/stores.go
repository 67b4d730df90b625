package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/api/responses"
	"github.com/craftline/storefront-backend/api/validators"
	"github.com/craftline/storefront-backend/pkg/db/models"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
)

type gatewayCredentialStore interface {
	FindStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error)
	UpdateGatewayCredentials(ctx context.Context, storeID uuid.UUID, keyID, encryptedSecret string) error
}

type gatewaySecretSealer interface {
	Seal(secret string) (string, error)
}

type gatewayCredentialsBody struct {
	GatewayKeyID     string `json:"gateway_key_id" validate:"required,max=128"`
	GatewayKeySecret string `json:"gateway_key_secret" validate:"required,max=256"`
}

type gatewayCredentialsResponse struct {
	GatewayKeyID string `json:"gateway_key_id"`
}

// UpdateStoreGatewayCredentials replaces the store's gateway key pair.
// The secret is encrypted before it reaches the database and is never
// echoed back.
func UpdateStoreGatewayCredentials(repo gatewayCredentialStore, sealer gatewaySecretSealer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := parseUUIDParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body gatewayCredentialsBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := repo.FindStore(r.Context(), storeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "store not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store"))
			return
		}

		sealed, err := sealer.Seal(body.GatewayKeySecret)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encrypt gateway secret"))
			return
		}

		if err := repo.UpdateGatewayCredentials(r.Context(), storeID, body.GatewayKeyID, sealed); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store gateway credentials"))
			return
		}

		responses.WriteSuccess(w, gatewayCredentialsResponse{GatewayKeyID: body.GatewayKeyID})
	}
}
