package controllers

import (
	"context"
	"net/http"

	"github.com/learningsainttech/nanocart-backend/api/middleware"
	"github.com/learningsainttech/nanocart-backend/api/responses"
	"github.com/learningsainttech/nanocart-backend/api/validators"
	"github.com/learningsainttech/nanocart-backend/internal/saga"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

type checkoutService interface {
	Checkout(ctx context.Context, input saga.CheckoutInput) (*saga.CheckoutResult, error)
}

// Checkout places an order for the caller's cart. COD orders come back
// confirmed; online orders come back initiated with the gateway intent.
func Checkout(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		identity, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if identity.Role != enums.RoleCustomer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer account required for checkout"))
			return
		}

		var payload saga.CheckoutInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.AccountID = identity.AccountID
		payload.AccountKind = identity.AccountKind

		result, err := svc.Checkout(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
