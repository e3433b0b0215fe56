package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/learningsainttech/nanocart-backend/api/middleware"
	"github.com/learningsainttech/nanocart-backend/api/responses"
	internalorders "github.com/learningsainttech/nanocart-backend/internal/orders"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

type orderAdvancer interface {
	Advance(ctx context.Context, input internalorders.AdvanceInput) (*internalorders.OrderSummary, error)
}

// AdminAdvanceOrder moves an order one fulfilment step. Each route binds its
// own event kind.
func AdminAdvanceOrder(svc orderAdvancer, kind internalorders.EventKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		identity, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ref := strings.TrimSpace(chi.URLParam(r, "orderRef"))
		if ref == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order ref is required"))
			return
		}

		summary, err := svc.Advance(r.Context(), internalorders.AdvanceInput{
			OrderRef:  ref,
			Kind:      kind,
			ActorID:   identity.AccountID,
			ActorRole: identity.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
