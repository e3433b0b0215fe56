package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/learningsainttech/nanocart-backend/api/responses"
	"github.com/learningsainttech/nanocart-backend/api/validators"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

type walletCreditor interface {
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, description string, orderRef *string) (*models.WalletTransaction, error)
}

type creditRequest struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	Description string `json:"description" validate:"max=200"`
}

// AdminCreditWallet tops up an account's wallet.
func AdminCreditWallet(svc walletCreditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet ledger unavailable"))
			return
		}
		accountID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "accountId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account id"))
			return
		}

		var payload creditRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Credit(r.Context(), accountID, payload.Amount, validators.CleanText(payload.Description, 200), nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newWalletTxnResponse(*txn))
	}
}
