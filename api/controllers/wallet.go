package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learningsainttech/nanocart-backend/api/middleware"
	"github.com/learningsainttech/nanocart-backend/api/responses"
	"github.com/learningsainttech/nanocart-backend/api/validators"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/money"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
	"github.com/learningsainttech/nanocart-backend/pkg/types"
)

type walletService interface {
	Create(ctx context.Context, accountID uuid.UUID, kind enums.AccountKind) (*models.Wallet, error)
	Get(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*types.Page[models.WalletTransaction], error)
}

type walletResponse struct {
	AccountID      uuid.UUID         `json:"accountId"`
	AccountKind    enums.AccountKind `json:"accountKind"`
	Balance        int64             `json:"balance"`
	BalanceDisplay string            `json:"balanceDisplay"`
}

func newWalletResponse(w *models.Wallet) walletResponse {
	return walletResponse{
		AccountID:      w.AccountID,
		AccountKind:    w.AccountKind,
		Balance:        w.TotalBalance,
		BalanceDisplay: money.Format(w.TotalBalance),
	}
}

type walletTxnResponse struct {
	ID          uuid.UUID             `json:"id"`
	Type        enums.WalletTxnType   `json:"type"`
	Amount      int64                 `json:"amount"`
	Description string                `json:"description"`
	OrderRef    *string               `json:"orderRef,omitempty"`
	Status      enums.WalletTxnStatus `json:"status"`
	ReversalOf  *uuid.UUID            `json:"reversalOf,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
}

func newWalletTxnResponse(t models.WalletTransaction) walletTxnResponse {
	return walletTxnResponse{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description,
		OrderRef:    t.OrderRef,
		Status:      t.Status,
		ReversalOf:  t.ReversalOf,
		CreatedAt:   t.CreatedAt,
	}
}

func WalletFetch(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wallet, err := svc.Get(r.Context(), identity.AccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(wallet))
	}
}

// WalletCreate opens the caller's wallet with a zero balance. A second call
// reports a conflict.
func WalletCreate(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wallet, err := svc.Create(r.Context(), identity.AccountID, identity.AccountKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newWalletResponse(wallet))
	}
}

func WalletTransactions(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListTransactions(r.Context(), identity.AccountID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]walletTxnResponse, 0, len(page.Items))
		for _, t := range page.Items {
			items = append(items, newWalletTxnResponse(t))
		}
		responses.WriteSuccess(w, types.Page[walletTxnResponse]{Items: items, NextCursor: page.NextCursor})
	}
}
