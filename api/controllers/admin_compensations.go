package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/learningsainttech/nanocart-backend/api/middleware"
	"github.com/learningsainttech/nanocart-backend/api/responses"
	"github.com/learningsainttech/nanocart-backend/api/validators"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/pagination"
	"github.com/learningsainttech/nanocart-backend/pkg/types"
)

type compensationQueue interface {
	List(ctx context.Context, status *enums.CompensationStatus, params pagination.Params) (*types.Page[models.CompensationFailure], error)
	Retry(ctx context.Context, id uuid.UUID, operator string) (*models.CompensationFailure, error)
	Resolve(ctx context.Context, id uuid.UUID, operator string) (*models.CompensationFailure, error)
}

type compensationResponse struct {
	ID         uuid.UUID                `json:"id"`
	OrderRef   string                   `json:"orderRef"`
	Kind       enums.CompensationKind   `json:"kind"`
	Payload    json.RawMessage          `json:"payload"`
	LastError  string                   `json:"lastError"`
	Attempts   int                      `json:"attempts"`
	Status     enums.CompensationStatus `json:"status"`
	ResolvedAt *time.Time               `json:"resolvedAt,omitempty"`
	ResolvedBy *string                  `json:"resolvedBy,omitempty"`
	CreatedAt  time.Time                `json:"createdAt"`
}

func newCompensationResponse(c models.CompensationFailure) compensationResponse {
	return compensationResponse{
		ID:         c.ID,
		OrderRef:   c.OrderRef,
		Kind:       c.Kind,
		Payload:    c.Payload,
		LastError:  c.LastError,
		Attempts:   c.Attempts,
		Status:     c.Status,
		ResolvedAt: c.ResolvedAt,
		ResolvedBy: c.ResolvedBy,
		CreatedAt:  c.CreatedAt,
	}
}

// AdminCompensations lists the operator queue, optionally by status.
func AdminCompensations(svc compensationQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "compensation queue unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.CompensationStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseCompensationStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		page, err := svc.List(r.Context(), status, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]compensationResponse, 0, len(page.Items))
		for _, c := range page.Items {
			items = append(items, newCompensationResponse(c))
		}
		responses.WriteSuccess(w, types.Page[compensationResponse]{Items: items, NextCursor: page.NextCursor})
	}
}

// AdminRetryCompensation replays the queued command once more.
func AdminRetryCompensation(svc compensationQueue, logg *logger.Logger) http.HandlerFunc {
	return compensationAction(svc, logg, func(ctx context.Context, id uuid.UUID, operator string) (*models.CompensationFailure, error) {
		return svc.Retry(ctx, id, operator)
	})
}

// AdminResolveCompensation closes an entry the operator fixed by hand.
func AdminResolveCompensation(svc compensationQueue, logg *logger.Logger) http.HandlerFunc {
	return compensationAction(svc, logg, func(ctx context.Context, id uuid.UUID, operator string) (*models.CompensationFailure, error) {
		return svc.Resolve(ctx, id, operator)
	})
}

func compensationAction(svc compensationQueue, logg *logger.Logger, act func(context.Context, uuid.UUID, string) (*models.CompensationFailure, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "compensation queue unavailable"))
			return
		}
		identity, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid compensation id"))
			return
		}
		entry, err := act(r.Context(), id, identity.AccountID.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCompensationResponse(*entry))
	}
}
