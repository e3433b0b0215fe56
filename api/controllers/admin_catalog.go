package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/learningsainttech/nanocart-backend/api/responses"
	"github.com/learningsainttech/nanocart-backend/api/validators"
	"github.com/learningsainttech/nanocart-backend/internal/catalog"
	"github.com/learningsainttech/nanocart-backend/internal/stock"
	"github.com/learningsainttech/nanocart-backend/pkg/db/models"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
	"github.com/learningsainttech/nanocart-backend/pkg/money"
)

type stockAdjuster interface {
	Adjust(ctx context.Context, skuID string, input stock.AdjustInput) (*models.StockCounter, error)
}

type variantDefiner interface {
	Define(ctx context.Context, input catalog.DefineInput) (*models.CatalogVariant, error)
}

type stockResponse struct {
	SKUID        string `json:"skuId"`
	ItemID       string `json:"itemId"`
	Color        string `json:"color"`
	Size         string `json:"size"`
	Available    int    `json:"available"`
	IsOutOfStock bool   `json:"isOutOfStock"`
}

type variantResponse struct {
	SKUID            string `json:"skuId"`
	ItemID           string `json:"itemId"`
	Color            string `json:"color"`
	Size             string `json:"size"`
	UnitPrice        int64  `json:"unitPrice"`
	UnitPriceDisplay string `json:"unitPriceDisplay"`
	Active           bool   `json:"active"`
}

type adjustStockRequest struct {
	Delta *int `json:"delta"`
	Set   *int `json:"set" validate:"omitempty,gte=0"`
}

// AdminAdjustStock applies a restock delta or sets the counter outright.
func AdminAdjustStock(svc stockAdjuster, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger unavailable"))
			return
		}
		skuID := strings.TrimSpace(chi.URLParam(r, "skuId"))
		if skuID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sku id is required"))
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		counter, err := svc.Adjust(r.Context(), skuID, stock.AdjustInput{Delta: payload.Delta, Set: payload.Set})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stockResponse{
			SKUID:        counter.SKUID,
			ItemID:       counter.ItemID,
			Color:        counter.Color,
			Size:         counter.Size,
			Available:    counter.Available,
			IsOutOfStock: counter.IsOutOfStock,
		})
	}
}

// AdminDefineVariant upserts a sellable SKU and creates its stock counter.
func AdminDefineVariant(svc variantDefiner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		var payload catalog.DefineInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		v, err := svc.Define(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, variantResponse{
			SKUID:            v.SKUID,
			ItemID:           v.ItemID,
			Color:            v.Color,
			Size:             v.Size,
			UnitPrice:        v.UnitPrice,
			UnitPriceDisplay: money.Format(v.UnitPrice),
			Active:           v.Active,
		})
	}
}
