package paymentwebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/learningsainttech/nanocart-backend/internal/saga"
	"github.com/learningsainttech/nanocart-backend/pkg/enums"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

// CallbackHandler applies a verified-or-not gateway callback to its order.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, input saga.CallbackInput) (*saga.PaymentResult, error)
}

type bodyVerifier interface {
	VerifyWebhookBody(body []byte, signature string) bool
}

type guard interface {
	Seen(ctx context.Context, gatewayOrderID, paymentID string) (string, bool, error)
	Remember(ctx context.Context, gatewayOrderID, paymentID, value string) error
}

type ServiceParams struct {
	Callbacks CallbackHandler
	Verifier  bodyVerifier
	Guard     guard
	Logger    *logger.Logger
}

type Service struct {
	callbacks CallbackHandler
	verifier  bodyVerifier
	guard     guard
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Callbacks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "callback handler required")
	}
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook verifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		callbacks: params.Callbacks,
		verifier:  params.Verifier,
		guard:     params.Guard,
		logg:      params.Logger,
	}, nil
}

// Process authenticates the raw webhook body, decodes the callback and hands
// it to the saga. A nil guard disables the Redis shortcut; the saga is
// idempotent on its own.
func (s *Service) Process(ctx context.Context, body []byte, bodySignature string) (*saga.PaymentResult, error) {
	if !s.verifier.VerifyWebhookBody(body, bodySignature) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
	}
	var input saga.CallbackInput
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	input.GatewayOrderID = strings.TrimSpace(input.GatewayOrderID)
	input.PaymentID = strings.TrimSpace(input.PaymentID)
	if input.GatewayOrderID == "" || input.PaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gatewayOrderId, paymentId and signature are required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"gateway_order_id": input.GatewayOrderID,
		"payment_id":       input.PaymentID,
	})

	if s.guard != nil {
		value, seen, err := s.guard.Seen(ctx, input.GatewayOrderID, input.PaymentID)
		if err != nil {
			// Redis is only a shortcut here.
			s.logg.Error(ctx, "replay guard lookup failed", err)
		} else if seen {
			s.logg.Debug(ctx, "payment callback replayed")
			return decodeSettled(value), nil
		}
	}

	result, err := s.callbacks.HandleCallback(ctx, input)
	if err != nil {
		return nil, err
	}
	if result.Verified && s.guard != nil {
		if err := s.guard.Remember(ctx, input.GatewayOrderID, input.PaymentID, encodeSettled(result)); err != nil {
			s.logg.Error(ctx, "replay guard write failed", err)
		}
	}
	return result, nil
}

// The cached status is the one the order had when the callback first settled.
func encodeSettled(result *saga.PaymentResult) string {
	return result.OrderRef + "|" + string(result.OrderStatus)
}

func decodeSettled(value string) *saga.PaymentResult {
	ref, status, _ := strings.Cut(value, "|")
	return &saga.PaymentResult{Verified: true, OrderRef: ref, OrderStatus: enums.OrderStatus(status)}
}
