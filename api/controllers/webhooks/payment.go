package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/learningsainttech/nanocart-backend/api/responses"
	"github.com/learningsainttech/nanocart-backend/internal/saga"
	pkgerrors "github.com/learningsainttech/nanocart-backend/pkg/errors"
	"github.com/learningsainttech/nanocart-backend/pkg/logger"
)

// SignatureHeader carries hex(HMAC-SHA256(webhookSecret, body)).
const SignatureHeader = "X-Gateway-Signature"

const maxBodyBytes = 64 << 10

type paymentProcessor interface {
	Process(ctx context.Context, body []byte, bodySignature string) (*saga.PaymentResult, error)
}

type webhookResponse struct {
	Verified bool `json:"verified"`
}

// PaymentWebhook receives gateway payment callbacks. A rejected payment
// signature is still a 200 with verified=false so the gateway stops retrying.
func PaymentWebhook(svc paymentProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		result, err := svc.Process(ctx, payload, r.Header.Get(SignatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"order_ref": result.OrderRef,
				"verified":  result.Verified,
			}), "payment webhook processed")
		}
		responses.WriteSuccess(w, webhookResponse{Verified: result.Verified})
	}
}
