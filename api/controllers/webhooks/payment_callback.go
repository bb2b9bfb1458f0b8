package webhooks

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazario-dev/bazario-backend/api/responses"
	"github.com/bazario-dev/bazario-backend/internal/settlement"
	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/redis"
)

const (
	signatureHeader  = "X-Gateway-Signature"
	maxCallbackBytes = 1 << 20
	replayGuardTTL   = 24 * time.Hour
)

type callbackResponse struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// PaymentCallback accepts the gateway's signed webhook. An invalid order id
// gets the same unauthorized answer as a bad signature so the route leaks
// nothing. The redis guard short-circuits byte-identical replays, whose
// signatures were already verified the first time around.
func PaymentCallback(svc *settlement.Service, cache *redis.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(ctx, w, logg,
				errors.New(errors.CodeUnauthorized, "callback verification failed"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
		if err != nil {
			responses.WriteError(ctx, w, logg,
				errors.Wrap(errors.CodeValidation, err, "unreadable callback body"))
			return
		}
		signature := r.Header.Get(signatureHeader)

		replayKey := replayKeyFor(body, signature)
		if cache != nil {
			if cached, err := cache.Get(ctx, redis.KeyPartCallback, orderID.String(), replayKey); err == nil {
				logg.Info(logg.WithOrderID(ctx, orderID.String()), "callback replay short-circuited")
				responses.WriteSuccess(w, http.StatusOK, callbackResponse{
					OrderID: orderID.String(),
					Status:  cached,
				})
				return
			}
		}

		order, err := svc.ConfirmPayment(ctx, settlement.ConfirmPaymentParams{
			OrderID:   orderID,
			RawBody:   body,
			Signature: signature,
		})
		if err != nil {
			responses.WriteError(ctx, w, logg, err)
			return
		}

		if cache != nil {
			if err := cache.Set(ctx, order.Status.String(), replayGuardTTL,
				redis.KeyPartCallback, orderID.String(), replayKey); err != nil {
				logg.Warn(ctx, "recording callback replay key failed")
			}
		}

		responses.WriteSuccess(w, http.StatusOK, callbackResponse{
			OrderID:       order.ID.String(),
			Status:        order.Status.String(),
			PaymentStatus: order.PaymentStatus.String(),
		})
	}
}

func replayKeyFor(body []byte, signature string) string {
	sum := sha256.New()
	sum.Write(body)
	sum.Write([]byte(signature))
	return hex.EncodeToString(sum.Sum(nil))
}
