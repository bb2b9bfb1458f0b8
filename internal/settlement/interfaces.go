package settlement

import (
	"context"

	"gorm.io/gorm"

	"github.com/bazario-dev/bazario-backend/pkg/gateway"
)

// txRunner abstracts the database client's transaction helper.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentGateway is the slice of the gateway client the orchestrator needs;
// tests swap in a fake.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, params gateway.CreateIntentParams) (*gateway.CreateIntentResult, error)
	VerifyCallback(body []byte, signature string) error
	Capture(ctx context.Context, params gateway.CaptureParams) (*gateway.CaptureResult, error)
	Refund(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error)
}
