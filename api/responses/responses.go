package responses

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bazario-dev/bazario-backend/pkg/errors"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: data})
}

// WriteError maps a domain error onto the wire envelope. Unknown errors
// become opaque 500s; details only pass through when the code allows them.
func WriteError(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, err error) {
	code := errors.CodeInternal
	var details any

	if typed := errors.As(err); typed != nil {
		code = typed.Code()
		details = typed.Details()
	}
	meta := errors.MetadataFor(code)

	if meta.HTTPStatus >= 500 {
		logg.Error(ctx, "request failed", err)
	} else {
		dump := errors.Dump(err)
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"error_code": string(code),
			"error_dump": dump,
		}), "request rejected")
	}

	apiErr := types.APIError{
		Code:    string(code),
		Message: meta.PublicMessage,
	}
	if typed := errors.As(err); typed != nil && typed.Message() != "" && meta.HTTPStatus < 500 {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		apiErr.Details = details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(meta.HTTPStatus)
	_ = json.NewEncoder(w).Encode(types.ErrorEnvelope{Error: apiErr})
}
