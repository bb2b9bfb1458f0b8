package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/bazario-dev/bazario-backend/pkg/errors"
)

type gatewayErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mapGatewayError(status int, body []byte) error {
	var parsed gatewayErrorBody
	_ = json.Unmarshal(body, &parsed)

	msg := parsed.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		// Credential problems on our side are operator errors, not caller errors.
		return errors.New(errors.CodeInternal, "gateway rejected merchant credentials: "+msg)
	case status == http.StatusNotFound:
		return errors.New(errors.CodeNotFound, "gateway object not found: "+msg)
	case status == http.StatusConflict:
		return errors.New(errors.CodeStateConflict, "gateway state conflict: "+msg)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return errors.New(errors.CodeValidation, "gateway rejected request: "+msg)
	case status == http.StatusTooManyRequests || status >= 500:
		return errors.New(errors.CodeDependency, "gateway unavailable: "+msg)
	default:
		return errors.New(errors.CodeDependency, "unexpected gateway response: "+msg)
	}
}
