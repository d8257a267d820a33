package job

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/leadstack/outreach/common"
	"github.com/leadstack/outreach/middleware"
)

var validate = validator.New()

// validatePayload decodes and validates the typed payload for a job type
// before it enters the queue. Both failure modes surface as 400s, so the
// dispatcher never claims a job whose payload its handler cannot parse.
func validatePayload[T any](raw json.RawMessage) error {
	var payload T

	if err := json.Unmarshal(raw, &payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "invalid payload format",
		}
	}

	if err := validate.Struct(payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "payload validation failed",
			Fields:  middleware.FormatValidationErrors(err),
		}
	}

	return nil
}
