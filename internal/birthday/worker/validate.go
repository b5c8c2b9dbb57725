package worker

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
)

// ValidationError wraps a schema violation in delivery_payload. It is a
// permanent error: the worker transitions the event straight to FAILED.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("payload validation failed: %v", e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// payloadSchema mirrors domain.DeliveryPayload with the struct-tag
// validation rules from spec.md §4.5: message is a non-empty string,
// webhookUrl (once a default has been applied) must be an absolute URL.
type payloadSchema struct {
	Message    string `validate:"required"`
	WebhookURL string `validate:"required,http_url"`
}

var validate = validator.New()

// validatePayload fills in defaultWebhookURL when the payload omits one,
// then validates the result against the fixed schema.
func validatePayload(p domain.DeliveryPayload, defaultWebhookURL string) (domain.DeliveryPayload, error) {
	if p.WebhookURL == "" {
		p.WebhookURL = defaultWebhookURL
	}
	schema := payloadSchema{Message: p.Message, WebhookURL: p.WebhookURL}
	if err := validate.Struct(schema); err != nil {
		return domain.DeliveryPayload{}, &ValidationError{Err: err}
	}
	return p, nil
}
