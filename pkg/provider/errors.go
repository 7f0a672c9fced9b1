package provider

import (
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
)

// normalizeProviderError maps a wire SDK error onto the closed taxonomy of
// §7, grounded on the teacher's own error_logging.go/errors.go status-code
// dispatch (var apiErr *openai.Error; errors.As(err, &apiErr)).
func normalizeProviderError(providerName string, err error) error {
	if err == nil {
		return nil
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return classifyByStatus(providerName, openaiErr.StatusCode, openaiErr.Message)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return classifyByStatus(providerName, anthropicErr.StatusCode, anthropicErr.Message)
	}

	if chaterrors.IsTimeoutError(err) {
		return &chaterrors.NetworkError{Provider: providerName, Err: err}
	}

	return &chaterrors.NetworkError{Provider: providerName, Err: err}
}

func classifyByStatus(providerName string, status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &chaterrors.APIKeyError{Provider: providerName}
	case http.StatusTooManyRequests:
		return &chaterrors.RateLimitError{Provider: providerName, RetryAfter: chaterrors.ParseRetryAfterSeconds(message)}
	case http.StatusNotFound:
		return &chaterrors.ModelNotFoundError{Provider: providerName}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if chaterrors.IsContextLengthError(errors.New(message)) {
			return &chaterrors.ContextOverflow{}
		}
		return &chaterrors.InvalidRequestError{Provider: providerName, Detail: message}
	default:
		return &chaterrors.ProviderError{Provider: providerName, Status: status, Detail: message}
	}
}
