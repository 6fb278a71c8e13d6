package client

import (
	"errors"
	"fmt"
)

// Fallback messages used when the service returns no error text.
const (
	MsgStartGenerationFailed = "Failed to start generation"
	MsgStatusFailed          = "Failed to get status"
	MsgProcessTextFailed     = "Failed to process text"
	MsgGenerationFailed      = "Generation failed"
	MsgDownloadFailed        = "Failed to download video"
)

// APIError is a non-2xx response from the generation service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// String includes the status code for logs.
func (e *APIError) String() string {
	return fmt.Sprintf("API returned %d: %s", e.StatusCode, e.Message)
}

// Message returns the text to show a user for err: the server's message for
// an APIError, the wrapped error text otherwise, or fallback when err has none.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
