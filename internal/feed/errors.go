package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport marks failures where no HTTP response was received.
var ErrTransport = errors.New("transport failure")

const (
	unparseableMessage = "An error occurred"
	defaultMessage     = "Request failed"
)

// APIError is a non-2xx response from the remote API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// decodeAPIError reads {"message"} then {"msg"} from body. fallback replaces
// the default message for bodies that parse but carry neither field, and for
// bodies that do not parse at all.
func decodeAPIError(status int, body []byte, fallback string) *APIError {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Msg     string          `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if fallback == "" {
			fallback = unparseableMessage
		}
		return &APIError{Status: status, Message: fallback}
	}

	var msg string
	if len(payload.Message) > 0 {
		// smorest validation errors carry an object here; only strings count.
		_ = json.Unmarshal(payload.Message, &msg)
	}
	if msg == "" {
		msg = payload.Msg
	}
	if msg == "" {
		msg = fallback
	}
	if msg == "" {
		msg = defaultMessage
	}
	return &APIError{Status: status, Message: msg}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// MessageOf returns the server message carried by err, or "".
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// IsUnauthorized reports a 401.
func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }

// IsForbidden reports a 403.
func IsForbidden(err error) bool { return StatusOf(err) == http.StatusForbidden }

// IsNotFound reports a 404.
func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }

// IsRateLimited reports a 429.
func IsRateLimited(err error) bool { return StatusOf(err) == http.StatusTooManyRequests }

// IsValidation reports 400, 409 or 422.
func IsValidation(err error) bool {
	switch StatusOf(err) {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// IsTransport reports a failure with no response.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }
