// Package forms turns remote failures into the single inline message each
// form shows, and runs the client-side checks done before a request is sent.
package forms

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
)

// ValidationError is a client-side check that failed before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalid returns a ValidationError for field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// messageOr picks the server message, then fallback.
func messageOr(err error, fallback string) string {
	if msg := feed.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}

// transportMessage is shown whenever the API could not be reached.
const transportMessage = "Unable to reach the server. Please check your connection and try again."

// common handles outcomes every form treats the same way. ok is false when
// the caller should apply its own mapping.
func common(err error) (string, bool) {
	var ve *ValidationError
	switch {
	case err == nil:
		return "", true
	case errors.As(err, &ve):
		return ve.Message, true
	case feed.IsTransport(err):
		return transportMessage, true
	}
	return "", false
}

// LoginMessage maps a login failure.
func LoginMessage(err error) string {
	if msg, ok := common(err); ok {
		return msg
	}
	switch feed.StatusOf(err) {
	case http.StatusForbidden:
		lower := strings.ToLower(feed.MessageOf(err))
		switch {
		case strings.Contains(lower, "pending"):
			return "Your account is pending approval. Please wait for an admin to review your application."
		case strings.Contains(lower, "rejected"):
			return "Your account application was rejected. Please contact support for more information."
		case strings.Contains(lower, "banned"):
			return "Your account has been banned. Please contact support if you believe this is an error."
		}
		return "Access denied. Your account may be pending, rejected, or banned."
	case http.StatusUnauthorized:
		return "Invalid username or password."
	}
	return messageOr(err, "Login failed. Please try again.")
}

// RegisterMessage maps a registration failure.
func RegisterMessage(err error) string {
	if msg, ok := common(err); ok {
		return msg
	}
	switch feed.StatusOf(err) {
	case http.StatusBadRequest:
		return "Username or email already exists."
	case http.StatusUnprocessableEntity:
		return "Password must meet all requirements."
	}
	return messageOr(err, "Registration failed. Please try again.")
}

// ApplyOfficerMessage maps an officer application failure.
func ApplyOfficerMessage(err error) string {
	if msg, ok := common(err); ok {
		return msg
	}
	switch feed.StatusOf(err) {
	case http.StatusBadRequest, http.StatusConflict:
		lower := strings.ToLower(feed.MessageOf(err))
		switch {
		case strings.Contains(lower, "badge"):
			return "This badge number is already registered. Please verify your badge number."
		case strings.Contains(lower, "email"):
			return "This email is already registered. Please use a different email address."
		case strings.Contains(lower, "username"):
			return "This username is already taken. Please choose a different username."
		}
		return "This information is already registered. Please check your details."
	case http.StatusUnprocessableEntity:
		return "Password must meet all requirements."
	}
	return messageOr(err, "Application failed. Please try again.")
}

// RegisterAdminMessage maps an admin registration failure.
func RegisterAdminMessage(err error) string {
	if msg, ok := common(err); ok {
		return msg
	}
	switch feed.StatusOf(err) {
	case http.StatusForbidden:
		return "Invalid secret invite code. Please contact the super admin for the correct code."
	case http.StatusBadRequest, http.StatusConflict:
		return "Username already exists. Please choose a different username."
	case http.StatusUnprocessableEntity:
		return "Password must meet all requirements."
	}
	return messageOr(err, "Registration failed. Please try again.")
}

// ProcessAdminMessage maps a failure approving or rejecting an admin.
func ProcessAdminMessage(err error) string {
	if msg, ok := common(err); ok {
		return msg
	}
	switch feed.StatusOf(err) {
	case http.StatusNotFound:
		return "No pending admin found with this User ID"
	case http.StatusForbidden:
		return "You don't have permission to perform this action"
	}
	return messageOr(err, "Failed to process admin request")
}

// ReportMessage maps an incident report failure.
func ReportMessage(err error) string {
	if msg, ok := common(err); ok {
		return msg
	}
	if feed.IsRateLimited(err) {
		return "Please wait 2 minutes between reports."
	}
	return messageOr(err, "Failed to submit report. Please try again.")
}

// ActionMessage maps a moderation or voting failure shown next to a row.
func ActionMessage(err error) string {
	if msg, ok := common(err); ok {
		return msg
	}
	if feed.IsForbidden(err) && feed.MessageOf(err) == "" {
		return "You don't have permission to perform this action"
	}
	return messageOr(err, "Action failed. Please try again.")
}
