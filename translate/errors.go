package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/openai/openai-go/v2"
	"google.golang.org/genai"

	"github.com/minios-linux/textkey/i18n"
)

// Error classes. Use errors.Is to test them.
var (
	ErrConnection     = errors.New("network connection error")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrAuthentication = errors.New("authentication failed")
	ErrAPI            = errors.New("API error")
	// ErrBadResponse is returned when the reply cannot be used.
	ErrBadResponse = errors.New("unusable response")
)

// APIError is a non-success reply from a provider.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("API returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Provider, e.Status, e.Message)
}

// Unwrap exposes ErrAPI and, for 401/403/429, the narrower class.
func (e *APIError) Unwrap() []error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return []error{ErrAuthentication, ErrAPI}
	case http.StatusTooManyRequests:
		return []error{ErrRateLimited, ErrAPI}
	}
	return []error{ErrAPI}
}

// Describe returns the message shown to the user for err.
func Describe(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnection):
		return i18n.T("Network connection error. Please check your internet connection.")
	case errors.Is(err, ErrRateLimited):
		return i18n.T("Rate limit exceeded. Please try again later.")
	case errors.Is(err, ErrAuthentication):
		return i18n.T("Authentication failed. Please check your API key.")
	case errors.As(err, &apiErr):
		return i18n.T("An API error occurred: %s", apiErr.Message)
	case errors.Is(err, ErrBadResponse):
		return i18n.T("The translation service returned an unusable response.")
	default:
		return i18n.T("unknown error occurred")
	}
}

// classify maps SDK and transport errors onto the error classes.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnection) || errors.Is(err, ErrAPI) || errors.Is(err, ErrBadResponse) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		msg := oaErr.Message
		if msg == "" {
			msg = oaErr.Error()
		}
		return &APIError{Provider: provider, Status: oaErr.StatusCode, Message: msg}
	}

	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return &APIError{Provider: provider, Status: gErr.Code, Message: gErr.Message}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return err
}

// apiErrorFromBody builds an APIError from a raw HTTP reply, extracting the
// usual {"error": {"message": ...}} payload when present.
func apiErrorFromBody(provider string, status int, body []byte) *APIError {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	msg := truncate(string(body), 500)
	if json.Unmarshal(body, &payload) == nil && len(payload.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		var s string
		switch {
		case json.Unmarshal(payload.Error, &obj) == nil && obj.Message != "":
			msg = obj.Message
		case json.Unmarshal(payload.Error, &s) == nil && s != "":
			msg = s
		}
	}
	return &APIError{Provider: provider, Status: status, Message: msg}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
