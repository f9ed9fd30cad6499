package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind classifies upstream failures so callers can decide whether to
// trip the rate gate's cool-down or how to surface the failure.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindRateLimit      ErrorKind = "rate_limit"
	KindBadRequest     ErrorKind = "bad_request"
	KindAPI            ErrorKind = "api"
	KindTransport      ErrorKind = "transport"
)

// Error is a classified upstream failure. Status is the upstream HTTP status
// when one was received, 0 for transport failures.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAuthentication:
		return "authentication error: " + e.Message
	case KindRateLimit:
		return "rate limit error: " + e.Message
	case KindBadRequest:
		return "bad request: " + e.Message
	case KindTransport:
		return "upstream connection error: " + e.Message
	default:
		return "api error: " + e.Message
	}
}

// AnthropicType maps the kind onto the client protocol's error type names.
func (e *Error) AnthropicType() string {
	switch e.Kind {
	case KindAuthentication:
		return "authentication_error"
	case KindRateLimit:
		return "rate_limit_error"
	case KindBadRequest:
		return "invalid_request_error"
	default:
		return "api_error"
	}
}

// HTTPStatus is the status to answer the client with on the non-streaming
// path.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}

	return http.StatusBadGateway
}

func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error()}
}

// classifyStatus builds an Error from a non-200 upstream response, pulling
// the message out of the error envelope when one is present.
func classifyStatus(status int, body []byte) *Error {
	message := string(body)

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Error.Message != "":
			message = envelope.Error.Message
		case envelope.Message != "":
			message = envelope.Message
		case envelope.Detail != "":
			message = envelope.Detail
		}
	}

	if message == "" {
		message = fmt.Sprintf("upstream returned status %d", status)
	}

	kind := KindAPI

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuthentication
	case http.StatusTooManyRequests:
		kind = KindRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = KindBadRequest
	}

	return &Error{Kind: kind, Status: status, Message: message}
}
