package requests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	genericClientMessage = "invalid request"
	genericServerMessage = "internal error processing request"
)

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeInvalidRequest
	outcomeHandlerFault
	outcomeTimeout
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return "success"
	case outcomeInvalidRequest:
		return "invalid_request"
	case outcomeHandlerFault:
		return "handler_fault"
	case outcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// outcome is the classified result of a single dispatch attempt.
type outcome struct {
	kind    outcomeKind
	payload *string
	fault   Kind
	message string
	timeout time.Duration
}

func success(payload *string) outcome {
	return outcome{kind: outcomeSuccess, payload: payload}
}

func invalidRequest(reason string) outcome {
	return outcome{kind: outcomeInvalidRequest, message: reason}
}

func handlerFault(err error) outcome {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return outcome{kind: outcomeHandlerFault, fault: KindOf(err), message: msg}
}

func timedOut(d time.Duration) outcome {
	return outcome{kind: outcomeTimeout, timeout: d}
}

// ErrorBody is the JSON payload of every non-200 response.
type ErrorBody struct {
	Message string `json:"message"`
}

// classify maps an outcome to the response returned to the caller.
func classify(o outcome) Response {
	switch o.kind {
	case outcomeSuccess:
		return Response{Status: http.StatusOK, Payload: o.payload}
	case outcomeInvalidRequest:
		return errorResponse(http.StatusBadRequest, o.message, genericClientMessage)
	case outcomeHandlerFault:
		if o.fault == KindClient {
			return errorResponse(http.StatusBadRequest, o.message, genericClientMessage)
		}
		return errorResponse(http.StatusInternalServerError, o.message, genericServerMessage)
	case outcomeTimeout:
		return errorResponse(http.StatusInternalServerError, fmt.Sprintf("request timed out after %s", o.timeout), "request timed out")
	default:
		return errorResponse(http.StatusInternalServerError, "", genericServerMessage)
	}
}

func errorResponse(status int, message, fallback string) Response {
	if strings.TrimSpace(message) == "" {
		message = fallback
	}
	b, err := json.Marshal(ErrorBody{Message: message})
	if err != nil {
		b = []byte(`{"message":"` + fallback + `"}`)
	}
	body := string(b)
	return Response{Status: status, Payload: &body}
}
