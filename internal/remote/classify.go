package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// apiError is the error body returned by the store.
type apiError struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classifyStatus maps an HTTP status to a retry category:
// 408, 409 and 429 are transient, other 4xx are permanent, 5xx are transient.
func classifyStatus(status int) Category {
	switch {
	case status >= 400 && status < 500:
		switch status {
		case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
			return Transient
		default:
			return Permanent
		}
	case status >= 500 && status < 600:
		return Transient
	default:
		// Unexpected status codes; be conservative and retry
		return Transient
	}
}

// newHTTPError builds a classified error from a failed response.
func newHTTPError(op string, status int, body []byte) *RemoteError {
	var ae apiError
	_ = json.Unmarshal(body, &ae)
	return &RemoteError{
		Op:         op,
		Category:   classifyStatus(status),
		StatusCode: status,
		Code:       ae.Code,
		Message:    ae.Message,
		Underlying: fmt.Errorf("%s failed: HTTP %d", op, status),
	}
}

// newNetworkError classifies a transport failure. Cancellation by the caller
// is permanent; everything else may be transient.
func newNetworkError(op string, err error) *RemoteError {
	cat := Transient
	if errors.Is(err, context.Canceled) {
		cat = Permanent
	}
	return &RemoteError{
		Op:         op,
		Category:   cat,
		Underlying: fmt.Errorf("%s network error: %w", op, err),
	}
}
