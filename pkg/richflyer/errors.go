package richflyer

import (
	"errors"
	"fmt"
)

var (
	ErrNoChannel          = errors.New("richflyer: no push channel available")
	ErrNoIdentity         = errors.New("richflyer: subscription and remote permission are both missing")
	ErrNoAuthToken        = errors.New("richflyer: auth key was not found")
	ErrRetriesExhausted   = errors.New("richflyer: operation has failed")
	ErrDeviceNotFound     = errors.New("richflyer: device not found")
	ErrMalformedResponse  = errors.New("richflyer: malformed response")
	ErrUnsupportedChannel = errors.New("richflyer: operation not supported on this push channel")
	ErrNoNotification     = errors.New("richflyer: no stored notification")
	ErrEventLogSent       = errors.New("richflyer: event log already sent")
	ErrNoEvents           = errors.New("richflyer: events were not specified")
	ErrNoEventPostID      = errors.New("richflyer: event post id was not specified")
)

// codeDeviceNotFound is the server error code returned with 404 when the
// device behind a DeviceId is not registered.
const codeDeviceNotFound = 3

// APIError represents a non-200 response from the RichFlyer API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("HTTP %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrDeviceNotFound) match the server's device-missing reply.
func (e *APIError) Is(target error) bool {
	return target == ErrDeviceNotFound && e.StatusCode == 404 && e.Code == codeDeviceNotFound
}

// IsStatus returns true if err (or any wrapped error) is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}
