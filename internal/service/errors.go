package service

import (
	"errors"
	"fmt"
)

var (
	ErrReportNotFound       = errors.New("report not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrEmailExists          = errors.New("email already registered")
	ErrUsernameExists       = errors.New("username already taken")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidStatus        = errors.New("invalid status value")
	ErrInvalidTransition    = errors.New("status cannot move backward")
	ErrUnsupportedMediaType = errors.New("only jpeg, jpg, png and gif images are allowed")
	ErrPayloadTooLarge      = errors.New("image exceeds the maximum allowed size")
)

// UpstreamError wraps a failure of the backing store or object storage so
// handlers can answer with a gateway-class status instead of a blanket 500.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PartialFailureError reports that a report row was created but the image
// attach step failed. The created id is surfaced so the client can retry the
// attach without resubmitting the report.
type PartialFailureError struct {
	ReportID string
	Err      error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("report %s created but image attach failed: %v", e.ReportID, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }
