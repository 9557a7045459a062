package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/notification-monitor/internal/model"
)

// StatusError indicates the fetch endpoint answered with a non-success
// HTTP status.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.URL, e.Body,
	)
}

// IsStatusError reports whether err (or any error in its chain) is a StatusError.
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

// DecodeError indicates a response body that could not be decoded or
// failed validation. Decoding fails closed: one bad record rejects the
// whole body.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode error: " + e.Message
	}
	return fmt.Sprintf("decode error: %s: %v", e.Message, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err (or any error in its chain) is a DecodeError.
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// Fetcher is the bulk fetch collaborator. Implementations return the
// records in source order and bound the call with their own timeout.
type Fetcher interface {
	FetchNotifications(ctx context.Context) ([]model.RawNotification, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]model.RawNotification, error)

// FetchNotifications calls f.
func (f FetcherFunc) FetchNotifications(ctx context.Context) ([]model.RawNotification, error) {
	return f(ctx)
}
