package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// NetworkError indicates that a request could not complete or returned a
// non-2xx status.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// FileSystemError indicates a local directory or file operation failed.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

// ParseError indicates an index page could not be parsed. Listings treat it
// as an empty result.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func statusError(url string, code int) *NetworkError {
	return &NetworkError{URL: url, StatusCode: code, Err: errors.New(http.StatusText(code))}
}

// classifyError maps err to a metrics label.
func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}

	var fsErr *FileSystemError
	if errors.As(err, &fsErr) {
		return "filesystem"
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}

	var nErr *NetworkError
	if errors.As(err, &nErr) {
		switch code := nErr.StatusCode; {
		case code == http.StatusForbidden:
			return "forbidden"
		case code == http.StatusNotFound:
			return "not_found"
		case code == http.StatusTooManyRequests:
			return "rate_limited"
		case code != 0:
			return "http_status"
		}
		return "connection"
	}
	return "other"
}

// ErrorLabel exposes the classification used for metrics so callers can
// group failures the same way.
func ErrorLabel(err error) string {
	return classifyError(err)
}
