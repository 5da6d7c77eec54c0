// Package gwerrors defines the storage gateway's error-kind taxonomy on top
// of the kept errors package, and the table mapping each kind to its HTTP
// and WebDAV status codes.
package gwerrors

import (
	"fmt"
	"net/http"

	liberr "github.com/sabouaram/storegate/errors"
)

// Kind codes start at 4000 (liberr.MinAvailable), above the per-package
// code ranges the errors package reserves through its MinPkg* constants.
const (
	InvalidPath liberr.CodeError = iota + 4000
	NotFound
	Conflict
	PathForbidden
	PermissionDenied
	Unauthorized
	Unsupported
	Locked
	CapacityExhausted
	UpstreamUnavailable
	SizeMismatch
	PayloadTooLarge
	MountNotFound
	CrossMountRename
	Internal
)

var messages = map[liberr.CodeError]string{
	InvalidPath:          "invalid path",
	NotFound:              "not found",
	Conflict:              "conflict",
	PathForbidden:         "path forbidden",
	PermissionDenied:      "permission denied",
	Unauthorized:          "unauthorized",
	Unsupported:           "unsupported",
	Locked:                "locked",
	CapacityExhausted:     "capacity exhausted",
	UpstreamUnavailable:   "upstream unavailable",
	SizeMismatch:          "size mismatch",
	PayloadTooLarge:       "payload too large",
	MountNotFound:         "mount not found",
	CrossMountRename:      "cross-mount rename requires client-side copy",
	Internal:              "internal error",
}

func init() {
	liberr.RegisterIdFctMessage(InvalidPath, func(code liberr.CodeError) string {
		if m, ok := messages[code]; ok {
			return m
		}
		return liberr.UnknownMessage
	})
}

// httpStatus maps each kind to its HTTP status code.
var httpStatus = map[liberr.CodeError]int{
	InvalidPath:         http.StatusBadRequest,
	NotFound:            http.StatusNotFound,
	Conflict:            http.StatusConflict,
	PathForbidden:       http.StatusForbidden,
	PermissionDenied:    http.StatusForbidden,
	Unauthorized:        http.StatusUnauthorized,
	Unsupported:         http.StatusUnsupportedMediaType,
	Locked:              http.StatusLocked,
	CapacityExhausted:   http.StatusInsufficientStorage,
	UpstreamUnavailable: http.StatusBadGateway,
	SizeMismatch:        http.StatusBadRequest,
	PayloadTooLarge:     http.StatusRequestEntityTooLarge,
	MountNotFound:       http.StatusNotFound,
	CrossMountRename:    http.StatusConflict,
	Internal:            http.StatusInternalServerError,
}

// webdavStatus maps each kind to its WebDAV (RFC 4918) status code. Kinds
// without a WebDAV-specific mapping fall back to the HTTP status.
var webdavStatus = map[liberr.CodeError]int{
	Locked: 423,
}

// New creates a registered Error of the given kind with a formatted message.
func New(kind liberr.CodeError, format string, args ...any) liberr.Error {
	return liberr.New(kind.Uint16(), fmt.Sprintf(format, args...))
}

// Wrap creates a registered Error of the given kind, wrapping a parent error.
func Wrap(kind liberr.CodeError, parent error, format string, args ...any) liberr.Error {
	msg := fmt.Sprintf(format, args...)
	if parent == nil {
		return liberr.New(kind.Uint16(), msg)
	}
	return liberr.New(kind.Uint16(), msg, parent)
}

// HTTPStatus returns the HTTP status code for an error produced by this
// package, or 500 if the error doesn't carry a registered kind.
func HTTPStatus(err error) int {
	e := liberr.Get(err)
	if e == nil {
		return http.StatusInternalServerError
	}
	if s, ok := httpStatus[liberr.CodeError(e.GetCode())]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WebDAVStatus returns the WebDAV status code for an error produced by this
// package, falling back to HTTPStatus when no WebDAV-specific mapping
// exists.
func WebDAVStatus(err error) int {
	e := liberr.Get(err)
	if e == nil {
		return http.StatusInternalServerError
	}
	code := liberr.CodeError(e.GetCode())
	if s, ok := webdavStatus[code]; ok {
		return s
	}
	return HTTPStatus(err)
}

// Is reports whether err carries the given kind, directly or via a parent.
func Is(err error, kind liberr.CodeError) bool {
	return liberr.Has(err, kind)
}
