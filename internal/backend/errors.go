package backend

import (
	"errors"
	"fmt"
)

// NetworkError means the service could not be reached at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend: %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response without a structured error body, or a
// 2xx response whose body could not be decoded.
type ServerError struct {
	Op     string
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: %s: server returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("backend: %s: server returned %d: %s", e.Op, e.Status, e.Body)
}

// ValidationError is a non-2xx response carrying a human-readable detail.
type ValidationError struct {
	Op     string
	Status int
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("backend: %s: rejected (%d): %s", e.Op, e.Status, e.Detail)
}

// NotFoundError means the update or delete target does not exist.
type NotFoundError struct {
	Op string
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("backend: %s: appointment %q not found", e.Op, e.ID)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsServer(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// Message turns any repository error into the single line shown to users.
func Message(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
		ne *NetworkError
		se *ServerError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Detail
	case errors.As(err, &nf):
		return "予約が見つかりません"
	case errors.As(err, &ne):
		return "APIに接続できません"
	case errors.As(err, &se):
		return "サーバーエラーが発生しました"
	default:
		return err.Error()
	}
}
