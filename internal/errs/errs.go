// Package errs defines the error taxonomy shared across the gateway.
// Errors from external collaborators are converted to one of these kinds
// at the boundary of the component that invoked them; no raw upstream
// error ever reaches an end caller.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPayloadTooLarge
	KindAuth
	KindNotFound
	KindNoContent
	KindUpstream
	KindSynthesisParse
	KindAccessDenied
	KindIncompleteSubmission
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// PayloadTooLarge reports a request exceeding limit. Pass got <= 0 when the
// observed size is unknown, e.g. a capped reader tripped mid-stream.
func PayloadTooLarge(limit, got int64) *Error {
	if got > 0 {
		return &Error{Kind: KindPayloadTooLarge, Msg: fmt.Sprintf("payload too large: limit %d bytes, got %d", limit, got)}
	}
	return &Error{Kind: KindPayloadTooLarge, Msg: fmt.Sprintf("payload too large: limit %d bytes", limit)}
}

func Auth(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func NoContent(format string, args ...any) *Error {
	return &Error{Kind: KindNoContent, Msg: fmt.Sprintf(format, args...)}
}

// Upstream wraps a rendering, storage or completion-service failure.
func Upstream(err error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstream, Msg: fmt.Sprintf(format, args...), Err: err}
}

// SynthesisParse records the raw model output alongside the decode failure
// so the degraded-outcome path can log what actually came back.
func SynthesisParse(raw string, err error) *Error {
	const keep = 512
	if len(raw) > keep {
		raw = raw[:keep] + "..."
	}
	return &Error{Kind: KindSynthesisParse, Msg: "synthesis output rejected (raw: " + raw + ")", Err: err}
}

func AccessDenied(format string, args ...any) *Error {
	return &Error{Kind: KindAccessDenied, Msg: fmt.Sprintf(format, args...)}
}

func IncompleteSubmission(format string, args ...any) *Error {
	return &Error{Kind: KindIncompleteSubmission, Msg: fmt.Sprintf(format, args...)}
}

// KindOf walks the chain and returns the kind of the outermost *Error,
// or KindInternal for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, k Kind) bool { return KindOf(err) == k }
