package requests

import (
	"errors"
	"fmt"
)

// Kind tells the classifier which side of the call caused a handler failure.
type Kind int

const (
	// KindServer failures map to 500. Unclassified errors are KindServer.
	KindServer Kind = iota
	// KindClient failures map to 400.
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	default:
		return "server"
	}
}

var (
	// ErrInvalidArgument reports a malformed request argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNullArgument reports a missing required argument.
	ErrNullArgument = errors.New("required argument missing")
	// ErrInvalidOperation reports a request that cannot be carried out in the current state.
	ErrInvalidOperation = errors.New("invalid operation")
)

// Error is a classified handler failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err == nil || isSentinel(e.Err):
		return e.Msg
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func isSentinel(err error) bool {
	return err == ErrInvalidArgument || err == ErrNullArgument || err == ErrInvalidOperation
}

// InvalidArgument returns a client error wrapping ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return &Error{Kind: KindClient, Msg: fmt.Sprintf(format, args...), Err: ErrInvalidArgument}
}

// NullArgument returns a client error wrapping ErrNullArgument for the named argument.
func NullArgument(name string) error {
	return &Error{Kind: KindClient, Msg: name + " is required", Err: ErrNullArgument}
}

// InvalidOperation returns a server error wrapping ErrInvalidOperation.
func InvalidOperation(format string, args ...any) error {
	return &Error{Kind: KindServer, Msg: fmt.Sprintf(format, args...), Err: ErrInvalidOperation}
}

// ClientError marks err as caused by the request. msg may be empty.
func ClientError(msg string, err error) error {
	return &Error{Kind: KindClient, Msg: msg, Err: err}
}

// KindOf classifies err. Errors carrying no classification are KindServer.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNullArgument) {
		return KindClient
	}
	return KindServer
}
