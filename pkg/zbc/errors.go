package zbc

import (
	"errors"
	"fmt"

	"github.com/sixtyeight/zeebe/pkg/kerr"
)

// Sentinel errors, compared with errors.Is.
var (
	ErrAlreadyArmed = errors.New("zbc: controller is already armed")
	ErrNotArmed     = errors.New("zbc: controller is not armed")
	ErrClosed       = errors.New("zbc: controller is closed")
	ErrNoSlot       = errors.New("zbc: transport could not allocate a request slot")
)

// BrokerError is surfaced when a response frame carries a non-retry-worthy
// error code.
type BrokerError struct {
	Code    kerr.Code
	Message string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker error %s: %s", e.Code, e.Message)
}

// ClientError is surfaced when the deadline is exhausted before a request
// could complete. It narrates the handler and every endpoint contacted,
// and chains any pre-existing local error as its cause.
type ClientError struct {
	Describe  string
	Contacted []Endpoint
	Cause     error
}

func (e *ClientError) Error() string {
	msg := fmt.Sprintf("zbc: deadline exceeded for %s, contacted %v", e.Describe, e.Contacted)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", msg, e.Cause)
	}
	return msg
}

func (e *ClientError) Unwrap() error { return e.Cause }

// CommandRejected is surfaced verbatim when the broker rejects a command
// outright; it is the one local-error subtype that is never wrapped.
type CommandRejected struct {
	Reason string
}

func (e *CommandRejected) Error() string {
	return fmt.Sprintf("command rejected: %s", e.Reason)
}

// unexpectedException wraps any local error during send/decode/handler
// execution that is not a CommandRejected.
type unexpectedException struct {
	cause error
}

func (e *unexpectedException) Error() string {
	return fmt.Sprintf("unexpected exception during response handling: %s", e.cause)
}

func (e *unexpectedException) Unwrap() error { return e.cause }

// wrapException surfaces a CommandRejected verbatim and wraps every other
// error as an unexpectedException.
func wrapException(err error) error {
	if err == nil {
		return nil
	}
	var rejected *CommandRejected
	if errors.As(err, &rejected) {
		return err
	}
	return &unexpectedException{cause: err}
}

// errUnknown is substituted when FAILED is entered with neither an error
// code nor a local exception set.
var errUnknown = errors.New("zbc: unknown error")
