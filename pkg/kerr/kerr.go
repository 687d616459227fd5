// Package kerr defines the broker error codes the request controller must
// recognize and the rule for which of them are worth retrying.
package kerr

import "fmt"

// Code is a broker-reported error code, carried in an error envelope's
// error_code field.
type Code int16

// NullVal is the absence sentinel: a response carrying this code is not an
// error at all. It is distinct from any real error code.
const NullVal Code = 0

// Well-known codes with symbolic names. RequestTimeout and TopicNotFound are
// the retry-worthy ones (see Retryable); PartitionLeaderMismatch, like every
// other code in the open-ended tail of domain codes, is handled opaquely:
// surfaced to the caller as a BrokerError without further interpretation.
const (
	RequestTimeout          Code = -1
	TopicNotFound           Code = -2
	PartitionLeaderMismatch Code = -3
)

var codeNames = map[Code]string{
	NullVal:                 "NULL_VAL",
	RequestTimeout:          "REQUEST_TIMEOUT",
	TopicNotFound:           "TOPIC_NOT_FOUND",
	PartitionLeaderMismatch: "PARTITION_LEADER_MISMATCH",
}

// String returns the symbolic name of c, or a numeric fallback for codes
// outside the well-known set (the "open-ended tail of domain codes").
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", int16(c))
}

// Retryable reports whether a response carrying c should cause the
// controller to refresh its topology and retry, rather than fail hard.
func (c Code) Retryable() bool {
	return c == RequestTimeout || c == TopicNotFound
}

// Error adapts a Code into a Go error for callers that want err-shaped
// values without a message; BrokerError (in pkg/zbc) carries the message.
type Error struct {
	Code Code
}

func (e *Error) Error() string { return e.Code.String() }

// ErrorForCode returns nil for NullVal and an *Error otherwise, turning a
// wire error code into a Go error value.
func ErrorForCode(c Code) error {
	if c == NullVal {
		return nil
	}
	return &Error{Code: c}
}
