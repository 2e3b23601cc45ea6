package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMessageTypeMismatch = errors.New("protocol: message type mismatch")
	ErrTrailingData        = errors.New("protocol: trailing data after payload")
)

// Kind classifies a connection failure.
type Kind int

const (
	// KindProtocol is a malformed or undecodable frame.
	KindProtocol Kind = iota + 1
	// KindTransport is a read or write failure on the stream.
	KindTransport
	// KindAggregation is a filesystem failure while building a response.
	KindAggregation
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindTransport:
		return "transport"
	case KindAggregation:
		return "aggregation"
	default:
		return "unknown"
	}
}

// Error tags a failure with its Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func ProtocolError(op string, err error) error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

func TransportError(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func AggregationError(op string, err error) error {
	return &Error{Kind: KindAggregation, Op: op, Err: err}
}

// KindOf reports the Kind of err, or 0 when err carries none.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return 0
}
