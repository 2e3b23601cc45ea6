package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/barcoded/internal/protocol/frame"
)

// ReadRequest reads exactly one Request frame. A stream that closes before
// any byte arrives returns an error matching frame.ErrNoFrame.
func ReadRequest(r io.Reader, limits frame.Limits) (Request, error) {
	var req Request
	if err := readMessage(r, MsgRequest, &req, limits, "read request"); err != nil {
		return Request{}, err
	}
	return req, nil
}

// ReadResponse reads exactly one Response frame.
func ReadResponse(r io.Reader, limits frame.Limits) (Response, error) {
	var resp Response
	if err := readMessage(r, MsgResponse, &resp, limits, "read response"); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func readMessage(r io.Reader, want MessageType, v any, limits frame.Limits, op string) error {
	f, err := frame.ReadFrame(r, limits)
	if err != nil {
		return classifyReadError(op, err)
	}
	if got := MessageType(f.Header.MessageType); got != want {
		return ProtocolError(op, fmt.Errorf("%w: got %s want %s", ErrMessageTypeMismatch, got, want))
	}
	if err := Unmarshal(f.Payload, v); err != nil {
		return ProtocolError(op, err)
	}
	return nil
}

// classifyReadError maps frame failures onto the taxonomy: a stream that ends
// early is a transport failure, a stream that carries bad bytes is a protocol
// failure.
func classifyReadError(op string, err error) error {
	switch {
	case errors.Is(err, frame.ErrInvalidMagic),
		errors.Is(err, frame.ErrUnsupportedVer),
		errors.Is(err, frame.ErrPayloadTooLarge):
		return ProtocolError(op, err)
	default:
		return TransportError(op, err)
	}
}
