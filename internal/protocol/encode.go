package protocol

import (
	"errors"
	"io"

	"github.com/danmuck/barcoded/internal/protocol/frame"
)

// WriteRequest encodes req and writes it as one frame.
func WriteRequest(w io.Writer, req Request, limits frame.Limits) error {
	return writeMessage(w, MsgRequest, req, limits, "write request")
}

// WriteResponse encodes resp and writes it as one frame. The payload is fully
// encoded before the first byte reaches w.
func WriteResponse(w io.Writer, resp Response, limits frame.Limits) error {
	if resp.Rows == nil {
		resp.Rows = []Row{}
	}
	return writeMessage(w, MsgResponse, resp, limits, "write response")
}

func writeMessage(w io.Writer, typ MessageType, v any, limits frame.Limits, op string) error {
	payload, err := Marshal(v)
	if err != nil {
		return ProtocolError(op, err)
	}
	f := frame.Frame{
		Header:  frame.Header{MessageType: uint16(typ)},
		Payload: payload,
	}
	if err := frame.WriteFrame(w, f, limits); err != nil {
		if errors.Is(err, frame.ErrPayloadTooLarge) {
			return ProtocolError(op, err)
		}
		return TransportError(op, err)
	}
	return nil
}
