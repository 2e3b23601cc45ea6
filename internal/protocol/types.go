package protocol

import "github.com/danmuck/barcoded/internal/calendar"

// MessageType identifies the payload carried by a frame.
type MessageType uint16

const (
	MsgRequest  MessageType = 1
	MsgResponse MessageType = 2
)

func (m MessageType) String() string {
	switch m {
	case MsgRequest:
		return "request"
	case MsgResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Request is an inclusive date range. Start after End is a valid, empty range.
type Request struct {
	Start calendar.Date `cbor:"start"`
	End   calendar.Date `cbor:"end"`
}

// Row is one code's scan count for one date.
type Row struct {
	Date  calendar.Date `cbor:"date"`
	Code  string        `cbor:"code"`
	Count uint32        `cbor:"count"`
}

// Response carries rows in ascending date order.
type Response struct {
	Rows []Row `cbor:"rows"`
}
