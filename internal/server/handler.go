package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/danmuck/barcoded/internal/calendar"
	"github.com/danmuck/barcoded/internal/observability"
	"github.com/danmuck/barcoded/internal/protocol"
	"github.com/danmuck/barcoded/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// State is one step of the per-connection lifecycle.
type State int

const (
	StateAwaitingRequest State = iota
	StateProcessing
	StateResponding
	StateDone
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingRequest:
		return "awaiting_request"
	case StateProcessing:
		return "processing"
	case StateResponding:
		return "responding"
	case StateDone:
		return "done"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Aggregator builds the rows for one request.
type Aggregator interface {
	Aggregate(ctx context.Context, start, end calendar.Date) ([]protocol.Row, error)
}

// Result describes how one connection ended.
type Result struct {
	// State is StateDone on success or early disconnect, StateClosed on failure.
	State State
	// FailedIn is the state that produced Err. Only meaningful when State is
	// StateClosed.
	FailedIn  State
	Request   protocol.Request
	Rows      int
	Responded bool
	Err       error
}

// Handler runs the one-shot request/response exchange. It holds only
// read-only configuration and may serve many connections concurrently.
type Handler struct {
	agg    Aggregator
	limits frame.Limits
	logger zerolog.Logger
}

func NewHandler(agg Aggregator, limits frame.Limits, logger zerolog.Logger) *Handler {
	return &Handler{agg: agg, limits: limits, logger: logger}
}

// Serve reads one Request, aggregates, writes one Response and closes conn.
// A peer that disconnects before sending anything ends in StateDone with no
// error. Every failure is logged once and ends in StateClosed; the Response
// is encoded in full before any byte is written, so a failed aggregation
// never produces partial output.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) Result {
	defer conn.Close()
	defer observability.ConnectionOpened()()

	logger := h.logger.With().Str("remote", remoteAddr(conn)).Logger()
	var (
		state   = StateAwaitingRequest
		res     Result
		resp    protocol.Response
		elapsed time.Duration
	)

	for {
		switch state {
		case StateAwaitingRequest:
			req, err := protocol.ReadRequest(conn, h.limits)
			if errors.Is(err, frame.ErrNoFrame) {
				logger.Debug().Msg("connection closed before request")
				observability.RecordConnection(observability.OutcomeEarlyClose, 0)
				state = StateDone
				continue
			}
			if err != nil {
				return h.fail(logger, res, state, err)
			}
			res.Request = req
			logger.Debug().
				Stringer("start", req.Start).
				Stringer("end", req.End).
				Msg("received request")
			state = StateProcessing

		case StateProcessing:
			began := time.Now()
			rows, err := h.agg.Aggregate(ctx, res.Request.Start, res.Request.End)
			elapsed = time.Since(began)
			observability.RecordAggregate(elapsed)
			if err != nil {
				return h.fail(logger, res, state, protocol.AggregationError("aggregate", err))
			}
			resp = protocol.Response{Rows: rows}
			res.Rows = len(rows)
			state = StateResponding

		case StateResponding:
			if err := protocol.WriteResponse(conn, resp, h.limits); err != nil {
				return h.fail(logger, res, state, err)
			}
			res.Responded = true
			observability.RecordConnection(observability.OutcomeResponded, res.Rows)
			logger.Info().
				Stringer("start", res.Request.Start).
				Stringer("end", res.Request.End).
				Int("rows", res.Rows).
				Dur("aggregate", elapsed).
				Msg("response sent")
			state = StateDone

		default:
			res.State = StateDone
			return res
		}
	}
}

func (h *Handler) fail(logger zerolog.Logger, res Result, in State, err error) Result {
	kind := protocol.KindOf(err)
	if kind == 0 {
		kind = protocol.KindTransport
		err = protocol.TransportError(in.String(), err)
	}
	logger.Error().
		Str("kind", kind.String()).
		Str("state", in.String()).
		Err(err).
		Msg("connection failed")
	observability.RecordConnection(outcomeFor(kind), 0)

	res.State = StateClosed
	res.FailedIn = in
	res.Responded = false
	res.Err = err
	return res
}

func outcomeFor(kind protocol.Kind) string {
	switch kind {
	case protocol.KindProtocol:
		return observability.OutcomeProtocol
	case protocol.KindAggregation:
		return observability.OutcomeAggregation
	default:
		return observability.OutcomeTransport
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
