// Package protocol owns the query wire contract.
//
// Ownership boundary:
// - Request/Response/Row message shapes
// - CBOR payload encoding
// - typed read/write of one framed message per direction
// - the connection error taxonomy (protocol, transport, aggregation)
//
// Frame primitives live in protocol/frame. Each connection carries exactly
// one Request frame toward the server and at most one Response frame back;
// there is no message id correlation, heartbeat or multiplexing.
package protocol
