package rdm

import "errors"

// Sentinel errors surfaced by the core. All recovery is a higher-layer
// concern; nothing here is retried.
var (
	// ErrPreconditionFailed is returned when a caller-supplied argument
	// violates a precondition of Request, EncodeFrame, or
	// Bus.Install/Uninstall.
	ErrPreconditionFailed = errors.New("rdm: precondition failed")

	// ErrPortBusy is returned by Write when the port's previous frame
	// has not finished sending.
	ErrPortBusy = errors.New("rdm: port is already sending")

	// ErrBadFormat is returned by Emplace when the format string fails
	// the §4.B pre-pass syntax checks.
	ErrBadFormat = errors.New("rdm: malformed format string")

	// ErrParamTooLarge is returned when a format's computed parameter
	// size exceeds MaxParameterDataLength.
	ErrParamTooLarge = errors.New("rdm: parameter data exceeds 231 bytes")

	// ErrFraming is returned by Read when the start code, sub-start
	// code, or checksum of a buffered frame is invalid.
	ErrFraming = errors.New("rdm: start code or checksum mismatch")

	// ErrDiscoveryChecksum is returned by DecodeDiscoveryResponse when
	// the recomputed Euro-ASCII checksum does not match the decoded one.
	ErrDiscoveryChecksum = errors.New("rdm: discovery response checksum mismatch")
)

// AckType classifies the outcome of a transaction, per spec.md §3/§7.
type AckType int

const (
	// AckNone means no response was expected (a non-discovery
	// broadcast request).
	AckNone AckType = iota
	// AckACK means the responder accepted the request.
	AckACK
	// AckACKTimer means the responder needs more time; Ack.Num carries
	// the estimated delay as a number of scheduler ticks.
	AckACKTimer
	// AckNackReason means the responder rejected the request;
	// Ack.Num carries the NACK reason code.
	AckNackReason
	// AckOverflow means the response does not fit in one packet. The
	// core does not implement continuation paging; the caller is
	// responsible for re-issuing the request to retrieve the rest.
	AckOverflow
	// AckInvalid means the response failed framing, checksum, or
	// request/response validation, or the receive timed out.
	AckInvalid
)

func (t AckType) String() string {
	switch t {
	case AckNone:
		return "NONE"
	case AckACK:
		return "ACK"
	case AckACKTimer:
		return "ACK_TIMER"
	case AckNackReason:
		return "NACK_REASON"
	case AckOverflow:
		return "ACK_OVERFLOW"
	case AckInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// Ack is the classification of a transaction's response, returned by
// Port.Request.
type Ack struct {
	Type AckType
	Num  int
	Err  error
}
