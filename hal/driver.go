// Package hal defines the boundary between the RDM transaction engine
// and the DMX512 UART peripheral, per spec.md §6. A Driver owns one
// physical or simulated port; the core never touches hardware directly.
package hal

import (
	"context"
	"errors"
)

// Direction selects which half of a half-duplex UART line is active.
type Direction int

const (
	// DirectionRx means the line is receiving; RTS/DE is deasserted.
	DirectionRx Direction = iota
	// DirectionTx means the line is transmitting; RTS/DE is asserted.
	DirectionTx
)

// ErrTimeout is returned by Receive when no frame arrives before ctx is
// done.
var ErrTimeout = errors.New("hal: receive timed out")

// Driver is the set of operations spec.md §6 requires of the DMX512
// UART peripheral: direction control, framed transmit, and bounded
// receive of the next complete frame the wire delivers.
type Driver interface {
	// SetDirection switches the transceiver between receive and
	// transmit, asserting or deasserting RTS/DE as needed.
	SetDirection(d Direction) error

	// Direction reports the transceiver's current direction.
	Direction() Direction

	// Send transmits frame on the wire. It blocks until the UART has
	// accepted the bytes into its own buffer, not until they are fully
	// on the wire; callers needing that guarantee should follow with
	// WaitSent.
	Send(frame []byte) error

	// WaitSent blocks until the most recent Send has fully drained
	// onto the wire, or ctx is done.
	WaitSent(ctx context.Context) error

	// Receive blocks until one complete frame has been read off the
	// wire or ctx is done, returning ErrTimeout in the latter case.
	// The returned slice is only valid until the next call.
	Receive(ctx context.Context) ([]byte, error)

	// ReadSlots copies up to len(dst) bytes of the most recently
	// received raw bytes into dst, performing no framing or checksum
	// validation of its own. It backs the discovery codec, whose
	// replies are not standard checksummed RDM frames and so are read
	// as raw slot bytes rather than through Receive's frame semantics.
	ReadSlots(dst []byte) (int, error)
}
