// Package halstub is an in-memory loopback implementation of hal.Driver
// for host-side testing of the transaction engine without real UART
// hardware.
package halstub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bensuffolk/esp-dmx/hal"
)

const ringCapacity = 64

type ringBuffer struct {
	data       [ringCapacity][]byte
	head, tail int
	count      int
}

func (rb *ringBuffer) push(frame []byte) {
	if rb.count == ringCapacity {
		rb.data[rb.tail] = nil
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = frame
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) pop() ([]byte, bool) {
	if rb.count == 0 {
		return nil, false
	}
	frame := rb.data[rb.head]
	rb.data[rb.head] = nil
	rb.head = (rb.head + 1) % ringCapacity
	rb.count--
	return frame, true
}

// Responder simulates a remote RDM device: given the bytes of a request
// frame, it returns a response frame and true, or false if it has
// nothing to say (e.g. a broadcast it silently accepts).
type Responder func(req []byte) (resp []byte, ok bool)

// Driver is a loopback hal.Driver: Send hands the frame to an optional
// Responder and queues its reply for a later Receive, rather than
// touching any real wire. Each Driver carries a synthetic identity
// (ResponderID) useful for seeding a Responder's own UID.
type Driver struct {
	mu        sync.Mutex
	dir       hal.Direction
	rx        ringBuffer
	txLog     [][]byte
	responder Responder
	lastRx    []byte

	// ResponderID is a synthetic identity for whatever RDM device this
	// stub pretends to be: a random UUID generated at construction and
	// fixed for the Driver's lifetime, so it differs from run to run.
	ResponderID uuid.UUID
}

// New returns a Driver with no responder installed; Send frames are
// only visible via TxLog until one is set with SetResponder.
func New() *Driver {
	return &Driver{ResponderID: uuid.New()}
}

// SetResponder installs or replaces the Responder consulted on Send.
func (d *Driver) SetResponder(r Responder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responder = r
}

func (d *Driver) SetDirection(dir hal.Direction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dir = dir
	return nil
}

func (d *Driver) Direction() hal.Direction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dir
}

func (d *Driver) Send(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)

	d.mu.Lock()
	d.txLog = append(d.txLog, cp)
	responder := d.responder
	d.mu.Unlock()

	if responder == nil {
		return nil
	}
	if resp, ok := responder(cp); ok {
		d.InjectReceive(resp)
	}
	return nil
}

func (d *Driver) WaitSent(ctx context.Context) error {
	return ctx.Err()
}

func (d *Driver) Receive(ctx context.Context) ([]byte, error) {
	for {
		d.mu.Lock()
		frame, ok := d.rx.pop()
		if ok {
			d.lastRx = frame
		}
		d.mu.Unlock()
		if ok {
			return frame, nil
		}

		select {
		case <-ctx.Done():
			return nil, hal.ErrTimeout
		case <-time.After(time.Millisecond):
		}
	}
}

// ReadSlots copies the raw bytes of whatever Receive most recently
// returned, with no framing validation of its own.
func (d *Driver) ReadSlots(dst []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copy(dst, d.lastRx), nil
}

// InjectReceive queues frame as if it had just arrived on the wire, for
// tests driving the stub directly rather than through a Responder.
func (d *Driver) InjectReceive(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	d.mu.Lock()
	d.rx.push(cp)
	d.mu.Unlock()
}

// TxLog returns every frame handed to Send, oldest first.
func (d *Driver) TxLog() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.txLog))
	copy(out, d.txLog)
	return out
}
