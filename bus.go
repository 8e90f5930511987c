package rdm

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bensuffolk/esp-dmx/hal"
)

// controllerPortID is the port_id a controller stamps into every
// request it originates; responders overload the same header field as
// response_type on their replies.
const controllerPortID byte = 1

// ResponseTypeACK, ResponseTypeACKTimer, ResponseTypeNackReason, and
// ResponseTypeACKOverflow are the values a responder places in the
// overloaded port_id/response_type field of a response header.
// Exported so that hal.Driver implementations simulating a responder
// (see halstub) can build well-formed replies.
const (
	ResponseTypeACK         byte = 0x00
	ResponseTypeACKTimer    byte = 0x01
	ResponseTypeNackReason  byte = 0x02
	ResponseTypeACKOverflow byte = 0x03
)

// ackTimerUnitMS is the unit ACK_TIMER's pd field counts in: the
// responder reports its estimated delay as a count of 10ms units,
// which this port treats as ticks at a 1ms tick period (the original
// source's default scheduler rate), so converting to ticks is a
// straight multiply.
const ackTimerUnitMS = 10

// Port is one physical or simulated DMX512/RDM line: a driver, the
// controller UID it transacts under, and the single mutex that makes
// every exported method safe to call concurrently. Ports are
// independent of one another; Request on one never blocks on another.
type Port struct {
	mu      sync.Mutex
	driver  hal.Driver
	uid     UID
	tn      byte
	sending bool
	log     *zap.Logger
}

func newPort(driver hal.Driver, uid UID, log *zap.Logger) *Port {
	return &Port{driver: driver, uid: uid, log: log}
}

// UID returns the controller identity this port transacts under. It
// does not change after installation, so no lock is needed.
func (p *Port) UID() UID {
	return p.uid
}

// TN returns the next transaction number Request will assign, without
// consuming it.
func (p *Port) TN() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tn
}

func (p *Port) nextTN() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	tn := p.tn
	p.tn++
	return tn
}

// Write transmits a single already-encoded frame. It returns
// ErrPortBusy if a previous Write has not yet finished draining onto
// the wire.
func (p *Port) Write(ctx context.Context, frame []byte) error {
	p.mu.Lock()
	if p.sending {
		p.mu.Unlock()
		return ErrPortBusy
	}
	p.sending = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.sending = false
		p.mu.Unlock()
	}()

	if err := p.driver.SetDirection(hal.DirectionTx); err != nil {
		return err
	}
	if err := p.driver.Send(frame); err != nil {
		return err
	}
	return p.driver.WaitSent(ctx)
}

// Read switches the line to receive and returns the next frame the
// driver delivers, decoded and checksum-validated.
func (p *Port) Read(ctx context.Context) (Header, []byte, error) {
	if err := p.driver.SetDirection(hal.DirectionRx); err != nil {
		return Header{}, nil, err
	}
	raw, err := p.driver.Receive(ctx)
	if err != nil {
		return Header{}, nil, err
	}
	return DecodeFrame(raw)
}

// Request runs one RDM transaction: it stamps header with this port's
// source UID and a fresh transaction number, transmits it with pdIn as
// parameter data, and — unless the request is a non-discovery broadcast
// — waits for and classifies a single response, copying its parameter
// data into pdOut (truncated if pdOut is shorter) and returning how
// many bytes were copied.
func (p *Port) Request(ctx context.Context, header *Header, pdIn, pdOut []byte) (int, Ack) {
	if header == nil {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: nil header", ErrPreconditionFailed)}
	}
	if len(pdIn) > MaxParameterDataLength {
		return 0, Ack{Type: AckInvalid, Err: ErrParamTooLarge}
	}
	if header.DestUID.IsNull() {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: dest_uid is null", ErrPreconditionFailed)}
	}
	if header.SrcUID.IsBroadcast() {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: src_uid is broadcast", ErrPreconditionFailed)}
	}
	if header.CC != CCDiscCommand && header.CC != CCGetCommand && header.CC != CCSetCommand {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: cc %#x is not a request class", ErrPreconditionFailed, header.CC)}
	}
	if header.SubDevice >= 513 && header.SubDevice != SubDeviceAll {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: sub_device %d out of range", ErrPreconditionFailed, header.SubDevice)}
	}
	if header.SubDevice == SubDeviceAll && header.CC == CCGetCommand {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: sub_device ALL is not valid with GET_COMMAND", ErrPreconditionFailed)}
	}

	header.SrcUID = p.uid
	header.TN = p.nextTN()
	header.MsgCount = 0
	header.PortID = controllerPortID

	isDiscUniqueBranch := header.CC == CCDiscCommand && header.PID == PIDDiscUniqueBranch
	expectResponse := !header.DestUID.IsBroadcast() || isDiscUniqueBranch

	frame := make([]byte, envelopeSize+len(pdIn)+2)
	n, err := EncodeFrame(frame, header, pdIn)
	if err != nil {
		return 0, Ack{Type: AckInvalid, Err: err}
	}

	if err := p.Write(ctx, frame[:n]); err != nil {
		p.log.Debug("rdm write failed", zap.Error(err))
		return 0, Ack{Type: AckInvalid, Err: err}
	}

	if !expectResponse {
		return 0, Ack{Type: AckNone}
	}

	if err := p.driver.SetDirection(hal.DirectionRx); err != nil {
		return 0, Ack{Type: AckInvalid, Err: err}
	}
	raw, err := p.driver.Receive(ctx)
	if err != nil {
		p.log.Debug("rdm receive timed out", zap.Error(err))
		return 0, Ack{Type: AckInvalid, Err: err}
	}

	if isDiscUniqueBranch {
		// Discovery replies aren't standard checksummed RDM frames, so
		// they're read as raw slot bytes (clamped to HeaderSize) rather
		// than through raw's frame semantics.
		buf := make([]byte, HeaderSize)
		n, err := p.driver.ReadSlots(buf)
		if err != nil {
			return 0, Ack{Type: AckInvalid, Err: err}
		}
		return p.classifyDiscovery(buf[:n], header, pdOut)
	}
	return p.classifyResponse(raw, header, pdOut)
}

func (p *Port) classifyDiscovery(raw []byte, req *Header, pdOut []byte) (int, Ack) {
	uid, _, err := DecodeDiscoveryResponse(raw)
	if err != nil {
		p.log.Debug("discovery response rejected", zap.Error(err))
		return 0, Ack{Type: AckInvalid, Err: err}
	}

	buf := make([]byte, 6)
	PutUID(buf, uid)
	n := copy(pdOut, buf)
	return n, Ack{Type: AckACK}
}

func (p *Port) classifyResponse(raw []byte, req *Header, pdOut []byte) (int, Ack) {
	resp, pd, err := DecodeFrame(raw)
	if err != nil {
		p.log.Debug("response framing rejected", zap.Error(err))
		return 0, Ack{Type: AckInvalid, Err: err}
	}
	if resp.CC != req.CC+1 {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: cc mismatch", ErrFraming)}
	}
	if resp.PID != req.PID {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: pid mismatch", ErrFraming)}
	}
	if resp.TN != req.TN {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: tn mismatch", ErrFraming)}
	}
	if !Eq(resp.SrcUID, req.DestUID) || !Eq(resp.DestUID, req.SrcUID) {
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: uid mismatch", ErrFraming)}
	}

	n := copy(pdOut, pd)

	switch resp.ResponseType() {
	case ResponseTypeACK:
		return n, Ack{Type: AckACK}
	case ResponseTypeACKTimer:
		num := 0
		if len(pd) >= 2 {
			// pd carries the estimated delay in units of 10ms; ticks
			// here are 1:1 with milliseconds, the same mapping
			// pdMS_TO_TICKS uses at the original source's default
			// scheduler rate.
			num = int(binary.BigEndian.Uint16(pd)) * ackTimerUnitMS
		}
		return n, Ack{Type: AckACKTimer, Num: num}
	case ResponseTypeNackReason:
		num := 0
		if len(pd) >= 2 {
			num = int(binary.BigEndian.Uint16(pd))
		}
		return n, Ack{Type: AckNackReason, Num: num}
	case ResponseTypeACKOverflow:
		return n, Ack{Type: AckOverflow}
	default:
		return 0, Ack{Type: AckInvalid, Err: fmt.Errorf("%w: unknown response_type %#x", ErrFraming, resp.ResponseType())}
	}
}

// Bus owns every Port on a controller, keyed by a small integer port
// number the way a DMX512 interface card exposes its physical ports.
type Bus struct {
	mu    sync.Mutex
	ports map[int]*Port
	log   *zap.Logger
}

// NewBus returns an empty registry sized for up to capacityHint ports;
// capacityHint is only a map size hint, not a hard limit.
func NewBus(capacityHint int) *Bus {
	return &Bus{
		ports: make(map[int]*Port, capacityHint),
		log:   zap.NewNop(),
	}
}

// SetLogger replaces the *zap.Logger used for every port this bus
// installs from this point on.
func (b *Bus) SetLogger(log *zap.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = log
}

// Install registers driver as port number portNum under uid and
// returns the new Port. It returns ErrPreconditionFailed if portNum is
// already installed.
func (b *Bus) Install(portNum int, driver hal.Driver, uid UID) (*Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.ports[portNum]; exists {
		return nil, fmt.Errorf("%w: port %d already installed", ErrPreconditionFailed, portNum)
	}

	p := newPort(driver, uid, b.log.With(zap.Int("port", portNum)))
	b.ports[portNum] = p
	b.log.Info("port installed", zap.Int("port", portNum), zap.Stringer("uid", uid))
	return p, nil
}

// Port returns the Port installed at portNum, if any.
func (b *Bus) Port(portNum int) (*Port, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.ports[portNum]
	return p, ok
}

// Uninstall removes portNum from the registry. It returns
// ErrPreconditionFailed if no such port is installed.
func (b *Bus) Uninstall(portNum int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.ports[portNum]; !exists {
		return fmt.Errorf("%w: port %d is not installed", ErrPreconditionFailed, portNum)
	}
	delete(b.ports, portNum)
	b.log.Info("port uninstalled", zap.Int("port", portNum))
	return nil
}
