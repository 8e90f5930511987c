package rdm_test

import (
	"context"
	"testing"
	"time"

	rdm "github.com/bensuffolk/esp-dmx"
	"github.com/bensuffolk/esp-dmx/halstub"
)

func newTestPort(t *testing.T, responder halstub.Responder) (*rdm.Bus, *rdm.Port) {
	t.Helper()
	bus := rdm.NewBus(1)
	driver := halstub.New()
	driver.SetResponder(responder)

	port, err := bus.Install(0, driver, rdm.UID{ManID: 0x7FF0, DevID: 0})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	return bus, port
}

// echoAckResponder answers every non-broadcast request with a plain ACK
// carrying no parameter data, regardless of what was asked.
func echoAckResponder(uid rdm.UID) halstub.Responder {
	return func(req []byte) ([]byte, bool) {
		header, _, err := rdm.DecodeFrame(req)
		if err != nil || header.DestUID.IsBroadcast() {
			return nil, false
		}
		resp := &rdm.Header{
			DestUID: header.SrcUID,
			SrcUID:  uid,
			TN:      header.TN,
			CC:      header.CC + 1,
			PID:     header.PID,
		}
		resp.SetResponseType(rdm.ResponseTypeACK)
		buf := make([]byte, rdm.HeaderSize+2)
		n, err := rdm.EncodeFrame(buf, resp, nil)
		if err != nil {
			return nil, false
		}
		return buf[:n], true
	}
}

func TestPortRequestACK(t *testing.T) {
	responderUID := rdm.UID{ManID: 0x7FF0, DevID: 1}
	_, port := newTestPort(t, echoAckResponder(responderUID))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	header := &rdm.Header{
		DestUID: responderUID,
		CC:      rdm.CCGetCommand,
		PID:     rdm.PIDDMXStartAddress,
	}
	n, ack := port.Request(ctx, header, nil, nil)
	if ack.Err != nil {
		t.Fatalf("Request: %v", ack.Err)
	}
	if ack.Type != rdm.AckACK {
		t.Fatalf("ack.Type = %s, want ACK", ack.Type)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
}

func TestPortRequestBroadcastSuppressesResponse(t *testing.T) {
	_, port := newTestPort(t, echoAckResponder(rdm.UID{ManID: 0x7FF0, DevID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	header := &rdm.Header{
		DestUID: rdm.BroadcastAllUID,
		CC:      rdm.CCSetCommand,
		PID:     rdm.PIDDMXStartAddress,
	}
	n, ack := port.Request(ctx, header, []byte{0x00, 0x01}, nil)
	if ack.Type != rdm.AckNone {
		t.Fatalf("ack.Type = %s, want NONE", ack.Type)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
}

func TestPortRequestTNIncrements(t *testing.T) {
	_, port := newTestPort(t, echoAckResponder(rdm.UID{ManID: 0x7FF0, DevID: 1}))

	first := port.TN()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	header := &rdm.Header{DestUID: rdm.UID{ManID: 0x7FF0, DevID: 1}, CC: rdm.CCGetCommand, PID: rdm.PIDDMXStartAddress}
	if _, ack := port.Request(ctx, header, nil, nil); ack.Err != nil {
		t.Fatalf("Request: %v", ack.Err)
	}

	if got := port.TN(); got != first+1 {
		t.Fatalf("TN() = %d, want %d", got, first+1)
	}
}

func TestPortRequestMismatchedTNIsInvalid(t *testing.T) {
	responderUID := rdm.UID{ManID: 0x7FF0, DevID: 1}
	stale := func(req []byte) ([]byte, bool) {
		header, _, err := rdm.DecodeFrame(req)
		if err != nil {
			return nil, false
		}
		resp := &rdm.Header{
			DestUID: header.SrcUID,
			SrcUID:  responderUID,
			TN:      header.TN + 1, // deliberately wrong
			CC:      header.CC + 1,
			PID:     header.PID,
		}
		resp.SetResponseType(rdm.ResponseTypeACK)
		buf := make([]byte, rdm.HeaderSize+2)
		n, err := rdm.EncodeFrame(buf, resp, nil)
		if err != nil {
			return nil, false
		}
		return buf[:n], true
	}
	_, port := newTestPort(t, stale)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	header := &rdm.Header{DestUID: responderUID, CC: rdm.CCGetCommand, PID: rdm.PIDDMXStartAddress}
	_, ack := port.Request(ctx, header, nil, nil)
	if ack.Type != rdm.AckInvalid {
		t.Fatalf("ack.Type = %s, want INVALID", ack.Type)
	}
}

func TestPortRequestNackReason(t *testing.T) {
	responderUID := rdm.UID{ManID: 0x7FF0, DevID: 1}
	nack := func(req []byte) ([]byte, bool) {
		header, _, err := rdm.DecodeFrame(req)
		if err != nil {
			return nil, false
		}
		resp := &rdm.Header{
			DestUID: header.SrcUID,
			SrcUID:  responderUID,
			TN:      header.TN,
			CC:      header.CC + 1,
			PID:     header.PID,
		}
		resp.SetResponseType(rdm.ResponseTypeNackReason)
		pd := []byte{0x00, 0x02} // NR_FORMAT_ERROR-style reason code
		buf := make([]byte, rdm.HeaderSize+len(pd)+2)
		n, err := rdm.EncodeFrame(buf, resp, pd)
		if err != nil {
			return nil, false
		}
		return buf[:n], true
	}
	_, port := newTestPort(t, nack)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	header := &rdm.Header{DestUID: responderUID, CC: rdm.CCSetCommand, PID: rdm.PIDDMXStartAddress}
	_, ack := port.Request(ctx, header, []byte{0x00, 0x01}, nil)
	if ack.Type != rdm.AckNackReason {
		t.Fatalf("ack.Type = %s, want NACK_REASON", ack.Type)
	}
	if ack.Num != 2 {
		t.Fatalf("ack.Num = %d, want 2", ack.Num)
	}
}

func TestPortRequestACKTimer(t *testing.T) {
	responderUID := rdm.UID{ManID: 0x7FF0, DevID: 1}
	slow := func(req []byte) ([]byte, bool) {
		header, _, err := rdm.DecodeFrame(req)
		if err != nil {
			return nil, false
		}
		resp := &rdm.Header{
			DestUID: header.SrcUID,
			SrcUID:  responderUID,
			TN:      header.TN,
			CC:      header.CC + 1,
			PID:     header.PID,
		}
		resp.SetResponseType(rdm.ResponseTypeACKTimer)
		pd := []byte{0x00, 0x0A}
		buf := make([]byte, rdm.HeaderSize+len(pd)+2)
		n, err := rdm.EncodeFrame(buf, resp, pd)
		if err != nil {
			return nil, false
		}
		return buf[:n], true
	}
	_, port := newTestPort(t, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	header := &rdm.Header{DestUID: responderUID, CC: rdm.CCGetCommand, PID: rdm.PIDDMXStartAddress}
	_, ack := port.Request(ctx, header, nil, nil)
	if ack.Type != rdm.AckACKTimer {
		t.Fatalf("ack.Type = %s, want ACK_TIMER", ack.Type)
	}
	// pd = 0x000A is 10 units of 10ms each = 100ms, per spec.md's own
	// worked ACK_TIMER scenario.
	if ack.Num != 100 {
		t.Fatalf("ack.Num = %d, want 100", ack.Num)
	}
}

func TestPortRequestTimesOut(t *testing.T) {
	_, port := newTestPort(t, func(req []byte) ([]byte, bool) { return nil, false })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	header := &rdm.Header{DestUID: rdm.UID{ManID: 0x7FF0, DevID: 1}, CC: rdm.CCGetCommand, PID: rdm.PIDDMXStartAddress}
	_, ack := port.Request(ctx, header, nil, nil)
	if ack.Type != rdm.AckInvalid {
		t.Fatalf("ack.Type = %s, want INVALID", ack.Type)
	}
}

func TestBusInstallAndUninstall(t *testing.T) {
	bus := rdm.NewBus(2)
	driver := halstub.New()

	if _, err := bus.Install(0, driver, rdm.UID{ManID: 1, DevID: 1}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if _, err := bus.Install(0, driver, rdm.UID{ManID: 1, DevID: 1}); err == nil {
		t.Error("expected an error installing over an occupied port")
	}
	if _, ok := bus.Port(0); !ok {
		t.Error("expected port 0 to be installed")
	}
	if err := bus.Uninstall(0); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, ok := bus.Port(0); ok {
		t.Error("expected port 0 to be gone after Uninstall")
	}
	if err := bus.Uninstall(0); err == nil {
		t.Error("expected an error uninstalling an already-empty port")
	}
}
