// Command rdmctl exercises the rdm package against a simulated bus: it
// runs a DISC_UNIQUE_BRANCH discovery sweep for a single stub
// responder, then GETs and SETs that responder's DMX_START_ADDRESS.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	rdm "github.com/bensuffolk/esp-dmx"
	"github.com/bensuffolk/esp-dmx/halstub"
)

// newStartAddress is the value this program sets on whatever responder
// it discovers, demonstrating the SET half of DMX_START_ADDRESS.
const newStartAddress = 42

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	bus := rdm.NewBus(1)
	bus.SetLogger(log)

	driver := halstub.New()
	responderUID := rdm.UID{ManID: 0x7FF0, DevID: 1}
	startAddress := uint16(1)
	driver.SetResponder(newFakeResponder(responderUID, &startAddress))

	port, err := bus.Install(0, driver, rdm.UID{ManID: 0x7FF0, DevID: 0})
	if err != nil {
		log.Fatal("install", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	discovered, err := discover(ctx, port)
	if err != nil {
		log.Fatal("discovery", zap.Error(err))
	}
	for _, uid := range discovered {
		fmt.Printf("discovered %s\n", uid)
	}
	if len(discovered) == 0 {
		fmt.Println("no responders found")
		return
	}

	target := discovered[0]

	addr, err := getDMXStartAddress(ctx, port, target)
	if err != nil {
		log.Fatal("get dmx start address", zap.Error(err))
	}
	fmt.Printf("%s dmx start address = %d\n", target, addr)

	if err := setDMXStartAddress(ctx, port, target, newStartAddress); err != nil {
		log.Fatal("set dmx start address", zap.Error(err))
	}
	fmt.Printf("%s dmx start address set to %d\n", target, newStartAddress)
}

// discover runs a single full-range DISC_UNIQUE_BRANCH against the bus
// and returns every UID that answered.
func discover(ctx context.Context, port *rdm.Port) ([]rdm.UID, error) {
	var found []rdm.UID

	header := &rdm.Header{
		DestUID: rdm.BroadcastAllUID,
		CC:      rdm.CCDiscCommand,
		PID:     rdm.PIDDiscUniqueBranch,
	}
	pd := make([]byte, 12)
	rdm.PutUID(pd[0:6], rdm.NullUID)
	rdm.PutUID(pd[6:12], rdm.BroadcastAllUID)

	pdOut := make([]byte, 6)
	n, ack := port.Request(ctx, header, pd, pdOut)
	if ack.Type == rdm.AckACK && n == 6 {
		found = append(found, rdm.UIDFromBytes(pdOut))
	}
	return found, nil
}

func getDMXStartAddress(ctx context.Context, port *rdm.Port, target rdm.UID) (uint16, error) {
	header := &rdm.Header{
		DestUID: target,
		CC:      rdm.CCGetCommand,
		PID:     rdm.PIDDMXStartAddress,
	}
	pdOut := make([]byte, 2)
	n, ack := port.Request(ctx, header, nil, pdOut)
	if ack.Err != nil {
		return 0, ack.Err
	}
	if ack.Type == rdm.AckNackReason {
		// ack.Num is an int; cast narrows it to the uint16 NACK reason
		// code width, the same role cast.ToUint8 plays narrowing a
		// wider value back into the teacher's packed Options field.
		return 0, fmt.Errorf("responder NACKed with reason %#04x", cast.ToUint16(ack.Num))
	}
	if ack.Type != rdm.AckACK || n < 2 {
		return 0, fmt.Errorf("unexpected ack: %s", ack.Type)
	}
	return uint16(pdOut[0])<<8 | uint16(pdOut[1]), nil
}

func setDMXStartAddress(ctx context.Context, port *rdm.Port, target rdm.UID, addr uint16) error {
	pd := []byte{byte(addr >> 8), byte(addr)}
	header := &rdm.Header{
		DestUID: target,
		CC:      rdm.CCSetCommand,
		PID:     rdm.PIDDMXStartAddress,
	}
	_, ack := port.Request(ctx, header, pd, nil)
	if ack.Err != nil {
		return ack.Err
	}
	if ack.Type != rdm.AckACK {
		return fmt.Errorf("unexpected ack: %s", ack.Type)
	}
	return nil
}
