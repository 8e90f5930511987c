package main

import (
	rdm "github.com/bensuffolk/esp-dmx"
	"github.com/bensuffolk/esp-dmx/halstub"
)

// newFakeResponder builds a halstub.Responder standing in for a single
// real RDM device: it answers DISC_UNIQUE_BRANCH for uid and serves
// GET/SET DMX_START_ADDRESS against startAddress, per the device-side
// half of original_source/src/rdm/controller.c's two disabled
// functions.
func newFakeResponder(uid rdm.UID, startAddress *uint16) halstub.Responder {
	return func(req []byte) ([]byte, bool) {
		header, pd, err := rdm.DecodeFrame(req)
		if err != nil {
			return nil, false
		}

		if header.CC == rdm.CCDiscCommand && header.PID == rdm.PIDDiscUniqueBranch {
			return respondDiscUniqueBranch(uid, pd)
		}

		if !rdm.IsTarget(uid, header.DestUID) {
			return nil, false
		}

		switch {
		case header.CC == rdm.CCGetCommand && header.PID == rdm.PIDDMXStartAddress:
			return respondGetStartAddress(uid, &header, *startAddress)
		case header.CC == rdm.CCSetCommand && header.PID == rdm.PIDDMXStartAddress:
			if len(pd) >= 2 {
				*startAddress = uint16(pd[0])<<8 | uint16(pd[1])
			}
			return respondAck(uid, &header, nil)
		default:
			return respondAck(uid, &header, nil)
		}
	}
}

func respondDiscUniqueBranch(uid rdm.UID, pd []byte) ([]byte, bool) {
	if len(pd) < 12 {
		return nil, false
	}
	lower := rdm.UIDFromBytes(pd[0:6])
	upper := rdm.UIDFromBytes(pd[6:12])
	if rdm.Lt(uid, lower) || rdm.Gt(uid, upper) {
		return nil, false
	}

	resp := make([]byte, rdm.HeaderSize)
	n := rdm.EncodeDiscoveryResponse(resp, uid, 7)
	return resp[:n], true
}

func respondGetStartAddress(uid rdm.UID, req *rdm.Header, addr uint16) ([]byte, bool) {
	pd := []byte{byte(addr >> 8), byte(addr)}
	return respondAck(uid, req, pd)
}

func respondAck(uid rdm.UID, req *rdm.Header, pd []byte) ([]byte, bool) {
	header := &rdm.Header{
		DestUID:  req.SrcUID,
		SrcUID:   uid,
		TN:       req.TN,
		MsgCount: 0,
		CC:       req.CC + 1,
		PID:      req.PID,
	}
	header.SetResponseType(rdm.ResponseTypeACK)

	buf := make([]byte, rdm.HeaderSize+len(pd)+2)
	n, err := rdm.EncodeFrame(buf, header, pd)
	if err != nil {
		return nil, false
	}
	return buf[:n], true
}
