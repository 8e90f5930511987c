package rdm

// Start code and sub-start code identifying an RDM packet on the DMX wire.
// See ANSI E1.20 Section 5.5 and original_source/src/rdm/utils.h.
const (
	StartCode    byte = 0xCC
	SubStartCode byte = 0x01
)

// Euro-ASCII discovery framing bytes. Section 5.3 of ANSI E1.20.
const (
	discoveryPreamble  byte = 0xFE
	discoveryDelimiter byte = 0xAA
)

// Command classes. The response to a request always uses the request's
// class + 1.
const (
	CCDiscCommand         byte = 0x10
	CCDiscCommandResponse byte = 0x11
	CCGetCommand          byte = 0x20
	CCGetCommandResponse  byte = 0x21
	CCSetCommand          byte = 0x30
	CCSetCommandResponse  byte = 0x31
)

// Parameter IDs used by the transaction engine and the example program.
// The full ANSI E1.20 catalog is explicitly out of scope; these are the
// handful the core itself needs to name.
const (
	PIDDiscUniqueBranch uint16 = 0x0001
	PIDDMXStartAddress  uint16 = 0x00F0
)

// Sub-device addressing. A sub_device value of 0 addresses the root
// device; 0xFFFF addresses every sub-device on a responder.
const (
	SubDeviceRoot uint16 = 0x0000
	SubDeviceAll  uint16 = 0xFFFF
)

// MaxParameterDataLength is the largest legal PDL: a 24-byte header plus
// a 2-byte checksum fit in a 257-byte MSG_LEN+2 frame, leaving 231 bytes
// for parameter data.
const MaxParameterDataLength = 231

// headerPrefix is SC and SUB_SC, written directly ahead of every frame.
// MSG_LEN follows but is not a fixed literal: it depends on pdl, so
// frame.go computes and writes it directly rather than folding it into
// an Emplace literal token.
var headerPrefix = [2]byte{StartCode, SubStartCode}

// headerFieldsFormat is the Emplace format for the eight addressable
// header fields, per spec.md §4.D: dest_uid, src_uid, tn,
// port_id/response_type, message_count, sub_device, cc, pid.
const headerFieldsFormat = "uubbbwbw"

// headerFieldsSize is the wire width of headerFieldsFormat: two UIDs (6
// bytes each) plus four bytes plus two words.
const headerFieldsSize = 6 + 6 + 1 + 1 + 1 + 2 + 1 + 2

// HeaderSize is SC + SUB_SC + MSG_LEN + headerFieldsSize + PDL: the
// 24-byte span MSG_LEN counts, from the start of a frame through the
// PDL byte inclusive, matching spec.md's worked examples. Callers
// sizing their own frame buffers should use this rather than a literal
// 24.
const HeaderSize = 2 + 1 + headerFieldsSize + 1

const envelopeSize = HeaderSize

// pdlOffset and pdOffset are the fixed byte positions of PDL and the
// start of parameter data within an encoded frame.
const (
	pdlOffset = envelopeSize - 1
	pdOffset  = envelopeSize
)
