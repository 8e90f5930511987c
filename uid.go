package rdm

import "fmt"

// UID is a 48-bit RDM device identifier: a 16-bit manufacturer ID and a
// 32-bit device ID, compared lexicographically on (ManID, DevID).
type UID struct {
	ManID uint16
	DevID uint32
}

// NullUID is the zero UID, used as a sentinel "no destination" value.
var NullUID = UID{ManID: 0, DevID: 0}

// BroadcastAllUID addresses every responder on the bus regardless of
// manufacturer.
var BroadcastAllUID = UID{ManID: 0xFFFF, DevID: 0xFFFFFFFF}

// BroadcastUID addresses every responder made by manID.
func BroadcastUID(manID uint16) UID {
	return UID{ManID: manID, DevID: 0xFFFFFFFF}
}

// Eq reports whether a and b identify the same device.
func Eq(a, b UID) bool {
	return a.ManID == b.ManID && a.DevID == b.DevID
}

// Lt reports whether a sorts before b under the (ManID, DevID)
// lexicographic order.
func Lt(a, b UID) bool {
	return a.ManID < b.ManID || (a.ManID == b.ManID && a.DevID < b.DevID)
}

// Gt reports whether a sorts after b under the (ManID, DevID)
// lexicographic order.
func Gt(a, b UID) bool {
	return a.ManID > b.ManID || (a.ManID == b.ManID && a.DevID > b.DevID)
}

// Le reports whether a sorts at or before b.
func Le(a, b UID) bool {
	return !Gt(a, b)
}

// Ge reports whether a sorts at or after b.
func Ge(a, b UID) bool {
	return !Lt(a, b)
}

// IsNull reports whether u is the null UID.
func (u UID) IsNull() bool {
	return u.ManID == 0 && u.DevID == 0
}

// IsBroadcast reports whether u addresses every device of some
// manufacturer (or every device on the bus).
func (u UID) IsBroadcast() bool {
	return u.DevID == 0xFFFFFFFF
}

// IsTarget reports whether alias resolves to uid: either alias names uid
// exactly, or alias is a (possibly manufacturer-scoped) broadcast that
// covers uid.
func IsTarget(uid, alias UID) bool {
	if (alias.ManID == 0xFFFF || alias.ManID == uid.ManID) && alias.DevID == 0xFFFFFFFF {
		return true
	}
	return Eq(uid, alias)
}

// String renders u in the conventional "manid:devid" hex form.
func (u UID) String() string {
	return fmt.Sprintf("%04X:%08X", u.ManID, u.DevID)
}

// PutUID writes u into dst in big-endian wire order (man hi, man lo,
// dev 3..0). dst must be at least 6 bytes.
func PutUID(dst []byte, u UID) {
	dst[0] = byte(u.ManID >> 8)
	dst[1] = byte(u.ManID)
	dst[2] = byte(u.DevID >> 24)
	dst[3] = byte(u.DevID >> 16)
	dst[4] = byte(u.DevID >> 8)
	dst[5] = byte(u.DevID)
}

// UIDFromBytes reads a big-endian wire-order UID from src. src must be
// at least 6 bytes.
func UIDFromBytes(src []byte) UID {
	return UID{
		ManID: uint16(src[0])<<8 | uint16(src[1]),
		DevID: uint32(src[2])<<24 | uint32(src[3])<<16 | uint32(src[4])<<8 | uint32(src[5]),
	}
}
