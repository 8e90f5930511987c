package rdm

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// fieldKind identifies one token of a compiled format program.
type fieldKind int

const (
	fieldByte fieldKind = iota
	fieldWord
	fieldDWord
	fieldUID
	fieldOptionalUID
	fieldASCIIFixed
	fieldASCIIVar
	fieldLiteral
)

type field struct {
	kind    fieldKind
	size    int // on-wire byte width for this occurrence of the field
	literal uint64
}

// program is a compiled format string: the §4.B pre-pass computed once
// and replayed by Emplace on every call, keeping the hot path free of
// string scanning (per spec.md §9's design note).
type program struct {
	fields    []field
	paramSize int
	singleton bool
}

var formatCache sync.Map // string -> *program

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// parseFormat compiles a format string per spec.md §4.B's grammar and
// pre-pass rules, caching the result for subsequent calls with the same
// format text.
//
// The hex-literal token ("#<hex>h") is terminated by 'h'/'H' as spec.md
// prescribes, but a following '#' is also accepted as an implicit
// terminator so that back-to-back literals (as in the frame header's
// own "#cc01#18h"-style constants) don't require a redundant 'h'
// between them; a literal at end-of-string with no terminator is still
// an error.
func parseFormat(format string) (*program, error) {
	if cached, ok := formatCache.Load(format); ok {
		return cached.(*program), nil
	}

	prog := &program{singleton: len(format) == 0}
	paramSize := 0
	n := len(format)
	i := 0

	for i < n {
		c := format[i]
		var f field

		switch {
		case c == 'b' || c == 'B':
			f = field{kind: fieldByte, size: 1}
			i++

		case c == 'w' || c == 'W':
			f = field{kind: fieldWord, size: 2}
			i++

		case c == 'd' || c == 'D':
			f = field{kind: fieldDWord, size: 4}
			i++

		case c == 'u' || c == 'U':
			f = field{kind: fieldUID, size: 6}
			i++

		case c == 'v' || c == 'V':
			if i+1 < n && format[i+1] != '$' {
				return nil, fmt.Errorf("%w: optional UID not at end of parameter", ErrBadFormat)
			}
			prog.singleton = true
			f = field{kind: fieldOptionalUID, size: 6}
			i++

		case c == 'a' || c == 'A':
			j := i + 1
			for j < n && isDigit(format[j]) {
				j++
			}
			hasFixedLen := j > i+1
			if hasFixedLen {
				length := 0
				for _, d := range []byte(format[i+1 : j]) {
					length = length*10 + int(d-'0')
				}
				if length == 0 {
					return nil, fmt.Errorf("%w: fixed-length string has no size", ErrBadFormat)
				}
				if length > MaxParameterDataLength-paramSize {
					return nil, fmt.Errorf("%w: fixed-length string is too big", ErrParamTooLarge)
				}
				f = field{kind: fieldASCIIFixed, size: length}
				i = j
			} else {
				if j < n && format[j] != '$' {
					return nil, fmt.Errorf("%w: variable-length string not at end of parameter", ErrBadFormat)
				}
				prog.singleton = true
				f = field{kind: fieldASCIIVar, size: 0}
				i = j
			}

		case c == '#':
			i++
			start := i
			for i < n && isHexDigit(format[i]) {
				i++
			}
			numChars := i - start
			if numChars > 16 {
				return nil, fmt.Errorf("%w: integer literal is too big", ErrBadFormat)
			}
			fieldLen := (numChars + 1) / 2
			var literal uint64
			for _, d := range []byte(format[start:i]) {
				literal = literal<<4 | uint64(hexVal(d))
			}
			if i < n && (format[i] == 'h' || format[i] == 'H') {
				i++
			} else if i < n && format[i] == '#' {
				// implicit terminator: another literal begins here
			} else {
				return nil, fmt.Errorf("%w: improperly terminated integer literal", ErrBadFormat)
			}
			f = field{kind: fieldLiteral, size: fieldLen, literal: literal}

		case c == '$':
			if i+1 != n {
				return nil, fmt.Errorf("%w: improperly placed end-of-parameter anchor", ErrBadFormat)
			}
			prog.singleton = true
			i++
			continue

		default:
			return nil, fmt.Errorf("%w: unknown symbol %q", ErrBadFormat, c)
		}

		if paramSize+f.size > MaxParameterDataLength {
			return nil, fmt.Errorf("%w: parameter is too big", ErrParamTooLarge)
		}
		paramSize += f.size
		prog.fields = append(prog.fields, f)
	}

	prog.paramSize = paramSize
	formatCache.Store(format, prog)
	return prog, nil
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func strnlen(b []byte, maxLen int) int {
	if maxLen < 0 {
		return 0
	}
	if maxLen > len(b) {
		maxLen = len(b)
	}
	for i := 0; i < maxLen; i++ {
		if b[i] == 0 {
			return i
		}
	}
	return maxLen
}

// Emplace executes format against src, writing into dst, and returns
// the number of bytes written to dst. It implements spec.md §4.B: the
// same operation serializes (dst=wire, src=native) and deserializes
// (dst=native, src=wire) depending on which side the caller arranges as
// which. Byte-swap of w/d/u fields is idempotent, so no separate
// "direction" flag is needed beyond encodeNulls.
func Emplace(dst, src []byte, format string, encodeNulls bool) (int, error) {
	prog, err := parseFormat(format)
	if err != nil {
		return 0, err
	}
	if prog.paramSize == 0 && !prog.singleton {
		return 0, fmt.Errorf("%w: empty non-singleton format", ErrBadFormat)
	}

	// size drives how many repetitions of a non-singleton format to run
	// and how far a variable-length string may extend: the smaller of
	// the two caller-supplied capacities, per spec.md §4.B. A literal
	// field never reads src, but it is still gated by this size like
	// every other field — a literal-only format called with a short or
	// nil src writes nothing, matching the source's own
	// size = min(dest_size, src_size) formula.
	size := len(dst)
	if len(src) < size {
		size = len(src)
	}
	if size > MaxParameterDataLength {
		size = MaxParameterDataLength
	}

	numIters := 1
	if !prog.singleton {
		if prog.paramSize == 0 {
			numIters = 0
		} else {
			numIters = size / prog.paramSize
		}
	}

	n := 0
	for iter := 0; iter < numIters; iter++ {
		for _, f := range prog.fields {
			switch f.kind {
			case fieldByte:
				dst[n] = src[n]
				n++

			case fieldWord:
				v := binary.BigEndian.Uint16(src[n:])
				binary.BigEndian.PutUint16(dst[n:], v)
				n += 2

			case fieldDWord:
				v := binary.BigEndian.Uint32(src[n:])
				binary.BigEndian.PutUint32(dst[n:], v)
				n += 4

			case fieldUID:
				PutUID(dst[n:], UIDFromBytes(src[n:]))
				n += 6

			case fieldOptionalUID:
				u := UIDFromBytes(src[n:])
				if !encodeNulls && u.IsNull() {
					return n, nil
				}
				PutUID(dst[n:], u)
				n += 6

			case fieldASCIIFixed:
				copy(dst[n:n+f.size], src[n:n+f.size])
				n += f.size

			case fieldASCIIVar:
				strSize := size
				if encodeNulls {
					strSize--
				}
				maxLen := strSize - n
				if maxLen > 32 {
					maxLen = 32
				}
				length := strnlen(src[n:], maxLen)
				copy(dst[n:n+length], src[n:n+length])
				if encodeNulls {
					dst[n+length] = 0
					n++
				}
				n += length

			case fieldLiteral:
				for j := 0; j < f.size; j++ {
					shift := 8 * (f.size - 1 - j)
					dst[n+j] = byte(f.literal >> uint(shift))
				}
				n += f.size
			}
		}
	}
	return n, nil
}
