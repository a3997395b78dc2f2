package resp

import (
	"strconv"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrMalformed is wrapped by every decode error; callers treat any
// error from DecodeBuffer as an unknown-command / drop-frame signal
// per spec.md §4.1 and §7, not as a reason to crash the connection.
var ErrMalformed = errors.New("resp: malformed frame")

// DecodeBuffer scans buf for as many complete RESP frames as it can
// find, left to right. It returns the decoded values, the number of
// bytes consumed from the front of buf, and an error if any already-
// started frame is malformed. A trailing incomplete frame is not an
// error: it is simply left unconsumed for the caller to retry once
// more bytes arrive (the "concatenation" strategy permitted by
// spec.md §5 — the connection supervisor keeps the unconsumed tail
// and re-scans from the start on the next read).
func DecodeBuffer(buf []byte) (values []Value, consumed int, err error) {
	pos := 0
	for pos < len(buf) {
		v, next, ok, derr := decodeOne(buf, pos)
		if derr != nil {
			return nil, 0, errors.Wrapf(ErrMalformed, "resp decode: %v", derr)
		}
		if !ok {
			break
		}
		values = append(values, v)
		pos = next
	}
	return values, pos, nil
}

// DecodeOne decodes a single frame starting at the front of buf. ok
// is false when buf doesn't yet hold a complete frame. Callers that
// need the exact raw bytes of one inbound command (for propagation
// byte-counting) use this instead of DecodeBuffer.
func DecodeOne(buf []byte) (v Value, consumed int, ok bool, err error) {
	v, next, ok, derr := decodeOne(buf, 0)
	if derr != nil {
		return Value{}, 0, false, errors.Wrapf(ErrMalformed, "resp decode: %v", derr)
	}
	return v, next, ok, nil
}

// findCRLF returns the index of the first byte of a "\r\n" pair at or
// after pos, or -1 if none is present yet.
func findCRLF(buf []byte, pos int) int {
	for i := pos; i+1 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func decodeOne(buf []byte, pos int) (v Value, next int, ok bool, err error) {
	if pos >= len(buf) {
		return Value{}, pos, false, nil
	}
	switch buf[pos] {
	case '+':
		return decodeLine(buf, pos, KindSimpleString)
	case '-':
		return decodeLine(buf, pos, KindSimpleError)
	case ':':
		return decodeInteger(buf, pos)
	case '$':
		return decodeBulk(buf, pos)
	case '*':
		return decodeArray(buf, pos)
	default:
		return Value{}, pos, false, errors.Errorf("invalid type byte %q at offset %d", buf[pos], pos)
	}
}

func decodeLine(buf []byte, pos int, kind Kind) (Value, int, bool, error) {
	eol := findCRLF(buf, pos+1)
	if eol == -1 {
		return Value{}, pos, false, nil
	}
	body := string(buf[pos+1 : eol])
	return Value{Kind: kind, Str: body}, eol + 2, true, nil
}

func decodeInteger(buf []byte, pos int) (Value, int, bool, error) {
	eol := findCRLF(buf, pos+1)
	if eol == -1 {
		return Value{}, pos, false, nil
	}
	body := string(buf[pos+1 : eol])
	n, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return Value{}, pos, false, errors.Wrapf(err, "invalid integer %q", body)
	}
	return Integer(n), eol + 2, true, nil
}

func decodeLength(buf []byte, pos int) (n int64, next int, ok bool, err error) {
	eol := findCRLF(buf, pos+1)
	if eol == -1 {
		return 0, pos, false, nil
	}
	body := string(buf[pos+1 : eol])
	n, err = strconv.ParseInt(body, 10, 64)
	if err != nil {
		return 0, pos, false, errors.Wrapf(err, "invalid length %q", body)
	}
	return n, eol + 2, true, nil
}

func decodeBulk(buf []byte, pos int) (Value, int, bool, error) {
	length, bodyStart, ok, err := decodeLength(buf, pos)
	if err != nil {
		return Value{}, pos, false, err
	}
	if !ok {
		return Value{}, pos, false, nil
	}
	if length == -1 {
		return NullBulkString(), bodyStart, true, nil
	}
	if length < -1 {
		return Value{}, pos, false, errors.Errorf("invalid bulk length %d", length)
	}
	bodyEnd := bodyStart + int(length)
	if len(buf) < bodyEnd {
		return Value{}, pos, false, nil
	}
	raw := buf[bodyStart:bodyEnd]
	// The dual-terminator rule: CRLF right here means BulkString,
	// anything else (short buffer, another tag byte, end-of-buffer)
	// means the frame is a bare Bytes payload. This decision is made
	// with what's in the buffer right now; it never waits for more
	// bytes to arrive to decide which branch it is (spec.md §4.1).
	if bodyEnd+1 < len(buf) && buf[bodyEnd] == '\r' && buf[bodyEnd+1] == '\n' {
		if !utf8.Valid(raw) {
			return Value{}, pos, false, errors.New("bulk string payload is not valid UTF-8")
		}
		return BulkString(string(raw)), bodyEnd + 2, true, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Bytes(cp), bodyEnd, true, nil
}

func decodeArray(buf []byte, pos int) (Value, int, bool, error) {
	count, cur, ok, err := decodeLength(buf, pos)
	if err != nil {
		return Value{}, pos, false, err
	}
	if !ok {
		return Value{}, pos, false, nil
	}
	if count == -1 {
		return NullArray(), cur, true, nil
	}
	if count < -1 {
		return Value{}, pos, false, errors.Errorf("invalid array length %d", count)
	}
	elems := make([]Value, 0, count)
	for i := int64(0); i < count; i++ {
		v, next, ok, err := decodeOne(buf, cur)
		if err != nil {
			return Value{}, pos, false, err
		}
		if !ok {
			// Incomplete element: the whole array is incomplete.
			return Value{}, pos, false, nil
		}
		elems = append(elems, v)
		cur = next
	}
	return Array(elems), cur, true, nil
}
