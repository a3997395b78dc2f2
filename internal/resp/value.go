// Package resp implements the RESP wire protocol: a byte-accurate,
// incremental decoder and a deterministic encoder, including the
// non-standard Bytes variant used to carry an RDB payload that isn't
// terminated by CRLF.
package resp

import (
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindSimpleString Kind = iota
	KindSimpleError
	KindInteger
	KindBulkString
	KindNullBulkString
	KindArray
	KindNullArray
	KindBytes
)

// Value is the RESP sum type. Only the fields relevant to Kind are
// meaningful; equality for tests is structural (see Equal).
type Value struct {
	Kind  Kind
	Str   string  // SimpleString, SimpleError, BulkString
	Int   int64   // Integer
	Elems []Value // Array
	Raw   []byte  // Bytes
}

func SimpleString(s string) Value { return Value{Kind: KindSimpleString, Str: s} }
func SimpleError(s string) Value  { return Value{Kind: KindSimpleError, Str: s} }
func Integer(n int64) Value       { return Value{Kind: KindInteger, Int: n} }
func BulkString(s string) Value   { return Value{Kind: KindBulkString, Str: s} }
func NullBulkString() Value       { return Value{Kind: KindNullBulkString} }
func Array(elems []Value) Value   { return Value{Kind: KindArray, Elems: elems} }
func NullArray() Value            { return Value{Kind: KindNullArray} }
func Bytes(b []byte) Value        { return Value{Kind: KindBytes, Raw: b} }

// StringArray is a convenience constructor for a command/array of
// BulkStrings, the shape every propagated write command takes.
func StringArray(parts ...string) Value {
	elems := make([]Value, len(parts))
	for i, p := range parts {
		elems[i] = BulkString(p)
	}
	return Array(elems)
}

// Encode renders v per spec.md §4.1. Deterministic: the same Value
// always produces the same bytes (modulo Bytes, which has no CRLF to
// reconstruct and so is not a faithful round-trip of arbitrary source
// framing, only of its own content).
func (v Value) Encode() []byte {
	switch v.Kind {
	case KindSimpleString:
		return []byte("+" + v.Str + "\r\n")
	case KindSimpleError:
		return []byte("-" + v.Str + "\r\n")
	case KindInteger:
		return []byte(":" + strconv.FormatInt(v.Int, 10) + "\r\n")
	case KindBulkString:
		n := len([]rune(v.Str))
		return []byte("$" + strconv.Itoa(n) + "\r\n" + v.Str + "\r\n")
	case KindNullBulkString:
		return []byte("$-1\r\n")
	case KindArray:
		buf := []byte("*" + strconv.Itoa(len(v.Elems)) + "\r\n")
		for _, e := range v.Elems {
			buf = append(buf, e.Encode()...)
		}
		return buf
	case KindNullArray:
		return []byte("*-1\r\n")
	case KindBytes:
		buf := []byte("$" + strconv.Itoa(len(v.Raw)) + "\r\n")
		return append(buf, v.Raw...)
	default:
		return nil
	}
}

// Equal reports structural equality, ignoring how either value was
// produced.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindSimpleString, KindSimpleError, KindBulkString:
		return v.Str == o.Str
	case KindInteger:
		return v.Int == o.Int
	case KindBytes:
		if len(v.Raw) != len(o.Raw) {
			return false
		}
		for i := range v.Raw {
			if v.Raw[i] != o.Raw[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case KindNullBulkString, KindNullArray:
		return true
	default:
		return false
	}
}

// StringsIfArray extracts the bulk-string contents of an Array value,
// the shape a parsed command frame takes. ok is false if v is not an
// Array of plain strings (BulkString or SimpleString elements).
func (v Value) StringsIfArray() (out []string, ok bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	out = make([]string, len(v.Elems))
	for i, e := range v.Elems {
		switch e.Kind {
		case KindBulkString, KindSimpleString:
			out[i] = e.Str
		default:
			return nil, false
		}
	}
	return out, true
}
