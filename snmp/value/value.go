// Package value holds the decoded forms of SNMP responses: a single scalar
// Value and an insertion-ordered Enumeration of OID → Value produced by a walk.
//
// Every value is reduced to one of five kinds (absent, string, integer,
// unsigned, time-ticks) and is presented to callers as text, never as the
// gosnmp wire representation.
package value

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gosnmp/gosnmp"
)

// ─────────────────────────────────────────────────────────────────────────────
// Kind
// ─────────────────────────────────────────────────────────────────────────────

// Kind classifies a decoded Value.
type Kind uint8

const (
	// KindAbsent marks a missing value: an SNMP Null, a varbind exception, or a
	// table cell the device did not return.
	KindAbsent Kind = iota
	KindString
	KindInteger
	KindUnsigned
	KindTimeTicks
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindUnsigned:
		return "unsigned"
	case KindTimeTicks:
		return "timeticks"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Value
// ─────────────────────────────────────────────────────────────────────────────

// Value is an immutable decoded scalar. The zero Value is Absent.
type Value struct {
	kind Kind
	asn  gosnmp.Asn1BER
	s    string
	i    int64
	u    uint64
}

// Absent is the explicit "not available" marker.
var Absent = Value{}

// String returns a string-kind Value.
func String(s string) Value { return Value{kind: KindString, asn: gosnmp.OctetString, s: s} }

// Integer returns an integer-kind Value.
func Integer(i int64) Value { return Value{kind: KindInteger, asn: gosnmp.Integer, i: i} }

// Unsigned returns an unsigned-kind Value.
func Unsigned(u uint64) Value { return Value{kind: KindUnsigned, asn: gosnmp.Counter64, u: u} }

// TimeTicks returns a time-ticks Value (hundredths of a second).
func TimeTicks(t uint64) Value { return Value{kind: KindTimeTicks, asn: gosnmp.TimeTicks, u: t} }

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// Type returns the ASN.1 type the value was decoded from.
func (v Value) Type() gosnmp.Asn1BER { return v.asn }

// IsAbsent reports whether v is the absent marker.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Int64 returns the numeric value when it fits in an int64.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInteger:
		return v.i, true
	case KindUnsigned, KindTimeTicks:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	default:
		return 0, false
	}
}

// Uint64 returns the numeric value when it is non-negative.
func (v Value) Uint64() (uint64, bool) {
	switch v.kind {
	case KindUnsigned, KindTimeTicks:
		return v.u, true
	case KindInteger:
		if v.i < 0 {
			return 0, false
		}
		return uint64(v.i), true
	default:
		return 0, false
	}
}

// Duration converts a time-ticks value to a time.Duration.
func (v Value) Duration() (time.Duration, bool) {
	if v.kind != KindTimeTicks {
		return 0, false
	}
	return time.Duration(v.u) * 10 * time.Millisecond, true
}

// String returns the pretty-printed text form. Absent values print as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindUnsigned, KindTimeTicks:
		return strconv.FormatUint(v.u, 10)
	default:
		return ""
	}
}

// MarshalJSON encodes strings as JSON strings, numeric kinds as numbers and
// Absent as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInteger:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindUnsigned, KindTimeTicks:
		return []byte(strconv.FormatUint(v.u, 10)), nil
	default:
		return []byte("null"), nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// PDU decoding
// ─────────────────────────────────────────────────────────────────────────────

// FromPDU decodes a gosnmp variable binding. Exceptions and Null decode to an
// absent Value that keeps the original ASN.1 type.
func FromPDU(pdu gosnmp.SnmpPDU) Value {
	switch pdu.Type {
	case gosnmp.Null, gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return Value{kind: KindAbsent, asn: pdu.Type}

	case gosnmp.Integer:
		i, err := toInt64(pdu.Value)
		if err != nil {
			return textValue(pdu.Type, fmt.Sprintf("%v", pdu.Value))
		}
		return Value{kind: KindInteger, asn: pdu.Type, i: i}

	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.Counter64, gosnmp.Uinteger32:
		u, err := toUint64(pdu.Value)
		if err != nil {
			return textValue(pdu.Type, fmt.Sprintf("%v", pdu.Value))
		}
		return Value{kind: KindUnsigned, asn: pdu.Type, u: u}

	case gosnmp.TimeTicks:
		u, err := toUint64(pdu.Value)
		if err != nil {
			return textValue(pdu.Type, fmt.Sprintf("%v", pdu.Value))
		}
		return Value{kind: KindTimeTicks, asn: pdu.Type, u: u}

	case gosnmp.OctetString, gosnmp.ObjectDescription, gosnmp.BitString, gosnmp.Opaque:
		return textValue(pdu.Type, prettyOctets(pdu.Value))

	case gosnmp.ObjectIdentifier:
		return textValue(pdu.Type, toOIDString(pdu.Value))

	case gosnmp.IPAddress:
		return textValue(pdu.Type, toIPString(pdu.Value))

	case gosnmp.OpaqueFloat, gosnmp.OpaqueDouble:
		f, err := toFloat64(pdu.Value)
		if err != nil {
			return textValue(pdu.Type, fmt.Sprintf("%v", pdu.Value))
		}
		return textValue(pdu.Type, strconv.FormatFloat(f, 'g', -1, 64))

	default:
		if b, ok := pdu.Value.([]byte); ok {
			return textValue(pdu.Type, prettyOctets(b))
		}
		return textValue(pdu.Type, fmt.Sprintf("%v", pdu.Value))
	}
}

func textValue(t gosnmp.Asn1BER, s string) Value {
	return Value{kind: KindString, asn: t, s: s}
}

// IsException reports whether t is one of the SNMPv2 varbind exceptions.
func IsException(t gosnmp.Asn1BER) bool {
	return t == gosnmp.NoSuchObject || t == gosnmp.NoSuchInstance || t == gosnmp.EndOfMibView
}

// ExceptionName returns the RFC 3416 name of a varbind exception.
func ExceptionName(t gosnmp.Asn1BER) string {
	switch t {
	case gosnmp.NoSuchObject:
		return "noSuchObject"
	case gosnmp.NoSuchInstance:
		return "noSuchInstance"
	case gosnmp.EndOfMibView:
		return "endOfMibView"
	default:
		return PDUTypeString(t)
	}
}

// PDUTypeString returns the human-readable name for a gosnmp Asn1BER type tag.
func PDUTypeString(t gosnmp.Asn1BER) string {
	switch t {
	case gosnmp.Integer:
		return "Integer"
	case gosnmp.BitString:
		return "BitString"
	case gosnmp.OctetString:
		return "OctetString"
	case gosnmp.Null:
		return "Null"
	case gosnmp.ObjectIdentifier:
		return "ObjectIdentifier"
	case gosnmp.ObjectDescription:
		return "ObjectDescription"
	case gosnmp.IPAddress:
		return "IpAddress"
	case gosnmp.Counter32:
		return "Counter32"
	case gosnmp.Gauge32:
		return "Gauge32"
	case gosnmp.TimeTicks:
		return "TimeTicks"
	case gosnmp.Opaque:
		return "Opaque"
	case gosnmp.Counter64:
		return "Counter64"
	case gosnmp.Uinteger32:
		return "Unsigned32"
	case gosnmp.OpaqueFloat:
		return "OpaqueFloat"
	case gosnmp.OpaqueDouble:
		return "OpaqueDouble"
	case gosnmp.NoSuchObject:
		return "NoSuchObject"
	case gosnmp.NoSuchInstance:
		return "NoSuchInstance"
	case gosnmp.EndOfMibView:
		return "EndOfMibView"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Low-level conversion helpers
// ─────────────────────────────────────────────────────────────────────────────

// toInt64 converts the raw gosnmp value to int64.
// gosnmp returns integers as int / int32 / int64 depending on the PDU.
func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("uint64 value %d overflows int64", x)
		}
		return int64(x), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

// toUint64 converts the raw gosnmp value to uint64.
func toUint64(v interface{}) (uint64, error) {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d cannot be converted to uint64", x)
		}
		return uint64(x), nil
	case int32:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d cannot be converted to uint64", x)
		}
		return uint64(x), nil
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d cannot be converted to uint64", x)
		}
		return uint64(x), nil
	case uint:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to uint64", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		i, err := toInt64(v)
		return float64(i), err
	}
}

// prettyOctets renders an octet string as text when every rune is printable,
// otherwise as 0x-prefixed hex. Trailing NUL bytes that some devices append
// are dropped first.
func prettyOctets(v interface{}) string {
	var b []byte
	switch x := v.(type) {
	case []byte:
		b = x
	case string:
		b = []byte(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}

	trimmed := strings.TrimRight(string(b), "\x00")
	if isPrintable(trimmed) {
		return trimmed
	}
	return "0x" + hex.EncodeToString(b)
}

func isPrintable(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// toOIDString returns the dotted-decimal OID string without the leading dot
// gosnmp adds.
func toOIDString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimPrefix(x, ".")
	case []byte:
		return strings.TrimPrefix(string(x), ".")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toIPString converts an IpAddress value (4-byte slice or string) to dotted-
// decimal notation, e.g. "192.168.1.1".
func toIPString(v interface{}) string {
	switch x := v.(type) {
	case string:
		b := []byte(x)
		if len(b) == 4 && !strings.Contains(x, ".") {
			return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
		}
		return x
	case []byte:
		if len(x) == 4 {
			return fmt.Sprintf("%d.%d.%d.%d", x[0], x[1], x[2], x[3])
		}
		return hex.EncodeToString(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}
