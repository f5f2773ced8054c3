package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// Kind classifies a ProtocolError.
type Kind uint8

const (
	// KindTransport covers everything below the SNMP message: bind failures,
	// timeouts after all retries, unreachable hosts, undecodable responses and
	// cancelled contexts.
	KindTransport Kind = iota + 1

	// KindApplication covers well-formed responses the agent used to report a
	// failure: a non-zero error-status or a varbind exception.
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

var (
	// ErrTransport matches any transport-kind ProtocolError via errors.Is.
	ErrTransport = errors.New("snmp transport error")

	// ErrApplication matches any application-kind ProtocolError via errors.Is.
	ErrApplication = errors.New("snmp application error")

	// ErrClosed is the cause of every ProtocolError returned after Close.
	ErrClosed = errors.New("session closed")
)

// ProtocolError is the single error type produced by Session operations.
type ProtocolError struct {
	Kind   Kind
	Op     string // "get" or "walk"
	Target string // host:port
	OID    string // requested OID or walk root

	// Reason is a short machine-readable cause, e.g. "timeout", "noSuchName",
	// "noSuchInstance", "oidNotIncreasing".
	Reason string

	// BadOID names the varbind the agent blamed; "?" when it cannot be
	// determined. Empty for transport errors.
	BadOID string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ProtocolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "snmp %s %s %s: %s error", e.Op, e.Target, e.OID, e.Kind)
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.BadOID != "" {
		fmt.Fprintf(&b, " (oid %s)", e.BadOID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) and errors.Is(err, ErrApplication)
// match by kind.
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrApplication:
		return e.Kind == KindApplication
	default:
		return false
	}
}

// IsTransport reports whether err is a transport-kind ProtocolError.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

// IsApplication reports whether err is an application-kind ProtocolError.
func IsApplication(err error) bool { return errors.Is(err, ErrApplication) }

// BadVarbind maps a 1-based SNMP error-index onto the request OID list.
// Index 0 or an index past the end yields "?".
func BadVarbind(request []string, index uint8) string {
	if index == 0 || int(index) > len(request) {
		return "?"
	}
	return request[index-1]
}

// statusNames holds the RFC 3416 error-status names, indexed by value.
var statusNames = []string{
	"noError",
	"tooBig",
	"noSuchName",
	"badValue",
	"readOnly",
	"genErr",
	"noAccess",
	"wrongType",
	"wrongLength",
	"wrongEncoding",
	"wrongValue",
	"noCreation",
	"inconsistentValue",
	"resourceUnavailable",
	"commitFailed",
	"undoFailed",
	"authorizationError",
	"notWritable",
	"inconsistentName",
}

// StatusName returns the RFC 3416 name of an error-status.
func StatusName(s gosnmp.SNMPError) string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("errorStatus(%d)", uint8(s))
}
