package fritzerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the failure classes of the engine. It replaces the
// exception hierarchy of classic TR-064 client libraries with a flat tag.
type Kind int

// Failure classes, roughly ordered local-first: lookups and argument
// validation fail before any network I/O, router fault kinds are decoded
// from SOAP fault responses, transport problems collapse into
// KindConnectivity.
const (
	KindUnknown Kind = iota

	// Lookup failures raised before any request is sent.
	KindServiceNotFound
	KindActionNotFound

	// Argument failures; the subtypes map router fault codes.
	KindArgument
	KindArgumentValue
	KindArgumentStringTooShort
	KindArgumentStringTooLong
	KindArgumentCharacter
	KindLookUp
	KindArrayIndex

	// Router-side failures.
	KindAuthorization
	KindActionFailed
	KindOutOfMemory
	KindInternal

	// Local and transport failures.
	KindConnectivity
	KindDescription
	KindCache
	KindHTTPInterface
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown",
	KindServiceNotFound:        "service not found",
	KindActionNotFound:         "action not found",
	KindArgument:               "argument",
	KindArgumentValue:          "argument value",
	KindArgumentStringTooShort: "argument string too short",
	KindArgumentStringTooLong:  "argument string too long",
	KindArgumentCharacter:      "argument character",
	KindLookUp:                 "lookup",
	KindArrayIndex:             "array index",
	KindAuthorization:          "authorization",
	KindActionFailed:           "action failed",
	KindOutOfMemory:            "out of memory",
	KindInternal:               "internal",
	KindConnectivity:           "connectivity",
	KindDescription:            "description",
	KindCache:                  "cache",
	KindHTTPInterface:          "http interface",
}

// String returns a short human-readable name for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the single error type produced by fritzcore. Code holds the
// router-defined numeric fault code as reported (empty for local errors),
// Message the description, Err an optional wrapped cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("fritz: %s (code %s): %s", e.Kind, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("fritz: %s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("fritz: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fritz: %s", e.Kind)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// faultKinds maps the AVM-defined SOAP fault codes to error kinds.
// Code 401 is an authorization failure on this surface.
var faultKinds = map[string]Kind{
	"401": KindAuthorization,
	"402": KindArgument,
	"501": KindActionFailed,
	"600": KindArgumentValue,
	"603": KindOutOfMemory,
	"606": KindAuthorization,
	"713": KindArrayIndex,
	"714": KindLookUp,
	"801": KindArgumentStringTooShort,
	"802": KindArgumentStringTooLong,
	"803": KindArgumentCharacter,
	"820": KindInternal,
}

// FromFaultCode builds an Error for a router-reported SOAP fault. Unknown
// codes yield KindUnknown but keep the raw code and description.
func FromFaultCode(code, description string) *Error {
	kind, ok := faultKinds[code]
	if !ok {
		kind = KindUnknown
	}
	return &Error{Kind: kind, Code: code, Message: description}
}

// KindOf returns the kind of err, or KindUnknown and false if err is not a
// fritzcore error.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return KindUnknown, false
}

func hasKind(err error, kinds ...Kind) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	for _, k := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a service or action lookup failure.
func IsNotFound(err error) bool {
	return hasKind(err, KindServiceNotFound, KindActionNotFound)
}

// IsServiceNotFound reports an unknown service name.
func IsServiceNotFound(err error) bool {
	return hasKind(err, KindServiceNotFound)
}

// IsActionNotFound reports an unknown action name on a known service.
func IsActionNotFound(err error) bool {
	return hasKind(err, KindActionNotFound)
}

// IsArgument reports whether err belongs to the argument failure family,
// including the value/length/character subtypes and the router lookup and
// index faults (the classic libraries treated those as both lookup and
// argument errors).
func IsArgument(err error) bool {
	return hasKind(err,
		KindArgument,
		KindArgumentValue,
		KindArgumentStringTooShort,
		KindArgumentStringTooLong,
		KindArgumentCharacter,
		KindLookUp,
		KindArrayIndex,
	)
}

// IsAuthorization reports missing or rejected credentials.
func IsAuthorization(err error) bool {
	return hasKind(err, KindAuthorization)
}

// IsConnectivity reports a transport-level failure (refused, timeout, DNS,
// TLS handshake).
func IsConnectivity(err error) bool {
	return hasKind(err, KindConnectivity)
}

// IsDescription reports a malformed or incomplete XML description.
func IsDescription(err error) bool {
	return hasKind(err, KindDescription)
}

// IsCache reports a cache load/store failure. Cache errors never abort
// discovery; they are observable for logging only.
func IsCache(err error) bool {
	return hasKind(err, KindCache)
}

// IsInternal reports a router-side internal failure class.
func IsInternal(err error) bool {
	return hasKind(err, KindInternal, KindActionFailed, KindOutOfMemory)
}
