package muscle3errors

import "fmt"

// Code is a coarse classification of a muscle3 error, in the spirit of
// go.uber.org/yarpc/yarpcerrors' status codes.
type Code int

// The error kinds named in spec.md §4.2 and §7.
const (
	// CodeOK is never attached to a non-nil error.
	CodeOK Code = iota
	// CodeInvalidPortName: user passed a string that is not a legal
	// identifier.
	CodeInvalidPortName
	// CodePortNotConnected: receive on a port with no peer and no default.
	CodePortNotConnected
	// CodeNoMatchingTransport: no client can accept any advertised
	// location for a peer.
	CodeNoMatchingTransport
	// CodeCrossUniverse: settings overlay mismatch mid reuse-iteration.
	CodeCrossUniverse
	// CodeTransportTimeout: a transport round trip exceeded its deadline.
	CodeTransportTimeout
	// CodeTransportError: a transport round trip failed permanently.
	CodeTransportError
	// CodeManagerUnreachable: manager bootstrap failed after retries.
	CodeManagerUnreachable
	// CodeProtocolMismatch: peer returned an undecodable message or
	// unknown extension tag.
	CodeProtocolMismatch
	// CodeParameterNotFound: no settings value found for a parameter,
	// searching overlay then base at every namespace level.
	CodeParameterNotFound
	// CodeTypeMismatch: a settings value did not match its requested
	// type tag.
	CodeTypeMismatch
)

var _codeToString = map[Code]string{
	CodeOK:                  "ok",
	CodeInvalidPortName:     "invalid-port-name",
	CodePortNotConnected:    "port-not-connected",
	CodeNoMatchingTransport: "no-matching-transport",
	CodeCrossUniverse:       "cross-universe",
	CodeTransportTimeout:    "transport-timeout",
	CodeTransportError:      "transport-error",
	CodeManagerUnreachable:  "manager-unreachable",
	CodeProtocolMismatch:    "protocol-mismatch",
	CodeParameterNotFound:   "parameter-not-found",
	CodeTypeMismatch:        "type-mismatch",
}

var _stringToCode = func() map[string]Code {
	m := make(map[string]Code, len(_codeToString))
	for code, s := range _codeToString {
		m[s] = code
	}
	return m
}()

// String returns the name of the code, or its integer value if unknown.
func (c Code) String() string {
	if s, ok := _codeToString[c]; ok {
		return s
	}
	return fmt.Sprintf("%d", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	s, ok := _codeToString[c]
	if !ok {
		return nil, fmt.Errorf("muscle3errors: unknown code %d", int(c))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Code) UnmarshalText(text []byte) error {
	code, ok := _stringToCode[string(text)]
	if !ok {
		return fmt.Errorf("muscle3errors: unknown code name %q", text)
	}
	*c = code
	return nil
}
