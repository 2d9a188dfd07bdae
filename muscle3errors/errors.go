// Package muscle3errors implements the communicator's error taxonomy
// (spec.md §7): a small set of semantic error kinds, each carrying a Code,
// mirrored on go.uber.org/yarpc/yarpcerrors' status-code error type.
package muscle3errors

import (
	"bytes"
	"fmt"
)

type muscle3Error struct {
	Code    Code
	Message string
}

func (e *muscle3Error) Error() string {
	buf := bytes.NewBuffer(nil)
	_, _ = buf.WriteString("code:")
	_, _ = buf.WriteString(e.Code.String())
	if e.Message != "" {
		_, _ = buf.WriteString(" message:")
		_, _ = buf.WriteString(e.Message)
	}
	return buf.String()
}

func newf(code Code, format string, args ...interface{}) error {
	return &muscle3Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the Code for err, or CodeOK if err is nil or not one of
// ours.
func ErrorCode(err error) Code {
	if err == nil {
		return CodeOK
	}
	e, ok := err.(*muscle3Error)
	if !ok {
		return CodeOK
	}
	return e.Code
}

// IsMuscle3Error reports whether err is a non-nil error raised by this
// package.
func IsMuscle3Error(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*muscle3Error)
	return ok
}

// InvalidPortNameErrorf builds a CodeInvalidPortName error.
func InvalidPortNameErrorf(format string, args ...interface{}) error {
	return newf(CodeInvalidPortName, format, args...)
}

// PortNotConnectedErrorf builds a CodePortNotConnected error.
func PortNotConnectedErrorf(format string, args ...interface{}) error {
	return newf(CodePortNotConnected, format, args...)
}

// NoMatchingTransportErrorf builds a CodeNoMatchingTransport error.
func NoMatchingTransportErrorf(format string, args ...interface{}) error {
	return newf(CodeNoMatchingTransport, format, args...)
}

// CrossUniverseErrorf builds a CodeCrossUniverse error.
func CrossUniverseErrorf(format string, args ...interface{}) error {
	return newf(CodeCrossUniverse, format, args...)
}

// TransportTimeoutErrorf builds a CodeTransportTimeout error.
func TransportTimeoutErrorf(format string, args ...interface{}) error {
	return newf(CodeTransportTimeout, format, args...)
}

// TransportErrorf builds a CodeTransportError error.
func TransportErrorf(format string, args ...interface{}) error {
	return newf(CodeTransportError, format, args...)
}

// ManagerUnreachableErrorf builds a CodeManagerUnreachable error.
func ManagerUnreachableErrorf(format string, args ...interface{}) error {
	return newf(CodeManagerUnreachable, format, args...)
}

// ProtocolMismatchErrorf builds a CodeProtocolMismatch error.
func ProtocolMismatchErrorf(format string, args ...interface{}) error {
	return newf(CodeProtocolMismatch, format, args...)
}

// ParameterNotFoundErrorf builds a CodeParameterNotFound error.
func ParameterNotFoundErrorf(format string, args ...interface{}) error {
	return newf(CodeParameterNotFound, format, args...)
}

// TypeMismatchErrorf builds a CodeTypeMismatch error.
func TypeMismatchErrorf(format string, args ...interface{}) error {
	return newf(CodeTypeMismatch, format, args...)
}

// IsInvalidPortName reports whether err is a CodeInvalidPortName error.
func IsInvalidPortName(err error) bool { return ErrorCode(err) == CodeInvalidPortName }

// IsPortNotConnected reports whether err is a CodePortNotConnected error.
func IsPortNotConnected(err error) bool { return ErrorCode(err) == CodePortNotConnected }

// IsNoMatchingTransport reports whether err is a CodeNoMatchingTransport error.
func IsNoMatchingTransport(err error) bool { return ErrorCode(err) == CodeNoMatchingTransport }

// IsCrossUniverse reports whether err is a CodeCrossUniverse error.
func IsCrossUniverse(err error) bool { return ErrorCode(err) == CodeCrossUniverse }

// IsTransportTimeout reports whether err is a CodeTransportTimeout error.
func IsTransportTimeout(err error) bool { return ErrorCode(err) == CodeTransportTimeout }

// IsTransportError reports whether err is a CodeTransportError error.
func IsTransportError(err error) bool { return ErrorCode(err) == CodeTransportError }

// IsManagerUnreachable reports whether err is a CodeManagerUnreachable error.
func IsManagerUnreachable(err error) bool { return ErrorCode(err) == CodeManagerUnreachable }

// IsProtocolMismatch reports whether err is a CodeProtocolMismatch error.
func IsProtocolMismatch(err error) bool { return ErrorCode(err) == CodeProtocolMismatch }

// IsParameterNotFound reports whether err is a CodeParameterNotFound error.
func IsParameterNotFound(err error) bool { return ErrorCode(err) == CodeParameterNotFound }

// IsTypeMismatch reports whether err is a CodeTypeMismatch error.
func IsTypeMismatch(err error) bool { return ErrorCode(err) == CodeTypeMismatch }
