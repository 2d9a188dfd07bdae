package muscle3errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsRoundTripCode(t *testing.T) {
	tests := []struct {
		name    string
		build   func(string, ...interface{}) error
		code    Code
		checker func(error) bool
	}{
		{"invalid-port-name", InvalidPortNameErrorf, CodeInvalidPortName, IsInvalidPortName},
		{"port-not-connected", PortNotConnectedErrorf, CodePortNotConnected, IsPortNotConnected},
		{"no-matching-transport", NoMatchingTransportErrorf, CodeNoMatchingTransport, IsNoMatchingTransport},
		{"cross-universe", CrossUniverseErrorf, CodeCrossUniverse, IsCrossUniverse},
		{"transport-timeout", TransportTimeoutErrorf, CodeTransportTimeout, IsTransportTimeout},
		{"transport-error", TransportErrorf, CodeTransportError, IsTransportError},
		{"manager-unreachable", ManagerUnreachableErrorf, CodeManagerUnreachable, IsManagerUnreachable},
		{"protocol-mismatch", ProtocolMismatchErrorf, CodeProtocolMismatch, IsProtocolMismatch},
		{"parameter-not-found", ParameterNotFoundErrorf, CodeParameterNotFound, IsParameterNotFound},
		{"type-mismatch", TypeMismatchErrorf, CodeTypeMismatch, IsTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build("bad thing: %s", "reason")
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.True(t, tt.checker(err))
			assert.True(t, IsMuscle3Error(err))
			assert.Contains(t, err.Error(), tt.code.String())
			assert.Contains(t, err.Error(), "reason")
		})
	}
}

func TestErrorCodeOnForeignErrors(t *testing.T) {
	assert.Equal(t, CodeOK, ErrorCode(nil))
	assert.Equal(t, CodeOK, ErrorCode(errors.New("plain")))
	assert.False(t, IsMuscle3Error(errors.New("plain")))
	assert.False(t, IsMuscle3Error(nil))
}

func TestCodeTextRoundTrip(t *testing.T) {
	for code := range _codeToString {
		text, err := code.MarshalText()
		require.NoError(t, err)
		var got Code
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, code, got)
	}
}

func TestCodeTextUnknown(t *testing.T) {
	var c Code
	assert.Error(t, c.UnmarshalText([]byte("not-a-real-code")))
}
