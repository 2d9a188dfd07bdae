package tcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apitransport "github.com/muscle3/muscle3-go/api/transport"
	"github.com/muscle3/muscle3-go/postoffice"
	"github.com/muscle3/muscle3-go/ref"
)

func TestServerClientRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	po := postoffice.New()
	receiver := ref.MustParse("macro.s")
	po.Deposit(receiver, &apitransport.Message{Payload: []byte("hello")})

	server, err := NewServer(po)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	assert.True(t, CanConnectTo(server.Location()))

	client, err := NewClient(server.Location())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := client.Receive(ctx, receiver)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg.Payload))
}

func TestClientRejectsForeignLocation(t *testing.T) {
	_, err := NewClient("inprocess:1")
	assert.Error(t, err)
}

func TestServerStopReturnsPromptlyWithBlockedHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	po := postoffice.New()
	server, err := NewServer(po)
	require.NoError(t, err)
	require.NoError(t, server.Start())

	client, err := NewClient(server.Location())
	require.NoError(t, err)
	defer client.Close()

	// No message is ever deposited for this receiver, so the server's
	// handler goroutine blocks in PostOffice.GetMessage until Stop cancels
	// its context.
	clientDone := make(chan struct{})
	go func() {
		defer close(clientDone)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = client.Receive(ctx, ref.MustParse("macro.s"))
	}()

	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, server.Stop())
	assert.Less(t, time.Since(start), shutdownDrainTimeout)

	<-clientDone
}

func TestServerStopClosesListener(t *testing.T) {
	defer goleak.VerifyNone(t)

	po := postoffice.New()
	server, err := NewServer(po)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	require.NoError(t, server.Stop())

	_, err = NewClient(server.Location())
	assert.Error(t, err)
}
