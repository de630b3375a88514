package main

import (
	"bufio"
	"io"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveOneCommand reads a single framed command off conn and answers it
// with the canned response.
func serveOneCommand(t *testing.T, conn net.Conn, resp *Response) {
	t.Helper()
	defer conn.Close()

	reader := bufio.NewReader(conn)
	headerBytes := make([]byte, HeaderSize)
	if _, err := io.ReadFull(reader, headerBytes); err != nil {
		return
	}

	header, err := DecodeHeader(headerBytes)
	if err != nil {
		return
	}

	data := make([]byte, header.MessageSize)
	if _, err := io.ReadFull(reader, data); err != nil {
		return
	}

	respHeader, payload, err := EncodeMessage(resp)
	if !assert.NoError(t, err) {
		return
	}
	conn.Write(respHeader)
	conn.Write(payload)
}

func TestClientRetriesTransportErrorThenSucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// First connection dies before answering; the second one serves.
	go func() {
		first, err := ln.Accept()
		if err != nil {
			return
		}
		first.Close()

		second, err := ln.Accept()
		if err != nil {
			return
		}
		serveOneCommand(t, second, &Response{Status: StatusOK, Message: "OK", KeyList: []string{"k"}})
	}()

	client := NewClient("127.0.0.1", ln.Addr().(*net.TCPAddr).Port, zerolog.Nop())
	defer client.Close()

	keys, err := client.Set([]KeyValue{{Key: "k", Value: []byte("v")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}

func TestClientExhaustsRetries(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Every connection is dropped without a response.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	client := NewClient("127.0.0.1", ln.Addr().(*net.TCPAddr).Port, zerolog.Nop())
	defer client.Close()
	client.SetMaxRetries(2)

	_, err = client.Get([]string{"k"})
	var noRetry *NoRetryError
	require.ErrorAs(t, err, &noRetry)
	assert.Error(t, noRetry.Cause)
}

func TestClientConnectionRefusedIsRetryable(t *testing.T) {
	// Grab a port nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := NewClient("127.0.0.1", port, zerolog.Nop())
	client.SetMaxRetries(1)

	_, err = client.Get([]string{"k"})
	var noRetry *NoRetryError
	assert.ErrorAs(t, err, &noRetry)
}

func TestClientAPIErrorOnErrorStatus(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serveOneCommand(t, conn, &Response{Status: StatusError, Message: "boom"})
	}()

	client := NewClient("127.0.0.1", ln.Addr().(*net.TCPAddr).Port, zerolog.Nop())
	defer client.Close()

	_, err = client.Get([]string{"k"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.Message)
}

func TestClientConnectIsIdempotent(t *testing.T) {
	_, port := startTestServer(t)
	client := newTestClient(t, port)

	require.NoError(t, client.Connect())
	conn := client.conn
	require.NoError(t, client.Connect())
	assert.Same(t, conn, client.conn, "second Connect must not replace the socket")
}

func TestClientReusesOneSocket(t *testing.T) {
	_, port := startTestServer(t)
	client := newTestClient(t, port)

	_, err := client.Set([]KeyValue{{Key: "a", Value: []byte("1")}})
	require.NoError(t, err)
	conn := client.conn

	_, err = client.Get([]string{"a"})
	require.NoError(t, err)
	assert.Same(t, conn, client.conn, "healthy commands must share the socket")
}
