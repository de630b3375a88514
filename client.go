package main

import (
	"bufio"
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog"
)

// APIError carries the server's message for a semantic ERROR response.
// It is not retryable: the command reached the server and was rejected.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}

// Client is a framed request/response client over one persistent socket.
// Network failures close the socket and are retried with full-jitter
// backoff; the next attempt reconnects.
type Client struct {
	host string
	port int

	conn   net.Conn
	reader *bufio.Reader

	maxRetries int
	minDelayMs int
	capMs      int

	log zerolog.Logger
}

func NewClient(host string, port int, log zerolog.Logger) *Client {
	return &Client{
		host:       host,
		port:       port,
		maxRetries: DefaultMaxRetries,
		minDelayMs: DefaultMinDelayMs,
		capMs:      DefaultCapMs,
		log:        log,
	}
}

// SetMaxRetries overrides the retry budget for every subsequent command.
func (c *Client) SetMaxRetries(n int) {
	c.maxRetries = n
}

// Connect dials the server if no socket exists yet. Calling it on a
// connected client is a no-op.
func (c *Client) Connect() error {
	if c.conn != nil {
		return nil
	}

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", c.host, c.port))
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Close drops the socket; the next command reconnects.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// ExecuteCommand encodes a command, writes it and reads the response.
// Transport failures are retried up to the client's budget with
// full-jitter backoff, reconnecting each time; exhaustion surfaces a
// NoRetryError. A well-formed ERROR response is returned, not retried.
func (c *Client) ExecuteCommand(cmd Message) (*Response, error) {
	header, payload, err := EncodeMessage(cmd)
	if err != nil {
		return nil, err
	}

	var resp *Response
	err = withBackoff(c.log, c.maxRetries, c.minDelayMs, c.capMs, func() error {
		r, err := c.roundTrip(header, payload)
		if err != nil {
			// Whatever the socket was doing, it is not reusable now.
			c.Close()
			return &RetryableError{Cause: err}
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// roundTrip performs one attempt: connect if needed, send both frames,
// read the response frame.
func (c *Client) roundTrip(header, payload []byte) (*Response, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	if _, err := c.conn.Write(header); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(payload); err != nil {
		return nil, err
	}

	return c.receiveResponse()
}

// receiveResponse reads exactly one framed response from the socket.
func (c *Client) receiveResponse() (*Response, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := io.ReadFull(c.reader, headerBytes); err != nil {
		return nil, err
	}

	header, err := DecodeHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	if header.MessageType != MsgResponse {
		return nil, fmt.Errorf("%w: expected a response, got type %d", ErrUnknownMessageType, header.MessageType)
	}

	data := make([]byte, header.MessageSize)
	if _, err := io.ReadFull(c.reader, data); err != nil {
		return nil, err
	}

	return decodeResponse(data)
}

// Get fetches the values for keys. Missing keys are absent from the
// result; requesting only missing keys yields an empty map.
func (c *Client) Get(keys []string) (map[string][]byte, error) {
	resp, err := c.ExecuteCommand(&GetCommand{Keys: keys})
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusOK {
		return nil, &APIError{Message: resp.Message}
	}

	result := make(map[string][]byte, len(resp.KVList))
	for _, kv := range resp.KVList {
		result[kv.Key] = kv.Value
	}
	return result, nil
}

// Set upserts the pairs in order and returns the keys the server wrote.
func (c *Client) Set(kvs []KeyValue) ([]string, error) {
	resp, err := c.ExecuteCommand(&SetCommand{KeyValues: kvs})
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusOK {
		return nil, &APIError{Message: resp.Message}
	}
	return resp.KeyList, nil
}

// Delete removes keys and returns the ones actually removed.
func (c *Client) Delete(keys []string) ([]string, error) {
	resp, err := c.ExecuteCommand(&DeleteCommand{Keys: keys})
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusOK {
		return nil, &APIError{Message: resp.Message}
	}
	return resp.KeyList, nil
}

// Metrics fetches the counters selected by cmd.
func (c *Client) Metrics(cmd MetricsCommand) (*MetricsResponse, error) {
	resp, err := c.ExecuteCommand(&cmd)
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusOK {
		return nil, &APIError{Message: resp.Message}
	}
	return resp.Metrics, nil
}

// AllMetrics is Metrics with every selector on.
func (c *Client) AllMetrics() (*MetricsResponse, error) {
	return c.Metrics(MetricsCommand{
		KeyCount:               true,
		TotalStoreContentsSize: true,
		KeysReadCount:          true,
		KeysUpdatedCount:       true,
		KeysDeletedCount:       true,
	})
}
