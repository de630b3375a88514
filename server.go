package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
)

func NewMemKVServer(config *Config, log zerolog.Logger) *MemKVServer {
	return &MemKVServer{
		store:   NewStore(),
		metrics: NewServerMetrics(),
		pool:    NewWorkerPool(config.WorkerCount),
		bufPool: NewBufferPool(),
		config:  config,
		log:     log,
	}
}

// Start binds the listener and blocks in the accept loop until Stop is
// called.
func (s *MemKVServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Listen binds the configured address. Port 0 picks an ephemeral port,
// readable from Addr afterwards.
func (s *MemKVServer) Listen() error {
	var err error

	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.listener, err = net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.log.Info().Str("address", s.listener.Addr().String()).Int("workers", s.config.WorkerCount).Msg("memkv server started")
	return nil
}

// Serve accepts connections until the termination flag is set.
func (s *MemKVServer) Serve() error {
	for !s.terminated.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.terminated.Load() {
				break
			}
			s.log.Error().Err(err).Msg("accept error")
			continue
		}

		s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
		go s.handleConnection(conn)
	}

	return nil
}

// Addr reports the listener address, useful when Port was 0.
func (s *MemKVServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop sets the termination flag, closes the listener and drains the
// worker pool. Per-connection loops observe the flag between commands.
func (s *MemKVServer) Stop() {
	if !s.terminated.CompareAndSwap(false, true) {
		return
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.pool.Shutdown()
	s.log.Info().Msg("memkv server stopped")
}

// handleConnection runs the per-connection pipeline: read a framed
// command, hand it to the worker pool, write the framed response. The
// goroutine only ever does I/O; decoding and store access happen on
// workers.
func (s *MemKVServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	remote := conn.RemoteAddr().String()

	for !s.terminated.Load() {
		if s.config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		wrapper, err := s.readMessage(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug().Str("remote", remote).Msg("client disconnected")
			} else {
				s.log.Error().Err(err).Str("remote", remote).Msg("read error")
			}
			return
		}

		response := <-s.pool.Submit(func() *Response {
			return s.unwrapAndExecute(wrapper)
		})
		s.bufPool.Put(wrapper.Data)

		if s.config.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		}

		if err := s.writeResponse(writer, response); err != nil {
			s.log.Error().Err(err).Str("remote", remote).Msg("write error")
			return
		}
	}
}

// readMessage reads one framed message: exactly HeaderSize bytes, then
// exactly the payload length the header declares. A clean EOF on the
// header boundary is a client disconnect; a short payload read is an
// abnormal close.
func (s *MemKVServer) readMessage(reader *bufio.Reader) (MessageWrapper, error) {
	headerBytes := s.bufPool.Get(HeaderSize)
	defer s.bufPool.Put(headerBytes)

	if _, err := io.ReadFull(reader, headerBytes); err != nil {
		// A connection dropped on the header boundary, even mid-header,
		// is a client disconnect.
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return MessageWrapper{}, io.EOF
		}
		return MessageWrapper{}, err
	}

	header, err := DecodeHeader(headerBytes)
	if err != nil {
		return MessageWrapper{}, err
	}

	data := s.bufPool.Get(int(header.MessageSize))
	if _, err := io.ReadFull(reader, data); err != nil {
		return MessageWrapper{}, fmt.Errorf("short payload read: %w", err)
	}

	return MessageWrapper{Header: header, Data: data}, nil
}

// writeResponse frames and flushes a response: header first, then payload.
func (s *MemKVServer) writeResponse(writer *bufio.Writer, response *Response) error {
	header, payload, err := EncodeMessage(response)
	if err != nil {
		return err
	}

	if _, err := writer.Write(header); err != nil {
		return err
	}
	if _, err := writer.Write(payload); err != nil {
		return err
	}
	return writer.Flush()
}
