package main

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire protocol errors
var (
	// ErrInvalidHeader reports a header that is not exactly HeaderSize bytes.
	ErrInvalidHeader = errors.New("invalid message header")

	// ErrUnknownMessageType reports a header type tag outside the known set.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrMalformedPayload reports payload bytes that do not decode as the
	// shape the header promised.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidMessageType reports an attempt to encode a value that is
	// not one of the five wire messages.
	ErrInvalidMessageType = errors.New("invalid message type")
)

// EncodeHeader packs a message type and payload size into the fixed
// 6-byte big-endian wire header.
func EncodeHeader(msgType uint16, size uint32) []byte {
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(header[0:2], msgType)
	binary.BigEndian.PutUint32(header[2:6], size)
	return header
}

// DecodeHeader unpacks a 6-byte big-endian wire header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHeader, len(b), HeaderSize)
	}

	msgType := binary.BigEndian.Uint16(b[0:2])
	if msgType < MsgGetCommand || msgType > MsgResponse {
		return Header{}, fmt.Errorf("%w: %d", ErrUnknownMessageType, msgType)
	}

	return Header{
		MessageType: msgType,
		MessageSize: binary.BigEndian.Uint32(b[2:6]),
	}, nil
}

// EncodeMessage serializes a message into its header and payload bytes.
// The header is always exactly HeaderSize bytes and declares the payload
// length.
func EncodeMessage(msg Message) (header []byte, payload []byte, err error) {
	switch m := msg.(type) {
	case *GetCommand:
		payload = encodeKeyList(m.Keys)
	case *SetCommand:
		payload = encodeKeyValueList(m.KeyValues)
	case *DeleteCommand:
		payload = encodeKeyList(m.Keys)
	case *MetricsCommand:
		payload = encodeMetricsCommand(m)
	case *Response:
		payload, err = encodeResponse(m)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("%w: %T", ErrInvalidMessageType, msg)
	}

	return EncodeHeader(msg.messageType(), uint32(len(payload))), payload, nil
}

// payloadDecoders maps a header type tag to the payload parser for that
// message shape.
var payloadDecoders = map[uint16]func([]byte) (Message, error){
	MsgGetCommand: func(data []byte) (Message, error) {
		keys, err := decodeKeyList(data)
		if err != nil {
			return nil, err
		}
		return &GetCommand{Keys: keys}, nil
	},
	MsgSetCommand: func(data []byte) (Message, error) {
		kvs, err := decodeKeyValueList(data)
		if err != nil {
			return nil, err
		}
		return &SetCommand{KeyValues: kvs}, nil
	},
	MsgDeleteCommand: func(data []byte) (Message, error) {
		keys, err := decodeKeyList(data)
		if err != nil {
			return nil, err
		}
		return &DeleteCommand{Keys: keys}, nil
	},
	MsgMetricsCommand: func(data []byte) (Message, error) {
		return decodeMetricsCommand(data)
	},
	MsgResponse: func(data []byte) (Message, error) {
		return decodeResponse(data)
	},
}

// DecodeMessage parses payload bytes into the message shape named by the
// header's type tag.
func DecodeMessage(h Header, data []byte) (Message, error) {
	decode, ok := payloadDecoders[h.MessageType]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, h.MessageType)
	}
	return decode(data)
}
