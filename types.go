package main

import (
	"net"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Message type tags carried in the wire header
const (
	MsgGetCommand     uint16 = 1
	MsgSetCommand     uint16 = 2
	MsgDeleteCommand  uint16 = 3
	MsgMetricsCommand uint16 = 4
	MsgResponse       uint16 = 5
)

// HeaderSize is the fixed wire header length: a 2 byte message type
// followed by a 4 byte payload size, both big-endian.
const HeaderSize = 6

// Response status values
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Header is the decoded 6-byte prefix of every wire message.
type Header struct {
	MessageType uint16
	MessageSize uint32
}

// MessageWrapper pairs a decoded header with the raw, still-encoded
// payload bytes. The connection loop produces wrappers; payload decoding
// happens later, on a worker.
type MessageWrapper struct {
	Header Header
	Data   []byte
}

// Message is implemented by every command and by Response.
type Message interface {
	messageType() uint16
}

// KeyValue is a single key/value pair in a SET command or a GET result.
type KeyValue struct {
	Key   string
	Value []byte
}

// GetCommand requests the values for an ordered sequence of keys.
type GetCommand struct {
	Keys []string
}

// SetCommand upserts an ordered sequence of key/value pairs.
type SetCommand struct {
	KeyValues []KeyValue
}

// DeleteCommand removes an ordered sequence of keys.
type DeleteCommand struct {
	Keys []string
}

// MetricsCommand selects which server metrics to report.
type MetricsCommand struct {
	KeyCount               bool
	TotalStoreContentsSize bool
	KeysReadCount          bool
	KeysUpdatedCount       bool
	KeysDeletedCount       bool
}

// MetricsResponse carries the metric values selected by a MetricsCommand.
// Each Has* flag records whether the matching field was populated; a
// counter that has never been touched on the server stays absent.
type MetricsResponse struct {
	KeyCount               int64
	TotalStoreContentsSize int64
	KeysReadCount          int64
	KeysUpdatedCount       int64
	KeysDeletedCount       int64

	HasKeyCount               bool
	HasTotalStoreContentsSize bool
	HasKeysReadCount          bool
	HasKeysUpdatedCount       bool
	HasKeysDeletedCount       bool
}

// Response is the reply to any command. At most one of KVList, KeyList
// and Metrics is set.
type Response struct {
	Status  string
	Message string
	KVList  []KeyValue
	KeyList []string
	Metrics *MetricsResponse
}

func (*GetCommand) messageType() uint16     { return MsgGetCommand }
func (*SetCommand) messageType() uint16     { return MsgSetCommand }
func (*DeleteCommand) messageType() uint16  { return MsgDeleteCommand }
func (*MetricsCommand) messageType() uint16 { return MsgMetricsCommand }
func (*Response) messageType() uint16       { return MsgResponse }

// MemKVServer is the main server structure
type MemKVServer struct {
	store      *Store
	metrics    *ServerMetrics
	pool       *WorkerPool
	bufPool    *BufferPool
	listener   net.Listener
	terminated atomic.Bool
	config     *Config
	log        zerolog.Logger
}
