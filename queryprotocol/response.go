package queryprotocol

import (
	"fmt"
)

// Result status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Result is the data a successful (or partially successful) command
// produced.
type Result struct {
	Status string   `json:"status"`
	Data   Response `json:"data"`
	Raw    string   `json:"raw"` // The data line, or the terminator line when no data arrived
}

// ErrorInfo is a protocol-level failure reported by a nonzero terminator id.
// It is local to the one command that produced it.
type ErrorInfo struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ErrorID int64  `json:"error_id"`
}

// Error implements the error interface.
func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("server error %d: %s", e.ErrorID, e.Message)
}

// newErrorInfo creates an ErrorInfo for the given terminator id and message.
func newErrorInfo(id int64, message string) *ErrorInfo {
	return &ErrorInfo{Status: StatusError, Message: message, ErrorID: id}
}

// RequestDescriptor describes the command a completion belongs to.
type RequestDescriptor struct {
	Name    string   `json:"cmd"`
	Options []string `json:"options"`
	Params  Params   `json:"params"`
	Raw     string   `json:"raw"`
}

// Completion is delivered once per command, to its callback or to the
// subscribers of its command name.
//
// Err is nil on success, an *ErrorInfo for a protocol error, or a
// *ConnectionError when the command was abandoned. Result may be set even
// when Err is non-nil: data seen before an error terminator is kept.
type Completion struct {
	Err     error
	Result  *Result
	Request RequestDescriptor
}

// OK reports whether the command succeeded.
func (c Completion) OK() bool {
	return c.Err == nil
}

// Data returns the parsed result data, or a null response.
func (c Completion) Data() Response {
	if c.Result == nil {
		return Response{}
	}
	return c.Result.Data
}

// Notification is an unsolicited event pushed by the server.
type Notification struct {
	Event string   `json:"event"`
	Data  Response `json:"data"`
	Raw   string   `json:"raw"`
}

// ConnectionEventType names a connection-level signal.
type ConnectionEventType string

const (
	// EventConnect is emitted when a transport is attached.
	EventConnect ConnectionEventType = "connect"
	// EventReady is emitted once the banner has been consumed.
	EventReady ConnectionEventType = "ready"
	// EventEnd is emitted when the server closes its side of the stream.
	EventEnd ConnectionEventType = "end"
	// EventClose is emitted when the transport is gone, for any reason.
	EventClose ConnectionEventType = "close"
	// EventError is emitted on a transport failure.
	EventError ConnectionEventType = "error"
)

// ConnectionEvent is a connection-level signal. For end, close and error
// events Pending holds a snapshot of the commands still queued and InFlight
// the command awaiting its terminator, if any.
type ConnectionEvent struct {
	Type     ConnectionEventType
	Err      error
	Pending  []*PendingCommand
	InFlight *PendingCommand
}
