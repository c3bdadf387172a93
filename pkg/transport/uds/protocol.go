package uds

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
)

var reqCounter atomic.Uint64

// MsgType identifies the kind of message.
type MsgType string

const (
	MsgTypeReq MsgType = "req"
	MsgTypeRes MsgType = "res"
	MsgTypeEvt MsgType = "evt"
)

// Message is the NDJSON envelope for all communication.
type Message struct {
	Type   MsgType         `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// UnmarshalData decodes the message payload into v.
func (m Message) UnmarshalData(v any) error {
	if len(m.Data) == 0 {
		return errors.New("empty message data")
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", m.Method, err)
	}
	return nil
}

func newMessage(typ MsgType, id, method string, data any) (Message, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Message{}, err
		}
		raw = b
	}
	return Message{Type: typ, ID: id, Method: method, Data: raw}, nil
}

// NewRequest creates a new request message with a unique ID.
func NewRequest(method string, data any) (Message, error) {
	return newMessage(MsgTypeReq, fmt.Sprintf("req-%d", reqCounter.Add(1)), method, data)
}

// NewResponse creates a response to a request.
func NewResponse(reqID, method string, data any) (Message, error) {
	return newMessage(MsgTypeRes, reqID, method, data)
}

// NewErrorResponse creates an error response.
func NewErrorResponse(reqID, method, errMsg string) Message {
	return Message{
		Type:   MsgTypeRes,
		ID:     reqID,
		Method: method,
		Error:  errMsg,
	}
}

// NewEvent creates a server-pushed event.
func NewEvent(method string, data any) (Message, error) {
	return newMessage(MsgTypeEvt, fmt.Sprintf("evt-%d", reqCounter.Add(1)), method, data)
}

// Methods
const (
	MethodPing         = "Ping"
	MethodListPlugins  = "ListPlugins"
	MethodLoadPlugin   = "LoadPlugin"
	MethodUnloadPlugin = "UnloadPlugin"
	MethodStatus       = "Status"
	MethodDispatch     = "Dispatch"

	EventReportPublished = "reports.published"
)

// PingResponse is the response to a Ping request.
type PingResponse struct {
	Pong    bool   `json:"pong"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// PluginRequest names a plugin for LoadPlugin, UnloadPlugin and Status.
type PluginRequest struct {
	Plugin string `json:"plugin"`
}

// StatusResponse carries a plugin's rendered status.
type StatusResponse struct {
	Plugin string `json:"plugin"`
	Status string `json:"status"`
}

// UnloadResponse carries the plugin's unload token.
type UnloadResponse struct {
	Token string `json:"token"`
}

// DispatchRequest is the payload for a Dispatch request.
type DispatchRequest struct {
	Plugin string `json:"plugin"`
	Action string `json:"action"`
	Data   string `json:"data"`
}

// DispatchResponse reports the fixed acknowledgement and what actually happened.
type DispatchResponse struct {
	Ack     string `json:"ack"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// ReportEvent is pushed to every client when a report is published.
type ReportEvent struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}
