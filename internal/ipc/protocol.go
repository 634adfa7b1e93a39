package ipc

import (
	"encoding/json"
	"fmt"
)

// Commands understood by the daemon.
const (
	CmdStatus = "status"
	CmdPause  = "pause"
	CmdResume = "resume"
	CmdToggle = "toggle"
	CmdLast   = "last"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a command sent from the CLI to the daemon.
type Request struct {
	Command string `json:"command"`
}

// Response represents a reply from the daemon to the CLI.
type Response struct {
	Status  string          `json:"status"`            // "ok" or "error"
	Message string          `json:"message,omitempty"` // Human-readable message or error
	Data    json.RawMessage `json:"data,omitempty"`    // Command-specific payload
}

// OK builds a successful response carrying data.
func OK(message string, data any) *Response {
	resp := &Response{Status: StatusOK, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Error(fmt.Errorf("encode response: %w", err))
		}
		resp.Data = raw
	}
	return resp
}

// Error builds a failed response.
func Error(err error) *Response {
	return &Response{Status: StatusError, Message: err.Error()}
}

// Err returns the response's error, if it is one.
func (r *Response) Err() error {
	if r.Status == StatusError {
		return fmt.Errorf("daemon: %s", r.Message)
	}
	return nil
}

// Decode unmarshals the response payload into v.
func (r *Response) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("daemon returned no data")
	}
	return json.Unmarshal(r.Data, v)
}
