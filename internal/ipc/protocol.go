package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandGetStatus     CommandType = "GET_STATUS"
	CommandGetDisplays   CommandType = "GET_DISPLAYS"
	CommandDump          CommandType = "DUMP"
	CommandInvalidate    CommandType = "INVALIDATE"
	CommandForceSoftware CommandType = "FORCE_SOFTWARE"
	CommandSetMirror     CommandType = "SET_MIRROR"
	CommandSetBlank      CommandType = "SET_BLANK"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Displays       int   `json:"displays"`
	Mirrored       int   `json:"mirrored"`
	ForceSoftware  int   `json:"force_software"`
	UptimeSeconds  int64 `json:"uptime_seconds"`
	DaemonRunning  bool  `json:"daemon_running"`
	FramesPrepared int64 `json:"frames_prepared"`
}

// DisplayInfo represents one attached display
type DisplayInfo struct {
	ID        int    `json:"id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	Kind      string `json:"kind"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	RefreshHz int    `json:"refresh_hz"`
	Blanked   bool   `json:"blanked,omitempty"`
	MirrorOf  int    `json:"mirror_of"`
}

// DisplaysData represents the data returned by GET_DISPLAYS
type DisplaysData struct {
	Displays []DisplayInfo `json:"displays"`
}

// ForceSoftwarePayload represents the payload for FORCE_SOFTWARE
type ForceSoftwarePayload struct {
	Frames int `json:"frames"`
}

// SetMirrorPayload represents the payload for SET_MIRROR. A negative
// SourceID stops mirroring.
type SetMirrorPayload struct {
	DisplayID int `json:"display_id"`
	SourceID  int `json:"source_id"`
}

// SetBlankPayload represents the payload for SET_BLANK
type SetBlankPayload struct {
	DisplayID int  `json:"display_id"`
	Blanked   bool `json:"blanked"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
