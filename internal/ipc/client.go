package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/displaykit/hwcplan/internal/planner"
	"github.com/displaykit/hwcplan/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	req := &Request{
		Command: CommandGetStatus,
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return nil, err
	}

	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status data: %w", err)
	}

	return &status, nil
}

// GetDisplays retrieves the attached displays
func (c *Client) GetDisplays() (*DisplaysData, error) {
	req := &Request{
		Command: CommandGetDisplays,
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return nil, err
	}

	var data DisplaysData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse displays data: %w", err)
	}

	return &data, nil
}

// Dump retrieves the full device snapshot including the last plans
func (c *Client) Dump() (*planner.Snapshot, error) {
	req := &Request{
		Command: CommandDump,
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return nil, err
	}

	var snap planner.Snapshot
	if err := json.Unmarshal(resp.Data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	return &snap, nil
}

// Invalidate asks the daemon to plan a fresh frame
func (c *Client) Invalidate() error {
	req := &Request{
		Command: CommandInvalidate,
	}

	_, err := c.sendRequest(req)
	return err
}

// ForceSoftware pushes composition to software for the next n frames
func (c *Client) ForceSoftware(frames int) error {
	payload, err := json.Marshal(ForceSoftwarePayload{Frames: frames})
	if err != nil {
		return fmt.Errorf("failed to marshal force payload: %w", err)
	}

	req := &Request{
		Command: CommandForceSoftware,
		Payload: payload,
	}

	_, err = c.sendRequest(req)
	return err
}

// SetMirror makes displayID clone sourceID; a negative source stops cloning
func (c *Client) SetMirror(displayID, sourceID int) error {
	payload, err := json.Marshal(SetMirrorPayload{DisplayID: displayID, SourceID: sourceID})
	if err != nil {
		return fmt.Errorf("failed to marshal mirror payload: %w", err)
	}

	req := &Request{
		Command: CommandSetMirror,
		Payload: payload,
	}

	_, err = c.sendRequest(req)
	return err
}

// SetBlank blanks or unblanks a display
func (c *Client) SetBlank(displayID int, blanked bool) error {
	payload, err := json.Marshal(SetBlankPayload{DisplayID: displayID, Blanked: blanked})
	if err != nil {
		return fmt.Errorf("failed to marshal blank payload: %w", err)
	}

	req := &Request{
		Command: CommandSetBlank,
		Payload: payload,
	}

	_, err = c.sendRequest(req)
	return err
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
