package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/displaykit/hwcplan/internal/planner"
	"github.com/displaykit/hwcplan/internal/runtimepath"
)

// Backend is the daemon surface the IPC server drives.
type Backend interface {
	Snapshot() planner.Snapshot
	SetBlanked(id int, blanked bool)
	SetMirror(id, srcID int)
	ForceSoftware(frames int)
	Invalidate()
	FramesPrepared() int64
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	backend      Backend
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(backend Backend) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		backend:    backend,
		startTime:  time.Now(),
	}, nil
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	// Accept connections
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			log.Printf("IPC accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		log.Printf("IPC read error: %v", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandGetDisplays:
		return s.handleGetDisplays()
	case CommandDump:
		return s.handleDump()
	case CommandInvalidate:
		return s.handleInvalidate()
	case CommandForceSoftware:
		return s.handleForceSoftware(req.Payload)
	case CommandSetMirror:
		return s.handleSetMirror(req.Payload)
	case CommandSetBlank:
		return s.handleSetBlank(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

// handleGetStatus returns current daemon status
func (s *Server) handleGetStatus() *Response {
	snap := s.backend.Snapshot()

	mirrored := 0
	for _, d := range snap.Displays {
		if d.MirrorOf >= 0 {
			mirrored++
		}
	}

	status := StatusData{
		Displays:       len(snap.Displays),
		Mirrored:       mirrored,
		ForceSoftware:  snap.ForceSoftware,
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		DaemonRunning:  true,
		FramesPrepared: s.backend.FramesPrepared(),
	}

	resp, _ := NewOKResponse(status)
	return resp
}

// handleGetDisplays returns information about all attached displays
func (s *Server) handleGetDisplays() *Response {
	snap := s.backend.Snapshot()

	infos := make([]DisplayInfo, len(snap.Displays))
	for i, d := range snap.Displays {
		infos[i] = DisplayInfo{
			ID:        d.ID,
			Name:      d.Name,
			Role:      d.Role,
			Kind:      d.Kind,
			Width:     d.Config.Width,
			Height:    d.Config.Height,
			RefreshHz: d.Config.RefreshHz,
			Blanked:   d.Blanked,
			MirrorOf:  d.MirrorOf,
		}
	}

	resp, _ := NewOKResponse(DisplaysData{Displays: infos})
	return resp
}

// handleDump returns the full device snapshot including the last plans
func (s *Server) handleDump() *Response {
	resp, err := NewOKResponse(s.backend.Snapshot())
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to marshal snapshot: %v", err))
	}
	return resp
}

// handleInvalidate asks the daemon to plan a fresh frame
func (s *Server) handleInvalidate() *Response {
	log.Println("IPC: Received INVALIDATE command")
	s.backend.Invalidate()

	resp, _ := NewOKResponse(nil)
	return resp
}

// handleForceSoftware pushes composition to software for the next frames
func (s *Server) handleForceSoftware(payload json.RawMessage) *Response {
	var req ForceSoftwarePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid force payload: %v", err))
	}
	if req.Frames < 0 {
		return NewErrorResponse("frames must not be negative")
	}

	log.Printf("IPC: Forcing software composition for %d frames", req.Frames)
	s.backend.ForceSoftware(req.Frames)
	s.backend.Invalidate()

	resp, _ := NewOKResponse(nil)
	return resp
}

// handleSetMirror wires or unwires display cloning
func (s *Server) handleSetMirror(payload json.RawMessage) *Response {
	var req SetMirrorPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid mirror payload: %v", err))
	}
	if req.SourceID == req.DisplayID {
		return NewErrorResponse("a display cannot mirror itself")
	}

	s.backend.SetMirror(req.DisplayID, req.SourceID)

	resp, _ := NewOKResponse(nil)
	return resp
}

// handleSetBlank blanks or unblanks one display
func (s *Server) handleSetBlank(payload json.RawMessage) *Response {
	var req SetBlankPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid blank payload: %v", err))
	}

	s.backend.SetBlanked(req.DisplayID, req.Blanked)

	resp, _ := NewOKResponse(nil)
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
