// Package mcp implements Wreckit's structured-capture mechanism (spec
// §4.F's MCP server handle): the plan, implement, and complete phases
// must persist their output through a tool call, not a file write, so a
// phase can tell "the agent wrote the right bytes somewhere" apart from
// "the agent actually invoked the structured tool". Each phase attempt
// gets a private Unix-domain-socket JSON-RPC server; the rendered prompt
// tells the agent which socket path to call.
//
// The only available reference usage of the Model Context Protocol is a
// *client* dialing out to an external tool server over mark3labs/mcp-go's
// stdio/SSE transports — the opposite role Wreckit needs here (being the
// tool server an agent calls into). Nothing available exercises mcp-go's
// server-side API, so there is no evidenced shape to ground a server
// implementation on; rather than guess at unseen surface, this is a
// small hand-written JSON-RPC listener over a Unix socket, the same
// shape used elsewhere in this codebase for narrow internal protocols.
package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/quality"
	"github.com/mikehostetler/wreckit/internal/werr"
)

// Tool names the rendered prompt references and phaseTools (internal/
// permissions) allowlists.
const (
	ToolSavePRD           = "mcp__wreckit__save_prd"
	ToolUpdateStoryStatus = "mcp__wreckit__update_story_status"
	ToolComplete          = "mcp__wreckit__complete"
	ToolCaptureIdeas      = "mcp__wreckit__capture_ideas"
)

// rpcRequest is one JSON-RPC-ish call: {"tool": "...", "params": {...}}.
type rpcRequest struct {
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// StoryStatusUpdate is one captured update_story_status call.
type StoryStatusUpdate struct {
	StoryID string `json:"story_id"`
	Status  item.StoryStatus `json:"status"`
}

// CompletionRecord is one captured complete call.
type CompletionRecord struct {
	Merged         bool   `json:"merged"`
	MergeCommitOid string `json:"merge_commit_oid"`
}

// CaptureServer listens on a Unix socket for exactly the structured
// tool calls a phase's scope policy permits, recording them for the
// Phase Executor to read back after the agent invocation completes.
type CaptureServer struct {
	socketPath string
	ln         net.Listener

	mu             sync.Mutex
	calledTools    map[string]bool
	capturedPRD    *item.PRD
	storyUpdates   []StoryStatusUpdate
	completion     *CompletionRecord
	capturedIdeas  []quality.IdeaPayload
}

// New creates a CaptureServer bound to socketPath, which must not
// already exist (a stray socket from a crashed prior attempt should be
// removed by the caller first).
func New(socketPath string) (*CaptureServer, error) {
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, werr.Wrap(werr.GenericWreckit, "listening on mcp capture socket "+socketPath, err)
	}
	return &CaptureServer{
		socketPath:  socketPath,
		ln:          ln,
		calledTools: make(map[string]bool),
	}, nil
}

// SocketPath returns the path the rendered prompt should tell the agent
// to dial.
func (s *CaptureServer) SocketPath() string {
	return s.socketPath
}

// Serve accepts connections until the listener is closed. Intended to
// run in its own goroutine for the duration of one agent invocation.
func (s *CaptureServer) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *CaptureServer) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var req rpcRequest
		resp := rpcResponse{OK: true}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp = rpcResponse{OK: false, Error: "invalid json-rpc request: " + err.Error()}
		} else if err := s.dispatch(req); err != nil {
			resp = rpcResponse{OK: false, Error: err.Error()}
		}
		out, _ := json.Marshal(resp)
		out = append(out, '\n')
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func (s *CaptureServer) dispatch(req rpcRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calledTools[req.Tool] = true

	switch req.Tool {
	case ToolSavePRD:
		var prd item.PRD
		if err := json.Unmarshal(req.Params, &prd); err != nil {
			return fmt.Errorf("parsing save_prd params: %w", err)
		}
		s.capturedPRD = &prd
	case ToolUpdateStoryStatus:
		var upd StoryStatusUpdate
		if err := json.Unmarshal(req.Params, &upd); err != nil {
			return fmt.Errorf("parsing update_story_status params: %w", err)
		}
		s.storyUpdates = append(s.storyUpdates, upd)
	case ToolComplete:
		var rec CompletionRecord
		if err := json.Unmarshal(req.Params, &rec); err != nil {
			return fmt.Errorf("parsing complete params: %w", err)
		}
		s.completion = &rec
	case ToolCaptureIdeas:
		var ideas []quality.IdeaPayload
		if err := json.Unmarshal(req.Params, &ideas); err != nil {
			return fmt.Errorf("parsing capture_ideas params: %w", err)
		}
		s.capturedIdeas = ideas
	default:
		return fmt.Errorf("unknown structured tool: %s", req.Tool)
	}
	return nil
}

// WasCalled reports whether a given tool was invoked at least once
// during this server's lifetime.
func (s *CaptureServer) WasCalled(tool string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calledTools[tool]
}

// PRD returns the most recently captured save_prd payload, if any.
func (s *CaptureServer) PRD() (*item.PRD, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturedPRD, s.capturedPRD != nil
}

// StoryUpdates returns every captured update_story_status call, in
// call order.
func (s *CaptureServer) StoryUpdates() []StoryStatusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoryStatusUpdate, len(s.storyUpdates))
	copy(out, s.storyUpdates)
	return out
}

// Completion returns the captured complete call, if any.
func (s *CaptureServer) Completion() (*CompletionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completion, s.completion != nil
}

// Close shuts down the listener and removes the socket file.
func (s *CaptureServer) Close() error {
	err := s.ln.Close()
	_ = os.Remove(s.socketPath)
	return err
}
