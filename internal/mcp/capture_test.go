package mcp

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
)

func callTool(t *testing.T, socketPath, tool string, params interface{}) {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	req := rpcRequest{Tool: tool, Params: raw}
	out, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	out = append(out, '\n')
	if _, err := conn.Write(out); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp rpcResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK {
		t.Fatalf("tool call failed: %s", resp.Error)
	}
}

func TestCaptureServer_SavePRD(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "capture.sock")
	srv, err := New(socketPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()
	go srv.Serve()
	time.Sleep(10 * time.Millisecond)

	prd := item.PRD{Stories: []item.Story{{ID: "US-1", Title: "A", AcceptanceCriteria: []string{"a", "b"}, Priority: 1}}}
	callTool(t, socketPath, ToolSavePRD, prd)

	got, ok := srv.PRD()
	if !ok {
		t.Fatal("expected a captured PRD")
	}
	if len(got.Stories) != 1 || got.Stories[0].ID != "US-1" {
		t.Fatalf("unexpected captured PRD: %+v", got)
	}
	if !srv.WasCalled(ToolSavePRD) {
		t.Fatal("expected WasCalled(save_prd) to be true")
	}
}

func TestCaptureServer_StoryStatusUpdates(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "capture.sock")
	srv, err := New(socketPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()
	go srv.Serve()
	time.Sleep(10 * time.Millisecond)

	callTool(t, socketPath, ToolUpdateStoryStatus, StoryStatusUpdate{StoryID: "US-1", Status: item.StoryDone})
	callTool(t, socketPath, ToolUpdateStoryStatus, StoryStatusUpdate{StoryID: "US-2", Status: item.StoryDone})

	updates := srv.StoryUpdates()
	if len(updates) != 2 {
		t.Fatalf("expected 2 captured updates, got %d", len(updates))
	}
}

func TestCaptureServer_UnknownToolErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "capture.sock")
	srv, err := New(socketPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()
	go srv.Serve()
	time.Sleep(10 * time.Millisecond)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	req := rpcRequest{Tool: "nonsense", Params: json.RawMessage(`{}`)}
	out, _ := json.Marshal(req)
	out = append(out, '\n')
	conn.Write(out)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp rpcResponse
	json.Unmarshal([]byte(line), &resp)
	if resp.OK {
		t.Fatal("expected unknown tool call to fail")
	}
}
