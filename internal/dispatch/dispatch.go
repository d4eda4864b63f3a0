// Package dispatch implements the Agent Dispatcher (spec §4.A): runs one
// agent invocation with a prompt, an allowed-tools set, a timeout, and an
// abort handle, returning a uniform result regardless of backend.
package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mikehostetler/wreckit/internal/engine"
	"github.com/mikehostetler/wreckit/internal/werr"
)

const defaultTimeout = time.Hour

// DefaultCompletionSentinel is the substring an agent's output must
// contain to signal it has finished, when a Request does not declare
// its own CompletionSentinel. Phase prompt rendering uses the same
// constant so the instruction given to the agent always matches what
// the Dispatcher actually scans for.
const DefaultCompletionSentinel = "<promise>COMPLETE</promise>"

const defaultCompletionSentinel = DefaultCompletionSentinel

// FailureClass distinguishes the stable failure categories spec §4.A
// requires to be surfaced distinctly by the error string.
type FailureClass string

const (
	FailureNone             FailureClass = ""
	FailureAuthentication   FailureClass = "authentication_failure"
	FailureRateLimited      FailureClass = "rate_limited"
	FailureContextOverflow  FailureClass = "context_overflow"
	FailureNetwork          FailureClass = "network_error"
	FailureBackendUnavailable FailureClass = "backend_unavailable"
	FailureGeneric          FailureClass = "generic"
)

// StreamHandler receives incremental stdout/stderr chunks as the agent
// runs. Either field may be nil to ignore that stream.
type StreamHandler struct {
	OnStdout func(chunk string)
	OnStderr func(chunk string)
}

// ToolEventHandler receives structured tool-call events, when the
// backend is able to emit them (library-call backends; subprocess
// backends typically cannot and leave this unused).
type ToolEventHandler func(toolName string, payload string)

// Request is one agent invocation.
type Request struct {
	WorkDir          string
	Prompt           string
	AllowedTools     []string // nil = unrestricted
	Timeout          time.Duration
	DryRun           bool
	CompletionSentinel string // defaults to defaultCompletionSentinel
	// Env supplies extra environment variables for a subprocess backend,
	// e.g. the MCP capture socket a structured-tool phase must dial.
	Env              map[string]string
	Streams          StreamHandler
	OnToolEvent      ToolEventHandler
}

// Result is the uniform outcome of a dispatch, regardless of backend.
type Result struct {
	Success           bool
	Output            string
	ExitCode          int
	TimedOut          bool
	CompletionDetected bool
	FailureClass      FailureClass
}

// Backend is a tagged-variant agent runtime: subprocess (spawns an
// external agent binary) or library (synchronous in-process SDK call).
// The Dispatcher treats both uniformly via Result.
type Backend interface {
	// SupportsToolRestriction reports whether this backend can actually
	// constrain the agent to AllowedTools. If false and the request
	// declares a restricted set, Run must fail fast with a
	// configuration error rather than silently running unrestricted.
	SupportsToolRestriction() bool
	Run(ctx context.Context, req Request) (Result, error)
}

// Dispatcher runs agent invocations against a Backend, registering every
// outstanding invocation with the shared Engine so a signal handler can
// cancel them all.
type Dispatcher struct {
	backend Backend
	eng     *engine.Engine
}

// New constructs a Dispatcher over the given backend and Engine.
func New(backend Backend, eng *engine.Engine) *Dispatcher {
	return &Dispatcher{backend: backend, eng: eng}
}

// Run executes one agent invocation, enforcing the timeout, dry-run
// short-circuit, and tool-restriction fail-fast described in spec §4.A.
func (d *Dispatcher) Run(ctx context.Context, req Request) (Result, error) {
	if req.CompletionSentinel == "" {
		req.CompletionSentinel = defaultCompletionSentinel
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if req.AllowedTools != nil && !d.backend.SupportsToolRestriction() {
		return Result{}, werr.New(werr.GenericWreckit, "backend cannot enforce a restricted tool set; refusing to run unrestricted")
	}

	if req.DryRun {
		return Result{
			Success: true,
			Output:  "[dry-run] would invoke agent with prompt of " + fmt.Sprint(len(req.Prompt)) + " chars",
		}, nil
	}

	invocationID := uuid.NewString()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	d.eng.RegisterAgent(invocationID, cancel)
	defer d.eng.UnregisterAgent(invocationID)

	result, err := d.backend.Run(runCtx, req)
	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.Success = false
	}
	return result, err
}

// SubprocessBackend spawns an external agent binary, streams its
// stdout/stderr incrementally, and detects the completion sentinel
// substring. Grounded on the teacher's exec.CommandContext-with-timeout
// subprocess style (internal/polecat/session_manager.go's validateIssue/
// hookIssue), generalized from a fire-and-forget `bd` call into a
// long-running streamed invocation.
type SubprocessBackend struct {
	// BinaryPath is the agent executable, e.g. "claude".
	BinaryPath string
	// BuildArgs constructs the argv (excluding the binary) for a prompt.
	// Defaults to passing the prompt as the sole trailing argument.
	BuildArgs func(prompt string, allowedTools []string) []string
}

// SupportsToolRestriction reports true only when BuildArgs is set to
// translate AllowedTools into the backend's own CLI flag — a subprocess
// backend with no such translation cannot honor tool restriction and
// must be rejected by the Dispatcher before it ever runs.
func (b *SubprocessBackend) SupportsToolRestriction() bool {
	return b.BuildArgs != nil
}

func (b *SubprocessBackend) Run(ctx context.Context, req Request) (Result, error) {
	argBuilder := b.BuildArgs
	if argBuilder == nil {
		argBuilder = func(prompt string, _ []string) []string { return []string{prompt} }
	}
	args := argBuilder(req.Prompt, req.AllowedTools)

	cmd := exec.CommandContext(ctx, b.BinaryPath, args...) //nolint:gosec // G204: agent binary path is operator-configured, not user input
	cmd.Dir = req.WorkDir
	if len(req.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range req.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var combined bytes.Buffer
	completionDetected := false

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, werr.Wrap(werr.GenericWreckit, "opening agent stdout", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, werr.Wrap(werr.GenericWreckit, "opening agent stderr", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{FailureClass: classifyStartError(err)}, werr.Wrap(werr.GenericWreckit, "starting agent process", err)
	}

	done := make(chan struct{}, 2)
	scan := func(r *bufio.Scanner, onChunk func(string)) {
		for r.Scan() {
			line := r.Text()
			combined.WriteString(line)
			combined.WriteByte('\n')
			if strings.Contains(line, req.CompletionSentinel) {
				completionDetected = true
			}
			if onChunk != nil {
				onChunk(line)
			}
		}
		done <- struct{}{}
	}
	go scan(bufio.NewScanner(stdoutPipe), req.Streams.OnStdout)
	go scan(bufio.NewScanner(stderrPipe), req.Streams.OnStderr)
	<-done
	<-done

	waitErr := cmd.Wait()
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() == context.DeadlineExceeded {
		return Result{
			Output:   combined.String(),
			ExitCode: exitCode,
			TimedOut: true,
		}, nil
	}

	if waitErr != nil {
		return Result{
			Output:       combined.String(),
			ExitCode:     exitCode,
			FailureClass: classifyRunError(combined.String(), waitErr),
		}, nil
	}

	return Result{
		Success:            true,
		Output:             combined.String(),
		ExitCode:           exitCode,
		CompletionDetected: completionDetected,
	}, nil
}

func classifyStartError(err error) FailureClass {
	if strings.Contains(err.Error(), "executable file not found") {
		return FailureBackendUnavailable
	}
	return FailureGeneric
}

func classifyRunError(output string, err error) FailureClass {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "authentication"):
		return FailureAuthentication
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return FailureRateLimited
	case strings.Contains(lower, "context length") || strings.Contains(lower, "context overflow") || strings.Contains(lower, "too many tokens"):
		return FailureContextOverflow
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") || strings.Contains(lower, "network"):
		return FailureNetwork
	case strings.Contains(err.Error(), "executable file not found"):
		return FailureBackendUnavailable
	default:
		return FailureGeneric
	}
}
