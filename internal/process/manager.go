// Package process manages one spawned MCP server child process: it frames
// the child's stdout byte stream into discrete JSON-RPC messages, writes
// outgoing messages to stdin and reports lifecycle through a broadcast hub.
package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/imyashkale/mcpbridge/internal/broadcast"
	"github.com/imyashkale/mcpbridge/internal/logger"
)

// ErrNotConnected is returned by Send when the child process has not been
// started or has already exited.
var ErrNotConnected = errors.New("server not connected")

// readBufferSize is the size of each stdout read. Message framing must not
// depend on it; a JSON object may span any number of reads.
const readBufferSize = 4096

// ExitHandler is invoked once when the child process exits, after the exit
// event has been published.
type ExitHandler func(name string, code int, signal string)

// Manager owns one spawned MCP server process.
type Manager struct {
	name    string
	command string
	args    []string
	env     map[string]string

	hub    *broadcast.Hub
	onExit ExitHandler

	mu        sync.Mutex
	connected bool
	cmd       *exec.Cmd
	stdin     io.WriteCloser

	// Tail of the most recent stdout read that has not yet terminated in a
	// newline. Touched only by the stdout reader goroutine (and tests).
	buffer string

	readerDone chan struct{}
}

// New creates a manager for the given command. The process is not spawned
// until Start is called.
func New(name, command string, args []string, env map[string]string) *Manager {
	return &Manager{
		name:       name,
		command:    command,
		args:       args,
		env:        env,
		hub:        broadcast.NewHub(name),
		readerDone: make(chan struct{}),
	}
}

// Name returns the registry key of this server.
func (m *Manager) Name() string { return m.name }

// Command returns the configured executable.
func (m *Manager) Command() string { return m.command }

// Args returns the configured argument list.
func (m *Manager) Args() []string { return m.args }

// Hub returns the event hub SSE connections subscribe to.
func (m *Manager) Hub() *broadcast.Hub { return m.hub }

// Connected reports whether the child process is currently running.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetExitHandler registers a callback fired when the child exits. Must be
// called before Start.
func (m *Manager) SetExitHandler(fn ExitHandler) {
	m.onExit = fn
}

// Start spawns the configured command and wires asynchronous readers on its
// stdout and stderr. Spawn failures are not returned: they surface as an
// error event on the hub and the manager stays not-connected.
func (m *Manager) Start() {
	cmd := exec.Command(m.command, m.args...)
	cmd.Env = mergeEnv(m.env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		m.spawnFailed(fmt.Errorf("stdin pipe: %w", err))
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.spawnFailed(fmt.Errorf("stdout pipe: %w", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		m.spawnFailed(fmt.Errorf("stderr pipe: %w", err))
		return
	}

	if err := cmd.Start(); err != nil {
		m.spawnFailed(fmt.Errorf("start process: %w", err))
		return
	}

	logger.WithFields(map[string]interface{}{
		"server":  m.name,
		"command": m.command,
		"pid":     cmd.Process.Pid,
	}).Info("MCP server process started")

	m.mu.Lock()
	m.cmd = cmd
	m.stdin = stdin
	m.connected = true
	m.mu.Unlock()

	go m.readStdout(stdout)
	go m.readStderr(stderr)
	go m.watchExit(cmd)
}

func (m *Manager) spawnFailed(err error) {
	logger.WithFields(map[string]interface{}{
		"server": m.name,
		"error":  err.Error(),
	}).Error("Failed to spawn MCP server process")

	m.hub.Publish(broadcast.Event{Type: broadcast.TypeError, Err: err.Error()})
}

// Send serializes message as JSON, appends a newline and writes it to the
// child's stdin. It fails synchronously with ErrNotConnected before Start
// and after the process has exited.
func (m *Manager) Send(message interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected || m.stdin == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if _, err := m.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write to stdin: %w", err)
	}
	return nil
}

// Stop terminates the child process forcefully. There is no graceful drain:
// in-flight commands are abandoned.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.connected = false
	cmd := m.cmd
	stdin := m.stdin
	m.cmd = nil
	m.stdin = nil
	m.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}

	logger.WithField("server", m.name).Info("MCP server process stopped")
}

// readStdout reads raw chunks from the child's stdout and feeds them to the
// framing buffer until the pipe closes.
func (m *Manager) readStdout(stdout io.ReadCloser) {
	defer close(m.readerDone)

	buf := make([]byte, readBufferSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			m.processBuffer(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// processBuffer appends newly-read bytes to the partial-line buffer, splits
// on newlines and publishes one message event per complete JSON line. The
// trailing fragment (possibly empty) is retained for the next read, so the
// result is independent of how the OS chunks the stream. Unparseable lines
// are logged and dropped.
func (m *Manager) processBuffer(chunk []byte) {
	m.buffer += string(chunk)

	parts := strings.Split(m.buffer, "\n")
	m.buffer = parts[len(parts)-1]

	for _, line := range parts[:len(parts)-1] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			logger.WithFields(map[string]interface{}{
				"server": m.name,
				"line":   line,
			}).Warn("Dropping unparseable line from server stdout")
			continue
		}
		m.hub.Publish(broadcast.Event{
			Type: broadcast.TypeMessage,
			Data: json.RawMessage(line),
		})
	}
}

// readStderr logs child stderr lines under the server's name.
func (m *Manager) readStderr(stderr io.ReadCloser) {
	buf := make([]byte, readBufferSize)
	var pending string
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			pending += string(buf[:n])
			lines := strings.Split(pending, "\n")
			pending = lines[len(lines)-1]
			for _, line := range lines[:len(lines)-1] {
				if line = strings.TrimSpace(line); line != "" {
					logger.WithField("server", m.name).Debug(line)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// watchExit waits for the process to exit, drains the stdout reader so the
// exit event always follows the last message event, then publishes exit and
// closes the hub.
func (m *Manager) watchExit(cmd *exec.Cmd) {
	err := cmd.Wait()
	<-m.readerDone

	code := 0
	signal := ""
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			signal = ws.Signal().String()
		}
	}

	m.mu.Lock()
	m.connected = false
	m.cmd = nil
	m.stdin = nil
	m.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"server": m.name,
		"code":   code,
		"signal": signal,
		"error":  fmt.Sprintf("%v", err),
	}).Info("MCP server process exited")

	m.hub.Publish(broadcast.Event{
		Type:   broadcast.TypeExit,
		Code:   code,
		Signal: signal,
	})
	m.hub.Close()

	if m.onExit != nil {
		m.onExit(m.name, code, signal)
	}
}

// mergeEnv layers custom variables over the current environment, replacing
// duplicates in place.
func mergeEnv(custom map[string]string) []string {
	env := os.Environ()
	for k, v := range custom {
		prefix := k + "="
		found := false
		for i, e := range env {
			if strings.HasPrefix(e, prefix) {
				env[i] = k + "=" + v
				found = true
				break
			}
		}
		if !found {
			env = append(env, k+"="+v)
		}
	}
	return env
}
