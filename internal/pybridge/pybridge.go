// Package pybridge drives the optional Python helper process over
// line-delimited JSON. The helper accelerates tree building and NLP scoring;
// everything it does has a native fallback, so the bridge degrades to
// disabled rather than failing the caller.
package pybridge

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Per-command deadlines. Tree building chews through the whole catalog;
// scoring and pings are quick.
const (
	TimeoutBuildTree = 120 * time.Second
	TimeoutScore     = 30 * time.Second
	TimeoutPing      = 5 * time.Second
)

// maxRestarts bounds automatic recovery; after that the bridge stays down
// until explicitly reset.
const maxRestarts = 3

// ErrDisabled is returned once the helper exhausted its restarts.
var ErrDisabled = errors.New("python helper disabled after repeated failures")

// request is one line sent to the helper.
type request struct {
	ID      string          `json:"id"`
	Cmd     string          `json:"cmd"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// response is one line read back.
type response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// transport abstracts stdio-subprocess vs TCP connections.
type transport interface {
	io.ReadWriteCloser
}

// Dialer produces a fresh transport; called on start and on each restart.
type Dialer func() (transport, error)

// SubprocessDialer launches the helper script and wires its stdio.
func SubprocessDialer(python string, args ...string) Dialer {
	return func() (transport, error) {
		cmd := exec.Command(python, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("helper stdin: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("helper stdout: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start helper: %w", err)
		}
		return &subprocessTransport{cmd: cmd, stdin: stdin, stdout: stdout}, nil
	}
}

// TCPDialer connects to an already-running helper.
func TCPDialer(addr string) Dialer {
	return func() (transport, error) {
		conn, err := net.DialTimeout("tcp", addr, TimeoutPing)
		if err != nil {
			return nil, fmt.Errorf("dial helper %s: %w", addr, err)
		}
		return conn, nil
	}
}

type subprocessTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (t *subprocessTransport) Read(p []byte) (int, error)  { return t.stdout.Read(p) }
func (t *subprocessTransport) Write(p []byte) (int, error) { return t.stdin.Write(p) }

func (t *subprocessTransport) Close() error {
	t.stdin.Close()
	t.stdout.Close()
	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
	return t.cmd.Wait()
}

// Bridge owns one helper connection, its reader goroutine and the pending
// request table. All methods are safe for concurrent use.
type Bridge struct {
	dial Dialer

	mu       sync.Mutex
	conn     transport
	writer   *bufio.Writer
	pending  map[string]chan response
	restarts int
	disabled bool
	closed   bool

	readerWG sync.WaitGroup
}

// New builds a stopped bridge; Start connects it.
func New(dial Dialer) *Bridge {
	return &Bridge{
		dial:    dial,
		pending: make(map[string]chan response),
	}
}

// Start connects the helper and begins reading responses.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startLocked()
}

func (b *Bridge) startLocked() error {
	if b.disabled {
		return ErrDisabled
	}
	if b.closed {
		return fmt.Errorf("bridge is closed")
	}
	conn, err := b.dial()
	if err != nil {
		return err
	}
	b.conn = conn
	b.writer = bufio.NewWriter(conn)
	b.readerWG.Add(1)
	go b.readLoop(conn)
	slog.Info("python helper connected")
	return nil
}

// Call sends a command and waits for its matching response or the timeout.
// A transport failure triggers a restart; once restarts are exhausted every
// call returns ErrDisabled.
func (b *Bridge) Call(cmd string, payload any, timeout time.Duration) (json.RawMessage, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", cmd, err)
		}
		raw = data
	}
	req := request{ID: uuid.NewString(), Cmd: cmd, Payload: raw}

	ch := make(chan response, 1)

	b.mu.Lock()
	if b.disabled {
		b.mu.Unlock()
		return nil, ErrDisabled
	}
	if b.conn == nil {
		if err := b.startLocked(); err != nil {
			b.mu.Unlock()
			return nil, err
		}
	}
	b.pending[req.ID] = ch
	err := b.writeLocked(req)
	b.mu.Unlock()
	if err != nil {
		b.dropPending(req.ID)
		b.handleFailure(err)
		return nil, err
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			return nil, fmt.Errorf("helper %s: %s", cmd, resp.Error)
		}
		return resp.Result, nil
	case <-time.After(timeout):
		b.dropPending(req.ID)
		err := fmt.Errorf("helper %s timed out after %s", cmd, timeout)
		b.handleFailure(err)
		return nil, err
	}
}

// Ping checks liveness.
func (b *Bridge) Ping() error {
	_, err := b.Call("ping", nil, TimeoutPing)
	return err
}

// BuildTree asks the helper to build a tree from the catalog payload,
// returning the raw tree JSON.
func (b *Bridge) BuildTree(payload any) (json.RawMessage, error) {
	return b.Call("build_tree", payload, TimeoutBuildTree)
}

// Score asks the helper for pairwise similarity scores.
func (b *Bridge) Score(payload any) (json.RawMessage, error) {
	return b.Call("prm_score", payload, TimeoutScore)
}

// Disabled reports whether restarts are exhausted.
func (b *Bridge) Disabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disabled
}

// Reset clears the restart budget so Start may be attempted again.
func (b *Bridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restarts = 0
	b.disabled = false
}

// Close sends the shutdown command, closes the transport and joins the
// reader. Safe to call twice.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.conn != nil {
		b.writeLocked(request{ID: uuid.NewString(), Cmd: "shutdown"})
		b.conn.Close()
		b.conn = nil
	}
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
	b.mu.Unlock()
	b.readerWG.Wait()
}

func (b *Bridge) writeLocked(req request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if b.writer == nil {
		return fmt.Errorf("helper not connected")
	}
	if _, err := b.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write to helper: %w", err)
	}
	return b.writer.Flush()
}

// readLoop matches responses to pending requests by ID. It exits when the
// transport closes.
func (b *Bridge) readLoop(conn transport) {
	defer b.readerWG.Done()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 32<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			slog.Warn("helper emitted unparseable line", "error", err)
			continue
		}
		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		if ok {
			delete(b.pending, resp.ID)
		}
		b.mu.Unlock()
		if ok {
			ch <- resp
		} else {
			slog.Debug("helper response without a pending request", "id", resp.ID)
		}
	}

	b.mu.Lock()
	wasActive := b.conn == conn
	if wasActive {
		b.conn = nil
		b.writer = nil
	}
	closed := b.closed
	b.mu.Unlock()
	// A reader that was already replaced by a restart must not tear down
	// the new connection.
	if !closed && wasActive {
		b.handleFailure(fmt.Errorf("helper connection lost"))
	}
}

func (b *Bridge) dropPending(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// handleFailure tears down the connection and restarts the helper, up to
// the restart budget.
func (b *Bridge) handleFailure(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.disabled {
		return
	}
	slog.Warn("python helper failed", "error", cause, "restarts", b.restarts)
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
		b.writer = nil
	}
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
	b.restarts++
	if b.restarts > maxRestarts {
		b.disabled = true
		slog.Error("python helper disabled", "restarts", b.restarts-1)
		return
	}
	if err := b.startLocked(); err != nil {
		slog.Warn("python helper restart failed", "error", err)
	}
}
