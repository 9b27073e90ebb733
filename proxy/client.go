// Package proxy runs upstream MCP servers as child processes and relays
// tool calls over their stdin/stdout. The CloudWatch and Step Functions
// handlers are thin wrappers over proxied tools.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/mcp"
	"github.com/Coykto/debug-mcp/mcp/jsonrpc"
)

// DefaultCallTimeout bounds a single upstream tool call. Log Insights
// queries can legitimately run for a while, so this is generous.
const DefaultCallTimeout = 2 * time.Minute

var errClosed = errors.New("proxy client is closed")

// Client speaks JSON-RPC over a child process's pipes. One client fronts
// one upstream server; calls may be issued concurrently.
type Client struct {
	name    string
	command string
	args    []string
	env     []string
	timeout time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	enc     *json.Encoder
	pending map[string]chan *jsonrpc.Response
	closed  bool
}

// New creates a client for an upstream server. env entries are appended
// to the current process environment.
func New(name, command string, args []string, env []string) *Client {
	return &Client{
		name:    name,
		command: command,
		args:    args,
		env:     env,
		timeout: DefaultCallTimeout,
		pending: make(map[string]chan *jsonrpc.Response),
	}
}

// Name returns the upstream server's short name.
func (c *Client) Name() string {
	return c.name
}

// Start spawns the child process and performs the MCP initialize
// handshake. The child's stderr is passed through to ours so upstream
// diagnostics stay visible.
func (c *Client) Start(ctx context.Context) error {
	cmd := exec.Command(c.command, c.args...)
	cmd.Env = append(os.Environ(), c.env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("proxy %s: stdin pipe: %w", c.name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("proxy %s: stdout pipe: %w", c.name, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("proxy %s: start %s: %w", c.name, c.command, err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.stdin = stdin
	c.enc = json.NewEncoder(stdin)
	c.mu.Unlock()

	go c.readLoop(stdout)

	logger.Info("proxy started", "upstream", c.name, "command", c.command)

	if err := c.initialize(ctx); err != nil {
		c.Close()
		return err
	}
	return nil
}

// readLoop routes responses from the child to their waiting callers.
// Notifications and responses with unknown ids are dropped.
func (c *Client) readLoop(stdout io.Reader) {
	decoder := json.NewDecoder(stdout)
	for {
		var resp jsonrpc.Response
		if err := decoder.Decode(&resp); err != nil {
			if err != io.EOF {
				logger.Warn("proxy read failed", "upstream", c.name, "error", err)
			}
			c.failPending()
			return
		}
		id, ok := resp.ID.(string)
		if !ok {
			continue
		}

		c.mu.Lock()
		ch := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()

		if ch != nil {
			ch <- &resp
		}
	}
}

// failPending unblocks every in-flight call after the pipe breaks.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": mcp.ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    mcp.ServerName,
			"version": mcp.ServerVersion,
		},
	}
	if _, err := c.roundTrip(ctx, "initialize", params); err != nil {
		return fmt.Errorf("proxy %s: initialize: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	return c.enc.Encode(jsonrpc.NewNotification("notifications/initialized", map[string]any{}))
}

// CallTool invokes one tool on the upstream server and returns the
// payload of its first text content block. Text that parses as JSON is
// returned decoded; anything else comes back as a plain string.
func (c *Client) CallTool(ctx context.Context, tool string, arguments map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := map[string]any{
		"name":      tool,
		"arguments": arguments,
	}
	resp, err := c.roundTrip(ctx, "tools/call", params)
	if err != nil {
		if jsonrpc.IsMethodNotFound(err) {
			return nil, fmt.Errorf("proxy %s: upstream does not support tool calls: %w", c.name, err)
		}
		return nil, fmt.Errorf("proxy %s: %s: %w", c.name, tool, err)
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %s: %w", c.name, tool, err)
	}
	return extractContent(raw)
}

func (c *Client) roundTrip(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	req := jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      id,
		Method:  method,
		Params:  rawParams,
	}

	ch := make(chan *jsonrpc.Response, 1)

	c.mu.Lock()
	if c.closed || c.enc == nil {
		c.mu.Unlock()
		return nil, errClosed
	}
	c.pending[id] = ch
	err = c.enc.Encode(&req)
	c.mu.Unlock()
	if err != nil {
		c.dropPending(id)
		return nil, err
	}

	logger.Debug("proxy request", "upstream", c.name, "method", method, "request", scrubRequest(&req))

	select {
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("upstream %s exited", c.name)
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	}
}

func (c *Client) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close terminates the child process.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stdin := c.stdin
	cmd := c.cmd
	c.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		// Give the child a moment to exit on EOF before killing it.
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			cmd.Process.Kill()
			<-done
		}
	}
	logger.Info("proxy stopped", "upstream", c.name)
	return nil
}

// extractContent pulls the first text content block out of a tools/call
// result. Upstream errors surface as isError with the detail in the text
// block.
func extractContent(result []byte) (any, error) {
	text := gjson.GetBytes(result, `content.#(type=="text").text`)
	if !text.Exists() {
		// No text block: hand back the whole result decoded.
		var decoded any
		if err := json.Unmarshal(result, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	}

	if gjson.GetBytes(result, "isError").Bool() {
		return nil, errors.New(text.String())
	}

	if gjson.Valid(text.String()) {
		var decoded any
		if err := json.Unmarshal([]byte(text.String()), &decoded); err == nil {
			return decoded, nil
		}
	}
	return text.String(), nil
}
