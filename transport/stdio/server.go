package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/Coykto/debug-mcp/gateway"
	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/mcp/jsonrpc"
	"github.com/Coykto/debug-mcp/transport/shared"
)

const maxFrameBytes = 1 << 20

// Server speaks MCP over stdin/stdout. All logging goes to stderr or a file;
// stdout carries only JSON-RPC frames.
type Server struct {
	gateway *gateway.Gateway
	in      io.Reader
	out     io.Writer
}

func NewServer(gw *gateway.Gateway) *Server {
	return &Server{
		gateway: gw,
		in:      os.Stdin,
		out:     os.Stdout,
	}
}

// Start reads newline-delimited JSON-RPC frames until EOF or context
// cancellation. Line framing keeps the stream recoverable: a malformed
// frame costs one parse-error response, and the next line is read fresh.
func (s *Server) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	encoder := json.NewEncoder(s.out)

	logger.Debug("Stdio server started and waiting for messages")

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			logger.Debug("Stdio server context done, terminating")
			return nil
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		requests, prebuiltResponses, _, err := shared.ParseJSONRPCFrame(line)
		if err != nil {
			logger.Error("Error parsing frame", "error", err)
			continue
		}

		for _, response := range prebuiltResponses {
			if err := encoder.Encode(response); err != nil {
				logger.Error("Error encoding response", "error", err)
			}
		}

		for _, msg := range requests {
			logger.Debug("Stdio message received", "method", msg.Method, "id", msg.ID)

			response := s.handleMessage(ctx, msg)
			if response == nil {
				continue
			}
			if err := encoder.Encode(response); err != nil {
				logger.Error("Error encoding response", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Error("Stdio read failed", "error", err)
		return err
	}
	logger.Debug("Stdio EOF received, terminating server")
	return nil
}

func (s *Server) handleMessage(ctx context.Context, msg jsonrpc.Request) any {
	switch msg.Method {
	case "initialize":
		logger.Debug("Handling initialize message", "id", msg.ID)
		response, negotiated := shared.BuildInitializeResult(msg, "")
		logger.Info("Stdio session initialized", "protocol_version", negotiated)
		return response
	case "initialized", "notifications/initialized":
		if msg.ID != nil {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidRequest, "Invalid request", nil)
		}
		logger.Debug("Client reported initialized")
		return nil
	default:
		return shared.DispatchStandardMethod(ctx, msg, s.gateway)
	}
}
