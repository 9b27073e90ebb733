package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/mcp"
	"github.com/Coykto/debug-mcp/mcp/jsonrpc"
	"github.com/Coykto/debug-mcp/transport/shared"
)

const maxJSONRPCBodyBytes = 1 << 20

const sseKeepaliveInterval = 25 * time.Second

const (
	headerSessionID       = "MCP-Session-Id"
	headerProtocolVersion = "MCP-Protocol-Version"
)

func RegisterRoutes(e *echo.Echo, s *Server) {
	e.GET("/", s.handleInfo)
	e.POST("/mcp", s.handlePost)
	e.GET("/mcp", s.handleGet)
	e.DELETE("/mcp", s.handleDelete)
	e.OPTIONS("/mcp", s.handleOptions)
}

func (s *Server) handleInfo(c echo.Context) error {
	logger.Debug("HTTP info requested", "remote_addr", c.RealIP())
	info := map[string]any{
		"name":    mcp.ServerName,
		"version": mcp.ServerVersion,
		"capabilities": map[string]any{
			"stdio":           true,
			"streamable_http": true,
		},
		"streamable_http_endpoint": "/mcp",
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleOptions(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) handlePost(c echo.Context) error {
	logger.Debug("Streamable HTTP POST request", "remote_addr", c.RealIP())

	limitedBody := http.MaxBytesReader(c.Response(), c.Request().Body, maxJSONRPCBodyBytes)
	defer limitedBody.Close()

	body, err := io.ReadAll(limitedBody)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			logger.Warn("Request body too large", "limit_bytes", maxJSONRPCBodyBytes, "remote_addr", c.RealIP())
			return c.JSON(http.StatusRequestEntityTooLarge, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Request body too large", nil))
		}
		logger.Error("Failed to read request body", "error", err)
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil))
	}

	requests, prebuiltResponses, acceptedOneWay, err := shared.ParseJSONRPCFrame(body)
	if err != nil {
		logger.Error("Failed to parse JSON-RPC request", "error", err)
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil))
	}
	if len(requests) == 0 && len(prebuiltResponses) == 0 && !acceptedOneWay {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid request", nil))
	}

	sessionID := c.Request().Header.Get(headerSessionID)
	requestedProtocolVersion := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	if requestedProtocolVersion != "" && !shared.IsSupportedProtocolVersion(requestedProtocolVersion) {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unsupported MCP-Protocol-Version header", nil))
	}

	hasInitialize := false
	hasNonInitialize := false
	for _, req := range requests {
		if req.Method == "initialize" {
			hasInitialize = true
		} else {
			hasNonInitialize = true
		}
	}

	if len(requests) > 0 {
		if hasInitialize {
			if sessionID == "" {
				sessionID = NewSessionID()
				s.sessionManager.CreateSession(sessionID)
				logger.Debug("Generated new MCP session")
			} else if !s.sessionManager.TouchSession(sessionID) {
				return c.JSON(http.StatusNotFound, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unknown MCP session", nil))
			}
		}

		if !hasInitialize || hasNonInitialize {
			if sessionID == "" {
				return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing MCP-Session-Id header", nil))
			}
			if !s.sessionManager.TouchSession(sessionID) {
				return c.JSON(http.StatusNotFound, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unknown MCP session", nil))
			}
		}
	}
	if acceptedOneWay {
		if sessionID == "" {
			return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing MCP-Session-Id header", nil))
		}
		if !s.sessionManager.TouchSession(sessionID) {
			return c.JSON(http.StatusNotFound, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unknown MCP session", nil))
		}
	}

	requireProtocolHeader := false
	if hasNonInitialize || acceptedOneWay {
		requireProtocolHeader = s.requireProtocolVersionHeader(sessionID)
	}
	if !s.isProtocolVersionAccepted(sessionID, requestedProtocolVersion, requireProtocolHeader) {
		if requestedProtocolVersion == "" && requireProtocolHeader {
			return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing MCP-Protocol-Version header", nil))
		}
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid MCP-Protocol-Version header", nil))
	}

	responses := make([]any, 0, len(requests)+len(prebuiltResponses))
	responses = append(responses, prebuiltResponses...)

	for _, request := range requests {
		logger.Debug("Streamable HTTP request received", "method", request.Method, "id", request.ID)
		response := s.handleMessage(c.Request().Context(), request, sessionID)
		if request.ID == nil || response == nil {
			continue
		}
		responses = append(responses, response)
	}

	if sessionID != "" {
		c.Response().Header().Set(headerSessionID, sessionID)
	}

	if len(requests) == 0 && len(prebuiltResponses) > 0 {
		return c.JSON(http.StatusBadRequest, prebuiltResponses[0])
	}

	if len(responses) == 0 {
		return c.NoContent(http.StatusAccepted)
	}
	return c.JSON(http.StatusOK, responses[0])
}

func (s *Server) handleGet(c echo.Context) error {
	logger.Debug("Streamable HTTP GET request", "remote_addr", c.RealIP())

	sessionID := c.Request().Header.Get(headerSessionID)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing MCP-Session-Id header", nil))
	}
	if !s.sessionManager.HasSession(sessionID) {
		return c.JSON(http.StatusNotFound, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unknown MCP session", nil))
	}

	requestedProtocolVersion := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	requireProtocolHeader := s.requireProtocolVersionHeader(sessionID)
	if !s.isProtocolVersionAccepted(sessionID, requestedProtocolVersion, requireProtocolHeader) {
		if requestedProtocolVersion == "" && requireProtocolHeader {
			return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing MCP-Protocol-Version header", nil))
		}
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid MCP-Protocol-Version header", nil))
	}

	if !acceptsEventStream(c.Request().Header.Get(echo.HeaderAccept)) {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Accept header must include text/event-stream", nil))
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusMethodNotAllowed, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "SSE stream is not available", nil))
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set(headerSessionID, sessionID)
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	streamCtx, stopStream := context.WithCancel(c.Request().Context())
	defer stopStream()

	transport := NewStreamableTransport(c.Response().Writer, flusher, stopStream)
	if err := transport.SendComment("stream opened"); err != nil {
		logger.Warn("Failed to write initial SSE comment", "session_id", sessionID, "error", err)
		return nil
	}

	// Publish the transport only after SSE headers and the initial frame are
	// sent, so notification writes never race with stream setup.
	if !s.sessionManager.SetTransport(sessionID, transport) {
		transport.Close()
		logger.Warn("SSE session disappeared before stream binding", "session_id", sessionID)
		return nil
	}
	defer s.sessionManager.ClearTransportIfMatch(sessionID, transport)

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-streamCtx.Done():
			return nil
		case <-keepalive.C:
			if err := transport.SendComment("keepalive"); err != nil {
				logger.Debug("SSE keepalive failed, closing stream", "session_id", sessionID, "error", err)
				return nil
			}
			s.sessionManager.TouchSession(sessionID)
		}
	}
}

func (s *Server) handleDelete(c echo.Context) error {
	logger.Debug("Streamable HTTP DELETE request", "remote_addr", c.RealIP())
	sessionID := c.Request().Header.Get(headerSessionID)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing MCP-Session-Id header", nil))
	}
	if !s.sessionManager.HasSession(sessionID) {
		return c.JSON(http.StatusNotFound, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unknown MCP session", nil))
	}
	requestedProtocolVersion := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	requireProtocolHeader := s.requireProtocolVersionHeader(sessionID)
	if !s.isProtocolVersionAccepted(sessionID, requestedProtocolVersion, requireProtocolHeader) {
		if requestedProtocolVersion == "" && requireProtocolHeader {
			return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing MCP-Protocol-Version header", nil))
		}
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid MCP-Protocol-Version header", nil))
	}
	s.sessionManager.RemoveSession(sessionID)
	logger.Info("MCP session terminated", "session_id", sessionID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMessage(ctx context.Context, msg jsonrpc.Request, sessionID string) any {
	switch msg.Method {
	case "initialize":
		logger.Debug("Handling initialize message", "request_id", msg.ID)
		response, negotiated := shared.BuildInitializeResult(msg, sessionID)
		if sessionID != "" {
			s.sessionManager.SetProtocolVersion(sessionID, negotiated)
		}
		logger.Info("MCP session initialized", "session_id", sessionID, "protocol_version", negotiated)
		return response
	case "initialized", "notifications/initialized":
		if msg.ID != nil {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidRequest, "Invalid request", nil)
		}
		logger.Debug("Handling initialized notification")
		if sessionID != "" {
			s.sessionManager.MarkInitialized(sessionID)
		}
		return nil
	default:
		return shared.DispatchStandardMethod(ctx, msg, s.gateway)
	}
}

func (s *Server) isProtocolVersionAccepted(sessionID string, requestedVersion string, requireHeader bool) bool {
	if requestedVersion != "" {
		if !shared.IsSupportedProtocolVersion(requestedVersion) {
			return false
		}
		if sessionID != "" {
			if negotiated, ok := s.sessionManager.GetProtocolVersion(sessionID); ok && negotiated != "" && negotiated != requestedVersion {
				return false
			}
		}
		return true
	}
	return !requireHeader
}

func (s *Server) requireProtocolVersionHeader(sessionID string) bool {
	if sessionID == "" {
		return true
	}
	negotiated, ok := s.sessionManager.GetProtocolVersion(sessionID)
	if !ok {
		return true
	}
	return strings.TrimSpace(negotiated) == ""
}

func acceptsEventStream(acceptHeader string) bool {
	for _, part := range strings.Split(acceptHeader, ",") {
		mime := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(mime, "text/event-stream") {
			return true
		}
	}
	return false
}
