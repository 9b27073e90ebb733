package mcp

// Protocol version
const (
	ProtocolVersion = "2025-06-18"
)

// Server identity reported during the initialize handshake
const (
	ServerName    = "debug-mcp"
	ServerVersion = "0.1.0"
)
