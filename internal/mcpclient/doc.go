// Package mcpclient is a JSON-RPC client for a single tool-provider
// endpoint speaking the MCP streamable HTTP transport.
//
// Every response may arrive either as an application/json document or as a
// text/event-stream carrying one JSON-RPC message in its first data line;
// both are accepted. The session id handed out during the handshake is
// echoed on every later request until Close.
//
// Calls on one Client are serialized. Create one per conversation or
// profile and close it when done.
package mcpclient
