package mcpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// ErrNotConnected is returned by CallTool before a successful Connect or
// after Close.
var ErrNotConnected = errors.New("mcpclient: not connected")

// ConnectionError reports that the handshake could not be completed within
// the retry budget. Callers are expected to continue without tools.
type ConnectionError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcpclient: connect to %s failed after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports a response body that is neither a JSON document nor
// an event stream with a decodable data line.
type ProtocolError struct {
	Reason string
	Body   string
}

func (e *ProtocolError) Error() string {
	if e.Body == "" {
		return "mcpclient: protocol error: " + e.Reason
	}
	return fmt.Sprintf("mcpclient: protocol error: %s (body %q)", e.Reason, e.Body)
}

// ToolError carries the server's failure payload for one tools/call.
type ToolError struct {
	Tool    string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *ToolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tool %s failed (code %d): %s", e.Tool, e.Code, e.Message)
	}
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// TransportError means no usable HTTP response arrived: dial failure,
// timeout, reset. Only these are retried, and only during Connect.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mcpclient: %s: transport: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a timeout.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// StatusError is a non-2xx HTTP answer.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mcpclient: %s: unexpected status %d: %s", e.Method, e.StatusCode, e.Body)
}

// RPCError is a JSON-RPC error object returned for a non-tool method.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("mcpclient: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
