package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	log "github.com/sirupsen/logrus"
)

const (
	// SessionHeader is the session header this client prefers.
	SessionHeader = "x-mcp-session-id"
	// StandardSessionHeader is the session header defined by the MCP streamable HTTP transport.
	StandardSessionHeader = "mcp-session-id"

	methodInitialized = "initialized"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcErrorBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`

	raw json.RawMessage
}

func (c *Client) nextID() string {
	c.seq++
	return fmt.Sprintf("req_%d_%d", c.seq, time.Now().UnixMilli())
}

// call sends a request and decodes a successful result into out (if non-nil).
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	resp, err := c.roundTrip(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return &RPCError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("%s: decode result: %v", method, err), Body: truncate(resp.Result, 256)}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params any) (*rpcResponse, error) {
	id := c.nextID()
	body, err := json.Marshal(rpcRequest{JSONRPC: mcp.JSONRPC_VERSION, ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: encode request: %w", method, err)
	}

	var raw json.RawMessage
	err = c.post(ctx, method, body, func(resp *http.Response) error {
		var derr error
		raw, derr = DecodeStream(resp.Header.Get("Content-Type"), io.LimitReader(resp.Body, maxBodyBytes))
		return derr
	})
	if err != nil {
		return nil, err
	}

	resp := &rpcResponse{raw: raw}
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("%s: decode envelope: %v", method, err), Body: truncate(raw, 256)}
	}
	if len(resp.ID) > 0 && string(resp.ID) != fmt.Sprintf("%q", id) {
		log.Debugf("mcpclient: %s: response id %s does not match %s", method, resp.ID, id)
	}
	return resp, nil
}

// notify sends a notification. Any 2xx status is accepted and the body is
// discarded.
func (c *Client) notify(ctx context.Context, method string) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: mcp.JSONRPC_VERSION, Method: method})
	if err != nil {
		return err
	}
	return c.post(ctx, method, body, func(resp *http.Response) error {
		_, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return err
	})
}

// post performs one HTTP exchange bounded by the per-call timeout, records
// any session id, rejects non-2xx answers and hands the body to read.
func (c *Client) post(ctx context.Context, method string, body []byte, read func(*http.Response) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mcpclient: %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON+", "+contentTypeSSE)
	if c.sessionID != "" {
		req.Header.Set(c.sessionHeader, c.sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	c.captureSession(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, StatusCode: resp.StatusCode, Body: truncate(b, 256)}
	}

	if err := read(resp); err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) {
			return err
		}
		return &TransportError{Method: method, Err: err}
	}
	return nil
}

func (c *Client) captureSession(h http.Header) {
	for _, name := range []string{SessionHeader, StandardSessionHeader} {
		if v := h.Get(name); v != "" {
			if v != c.sessionID {
				log.Debugf("mcpclient: session id via %s", name)
			}
			c.sessionID = v
			c.sessionHeader = name
			return
		}
	}
}
