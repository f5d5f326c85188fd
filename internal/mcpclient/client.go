package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/petasbytes/relay-agent/internal/metrics"
	"github.com/petasbytes/relay-agent/tools"
)

const DefaultTimeout = 30 * time.Second

// Options configures a Client. Endpoint is used verbatim; see
// ResolveEndpoint for normalizing configured URLs.
type Options struct {
	Endpoint string
	// ProfileID scopes tools/list and tools/call when non-empty.
	ProfileID       string
	ClientInfo      mcp.Implementation
	ProtocolVersion string
	// Timeout bounds each HTTP call. Zero means DefaultTimeout.
	Timeout time.Duration
	// HTTPClient is used as-is when set; the client then never closes its
	// connections.
	HTTPClient *http.Client
}

// Session is the outcome of a successful handshake.
type Session struct {
	ID              string
	ProtocolVersion string
	ServerInfo      mcp.Implementation
	Capabilities    mcp.ServerCapabilities
	Instructions    string
}

// Client calls are serialized: concurrent CallTool requests from one tool
// batch go out one at a time over the same session.
type Client struct {
	mu sync.Mutex

	opts      Options
	http      *http.Client
	ownsHTTP  bool
	sleep     func(context.Context, time.Duration) error
	seq       int64
	connected bool

	session       *Session
	sessionID     string
	sessionHeader string
	tools         []tools.Descriptor
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ProtocolVersion == "" {
		opts.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	}
	if opts.ClientInfo.Name == "" {
		opts.ClientInfo = mcp.Implementation{Name: "relay-agent", Version: "0.1.0"}
	}
	c := &Client{opts: opts, http: opts.HTTPClient, sleep: sleepContext}
	if c.http == nil {
		c.http = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
		c.ownsHTTP = true
	}
	return c
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Session returns the handshake outcome, nil while disconnected.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SessionID returns the server-assigned session id, if any.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    map[string]any     `json:"capabilities"`
	ClientInfo      mcp.Implementation `json:"clientInfo"`
}

// Connect performs the handshake (initialize, initialized, tools/list),
// making up to retries attempts with delay between them. Only
// connection-level failures are retried; a server that answers with an
// error fails Connect immediately with that error. When attempts run out the
// result is a *ConnectionError and the client stays disconnected.
func (c *Client) Connect(ctx context.Context, retries int, delay time.Duration) (*Session, error) {
	p := RetryPolicy{MaxAttempts: retries, Delay: delay}.normalized()
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		sess, err := c.handshake(ctx)
		if err == nil {
			metrics.ConnectAttempts.WithLabelValues("ok").Inc()
			c.connected = true
			c.session = sess
			log.Infof("mcpclient: connected to %s attempt=%d session=%t tools=%d", c.opts.Endpoint, attempt, sess.ID != "", len(c.tools))
			return sess, nil
		}
		c.reset()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			metrics.ConnectAttempts.WithLabelValues("rejected").Inc()
			log.Errorf("mcpclient: handshake with %s rejected: %v", c.opts.Endpoint, err)
			return nil, err
		}
		metrics.ConnectAttempts.WithLabelValues("unreachable").Inc()
		log.Warnf("mcpclient: connect attempt %d/%d to %s failed: %v", attempt, p.MaxAttempts, c.opts.Endpoint, err)
		lastErr = err
		if attempt < p.MaxAttempts {
			if err := c.sleep(ctx, p.Delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, &ConnectionError{Endpoint: c.opts.Endpoint, Attempts: p.MaxAttempts, Err: lastErr}
}

func (c *Client) handshake(ctx context.Context) (*Session, error) {
	params := initializeParams{
		ProtocolVersion: c.opts.ProtocolVersion,
		Capabilities:    map[string]any{"textCompletion": true, "toolCalls": true},
		ClientInfo:      c.opts.ClientInfo,
	}
	var res mcp.InitializeResult
	if err := c.call(ctx, string(mcp.MethodInitialize), params, &res); err != nil {
		return nil, err
	}
	if err := c.notify(ctx, methodInitialized); err != nil {
		return nil, err
	}
	if err := c.refreshTools(ctx); err != nil {
		return nil, err
	}
	return &Session{
		ID:              c.sessionID,
		ProtocolVersion: res.ProtocolVersion,
		ServerInfo:      res.ServerInfo,
		Capabilities:    res.Capabilities,
		Instructions:    res.Instructions,
	}, nil
}

type listToolsResult struct {
	Tools []struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		InputSchema map[string]any `json:"inputSchema"`
	} `json:"tools"`
}

// RefreshTools re-reads the tool catalogue. An empty catalogue is valid.
// Nameless entries are dropped and repeated names keep the first entry.
func (c *Client) RefreshTools(ctx context.Context) ([]tools.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, ErrNotConnected
	}
	if err := c.refreshTools(ctx); err != nil {
		return nil, err
	}
	return append([]tools.Descriptor(nil), c.tools...), nil
}

func (c *Client) refreshTools(ctx context.Context) error {
	var params any
	if c.opts.ProfileID != "" {
		params = map[string]any{"profileId": c.opts.ProfileID}
	}
	var res listToolsResult
	if err := c.call(ctx, string(mcp.MethodToolsList), params, &res); err != nil {
		return err
	}

	descs := make([]tools.Descriptor, 0, len(res.Tools))
	seen := make(map[string]struct{}, len(res.Tools))
	for _, t := range res.Tools {
		if t.Name == "" {
			log.Warnf("mcpclient: dropping tool without name")
			continue
		}
		if _, dup := seen[t.Name]; dup {
			log.Warnf("mcpclient: dropping duplicate tool %q", t.Name)
			continue
		}
		seen[t.Name] = struct{}{}
		descs = append(descs, tools.Descriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	if len(descs) == 0 {
		log.Warnf("mcpclient: %s returned no tools", c.opts.Endpoint)
	}
	c.tools = descs
	return nil
}

// Tools returns a copy of the last discovered catalogue.
func (c *Client) Tools() []tools.Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tools.Descriptor(nil), c.tools...)
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	ProfileID string         `json:"profileId,omitempty"`
}

// CallTool invokes a remote tool. A result of the form
// {content:[{text:...}]} yields that first text; any other result is
// returned decoded. A response with neither result nor error yields the
// whole decoded body. Server-side failures, including results flagged
// isError, are returned as *ToolError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, ErrNotConnected
	}
	if args == nil {
		args = map[string]any{}
	}
	resp, err := c.roundTrip(ctx, string(mcp.MethodToolsCall), callToolParams{Name: name, Arguments: args, ProfileID: c.opts.ProfileID})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &ToolError{Tool: name, Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}
	if len(resp.Result) == 0 {
		return decodeAny(resp.raw)
	}
	return unwrapResult(name, resp.Result)
}

func unwrapResult(name string, result json.RawMessage) (any, error) {
	r := gjson.ParseBytes(result)
	text := r.Get("content.0.text")
	if r.Get("isError").Bool() {
		msg := "tool reported an error"
		if text.Type == gjson.String {
			msg = text.String()
		}
		return nil, &ToolError{Tool: name, Message: msg, Data: result}
	}
	if text.Type == gjson.String {
		return text.String(), nil
	}
	return decodeAny(result)
}

func decodeAny(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &ProtocolError{Reason: "decode result: " + err.Error(), Body: truncate(raw, 256)}
	}
	return v, nil
}

// Close forgets the session and catalogue and releases idle connections.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		log.Debugf("mcpclient: closing session to %s", c.opts.Endpoint)
	}
	c.reset()
	if c.ownsHTTP {
		c.http.CloseIdleConnections()
	}
	return nil
}

func (c *Client) reset() {
	c.connected = false
	c.session = nil
	c.sessionID = ""
	c.sessionHeader = ""
	c.tools = nil
}
